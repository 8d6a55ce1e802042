package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/syncly/syncly/internal/pool"
)

func newListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List files across all backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFiles(cmd, "", limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum entries to show (0 = all)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search files by name substring across all backends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFiles(cmd, args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries to show (0 = all)")
	return cmd
}

func listFiles(cmd *cobra.Command, query string, limit int) error {
	p, _, err := openPool()
	if err != nil {
		return err
	}

	entries, err := p.ListAll(cmd.Context(), query, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No files found.")
		return nil
	}

	printEntries(entries)
	return nil
}

func printEntries(entries []pool.Entry) {
	for i, e := range entries {
		size := "unknown size"
		if e.Object.Size > 0 {
			size = humanize.IBytes(uint64(e.Object.Size))
		}
		mime := e.Object.MimeType
		if mime == "" {
			mime = "unknown"
		}
		fmt.Printf("%4d. %s (%s, %s) [%s]\n", i+1, e.Object.Name, mime, size, e.Backend)
	}
}
