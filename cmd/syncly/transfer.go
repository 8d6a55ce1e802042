package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	uploadName  string
	uploadMime  string
	downloadOut string
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file-path>",
		Short: "Upload a file into the pool",
		Long: `Upload places a file into the pool. When one backend has enough free
space the file is stored whole; otherwise it is split into chunks placed
across backends and recorded in the metadata directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
	cmd.Flags().StringVar(&uploadName, "name", "", "logical file name (defaults to the base name)")
	cmd.Flags().StringVar(&uploadMime, "mime", "", "MIME type (detected from content when omitted)")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	p, _, err := openPool()
	if err != nil {
		return err
	}

	filePath := args[0]
	name := uploadName
	if name == "" {
		name = filepath.Base(filePath)
	}

	record, err := p.Upload(cmd.Context(), filePath, name, uploadMime)
	if err != nil {
		return err
	}

	if len(record.Chunks) == 1 {
		fmt.Printf("Uploaded %q whole to backend %q.\n", record.FileName, record.Chunks[0].Bucket)
	} else {
		fmt.Printf("Uploaded %q as %d chunks:\n", record.FileName, len(record.Chunks))
		for _, c := range record.Chunks {
			fmt.Printf("  %s -> %s\n", c.ChunkName, c.Bucket)
		}
	}
	return nil
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <file-name>",
		Short: "Download a file from the pool",
		Long: `Download reassembles a file from its chunks. The metadata directory is
the primary lookup; when no record exists every backend is scanned for
the file name and its chunk parts.`,
		Args: cobra.ExactArgs(1),
		RunE: runDownload,
	}
	cmd.Flags().StringVarP(&downloadOut, "out", "o", "", "destination directory (defaults to the configured download dir)")
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	p, cfg, err := openPool()
	if err != nil {
		return err
	}

	out := downloadOut
	if out == "" {
		out = cfg.DownloadDir
	}

	path, err := p.Download(cmd.Context(), args[0], out)
	if err != nil {
		return err
	}
	fmt.Printf("File downloaded: %s\n", path)
	return nil
}
