package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syncly/syncly/pkg/bytesize"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pool capacity across all backends",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, _, err := openPool()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fmt.Println("Backends:")
	for _, bc := range p.Capacities(ctx) {
		if bc.Err != nil {
			fmt.Printf("  %-20s unavailable (%v)\n", bc.ID, bc.Err)
			continue
		}
		fmt.Printf("  %-20s total %-12s used %-12s free %s\n",
			bc.ID,
			bytesize.Format(bc.Capacity.TotalBytes),
			bytesize.Format(bc.Capacity.UsedBytes),
			bytesize.Format(bc.Capacity.FreeBytes()))
	}

	total := p.TotalCapacity(ctx)
	fmt.Println("\nPool:")
	fmt.Printf("  Total: %s\n", bytesize.Format(total.TotalBytes))
	fmt.Printf("  Used:  %s\n", bytesize.Format(total.UsedBytes))
	fmt.Printf("  Free:  %s\n", bytesize.Format(total.FreeBytes()))
	return nil
}
