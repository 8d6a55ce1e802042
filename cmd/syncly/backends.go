package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/syncly/syncly/internal/config"
	"github.com/syncly/syncly/pkg/bytesize"
)

var addFlags config.BackendConfig

func newBackendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Manage pooled backends",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured backends and their capacity",
		RunE:  runBackendsList,
	}
	cmd.AddCommand(listCmd)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new backend in the config file",
		Long: `Add appends a backend stanza to the config file. The backend joins the
pool on the next command run.

Examples:
  syncly backends add --id scratch --type local --quota 5GB --path /var/lib/syncly/scratch
  syncly backends add --id bucket-1 --type s3 --quota 15GB \
      --endpoint s3.example.com --bucket syncly --access-key KEY --secret-key SECRET --ssl`,
		RunE: runBackendsAdd,
	}
	addCmd.Flags().StringVar(&addFlags.ID, "id", "", "backend ID (required)")
	addCmd.Flags().StringVar(&addFlags.Type, "type", "", "backend type: local or s3 (required)")
	addCmd.Flags().StringVar(&addFlags.Quota, "quota", "", "capacity, e.g. 15GB (required)")
	addCmd.Flags().StringVar(&addFlags.Path, "path", "", "local: storage directory")
	addCmd.Flags().StringVar(&addFlags.Endpoint, "endpoint", "", "s3: endpoint host[:port]")
	addCmd.Flags().StringVar(&addFlags.AccessKey, "access-key", "", "s3: access key")
	addCmd.Flags().StringVar(&addFlags.SecretKey, "secret-key", "", "s3: secret key")
	addCmd.Flags().StringVar(&addFlags.Bucket, "bucket", "", "s3: bucket name")
	addCmd.Flags().StringVar(&addFlags.Region, "region", "", "s3: region")
	addCmd.Flags().BoolVar(&addFlags.UseSSL, "ssl", false, "s3: use TLS")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("type")
	_ = addCmd.MarkFlagRequired("quota")
	cmd.AddCommand(addCmd)

	return cmd
}

func runBackendsList(cmd *cobra.Command, args []string) error {
	p, cfg, err := openPool()
	if err != nil {
		return err
	}

	types := make(map[string]string, len(cfg.Backends))
	for _, b := range cfg.Backends {
		types[b.ID] = b.Type
	}

	for _, bc := range p.Capacities(cmd.Context()) {
		if bc.Err != nil {
			fmt.Printf("%-20s %-8s unavailable (%v)\n", bc.ID, types[bc.ID], bc.Err)
			continue
		}
		fmt.Printf("%-20s %-8s total %-12s free %s\n",
			bc.ID, types[bc.ID],
			bytesize.Format(bc.Capacity.TotalBytes),
			bytesize.Format(bc.Capacity.FreeBytes()))
	}
	return nil
}

func runBackendsAdd(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if errors.Is(err, os.ErrNotExist) {
		// First backend on a fresh install bootstraps the config file.
		cfg = &config.Config{
			MetadataFile: filepath.Join(filepath.Dir(path), "metadata.json"),
			DownloadDir:  "downloads",
			OpTimeout:    "30s",
		}
	} else if err != nil {
		return err
	}

	cfg.Backends = append(cfg.Backends, addFlags)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("Backend %q added to %s.\n", addFlags.ID, path)
	return nil
}
