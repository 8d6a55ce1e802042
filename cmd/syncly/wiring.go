package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/syncly/syncly/internal/backend"
	"github.com/syncly/syncly/internal/backend/local"
	"github.com/syncly/syncly/internal/backend/memory"
	"github.com/syncly/syncly/internal/backend/s3"
	"github.com/syncly/syncly/internal/config"
	"github.com/syncly/syncly/internal/pool"
)

// loadConfig loads the config file from --config or the default path.
func loadConfig() (*config.Config, string, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// buildRegistry constructs a driver for every configured backend.
func buildRegistry(cfg *config.Config) (*backend.Registry, error) {
	registry := backend.NewRegistry()
	for i := range cfg.Backends {
		bc := &cfg.Backends[i]
		quota, err := bc.QuotaBytes()
		if err != nil {
			return nil, err
		}

		var driver backend.Driver
		switch bc.Type {
		case config.TypeLocal:
			driver, err = local.New(bc.Path, quota)
			if err != nil {
				return nil, fmt.Errorf("backend %q: %w", bc.ID, err)
			}
		case config.TypeS3:
			driver, err = s3.New(s3.Options{
				Endpoint:   bc.Endpoint,
				AccessKey:  bc.AccessKey,
				SecretKey:  bc.SecretKey,
				Bucket:     bc.Bucket,
				Region:     bc.Region,
				UseSSL:     bc.UseSSL,
				TotalBytes: quota,
			})
			if err != nil {
				return nil, fmt.Errorf("backend %q: %w", bc.ID, err)
			}
		case config.TypeMemory:
			driver = memory.New(quota)
		default:
			return nil, fmt.Errorf("backend %q: unknown type %q", bc.ID, bc.Type)
		}
		registry.Register(bc.ID, driver)
	}
	return registry, nil
}

// openPool wires the configured backends, metadata store and metrics
// into a ready storage pool.
func openPool() (*pool.Pool, *config.Config, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Backends) == 0 {
		return nil, nil, fmt.Errorf("no backends configured; add one with `syncly backends add`")
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, nil, err
	}

	p, err := pool.New(pool.Config{
		Registry:  registry,
		Metadata:  pool.NewMetadataStore(cfg.MetadataFile, log.Logger),
		Logger:    log.Logger,
		Metrics:   pool.InitMetrics(nil),
		OpTimeout: timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
