package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/modelpush/adapter"
	"github.com/pithecene-io/modelpush/adapter/redis"
	"github.com/pithecene-io/modelpush/adapter/webhook"
	"github.com/pithecene-io/modelpush/cli/config"
	"github.com/pithecene-io/modelpush/executor"
	"github.com/pithecene-io/modelpush/lode"
	"github.com/pithecene-io/modelpush/log"
)

// errNoStorage is returned by buildArchive when no backend is configured.
var errNoStorage = errors.New("no storage configured")

// buildArchive opens the archive described by cfg.
func buildArchive(ctx context.Context, cfg config.StorageConfig) (*lode.Archive, error) {
	if cfg.Backend == "" && cfg.Path == "" {
		return nil, errNoStorage
	}
	if cfg.Path == "" {
		return nil, errors.New("storage path is required")
	}

	switch cfg.Backend {
	case "fs", "":
		return lode.NewArchive(cfg.Dataset, cfg.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Path)
		return lode.NewS3Archive(ctx, cfg.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (must be fs or s3)", cfg.Backend)
	}
}

// buildAdapter creates the run report adapter described by cfg, or nil
// when cfg.Type is empty.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := webhook.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s (must be webhook or redis)", cfg.Type)
	}
}

// buildExecutor creates the executor described by cfg.
func buildExecutor(cfg config.ExecutorConfig, logger *log.Logger) (executor.Executor, error) {
	switch cfg.Type {
	case "sim", "":
		sim := executor.NewSimulator(logger)
		if cfg.CyclesPerByte > 0 {
			sim.CyclesPerByte = uint32(cfg.CyclesPerByte)
		}
		return sim, nil
	case "process":
		if cfg.Path == "" {
			return nil, errors.New("executor.path is required for the process executor")
		}
		return executor.NewProcess(executor.ProcessConfig{
			Path:    cfg.Path,
			Args:    cfg.Args,
			Timeout: cfg.Timeout.Duration,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported executor: %s (must be sim or process)", cfg.Type)
	}
}
