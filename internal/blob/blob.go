// Package blob opens the configured export artifact store.
package blob

import (
	"context"
	"fmt"

	"grc/internal/blob/core"
	"grc/internal/blob/memory"
	"grc/internal/blob/s3"
	"grc/internal/platform/config"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.BlobConfig) (core.Store, error) {
	switch core.Driver(cfg.Driver) {
	case core.DriverMemory, "":
		return memory.New(), nil
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
		})
	}
	return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
}
