package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/internal/config"
	"github.com/observation-tools/observation-tools/internal/handler"
	"github.com/observation-tools/observation-tools/internal/service"
	"github.com/observation-tools/observation-tools/internal/storage"
	"github.com/observation-tools/observation-tools/internal/storage/blob"
)

// Dependencies owns the storage engines and the handlers wired on top of
// them.
type Dependencies struct {
	Store *storage.Store
	Blobs blob.Store

	Executions   *handler.ExecutionsHandler
	Observations *handler.ObservationsHandler
	Groups       *handler.GroupsHandler
}

func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	metadataDir := filepath.Join(cfg.Data.Dir, "metadata")
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := storage.Open(filepath.Join(metadataDir, "metadata.db"), logger)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ingestion := service.NewIngestion(store, blobs, logger)
	query := service.NewQuery(store, blobs, logger)

	return &Dependencies{
		Store:        store,
		Blobs:        blobs,
		Executions:   handler.NewExecutionsHandler(ingestion, query, logger),
		Observations: handler.NewObservationsHandler(ingestion, query, logger),
		Groups:       handler.NewGroupsHandler(query, logger),
	}, nil
}

func openBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Data.BlobBackend {
	case "s3":
		return blob.NewS3(context.Background(), blob.S3Config{
			Endpoint:  cfg.Data.S3Endpoint,
			AccessKey: cfg.Data.S3AccessKey,
			SecretKey: cfg.Data.S3SecretKey,
			UseSSL:    cfg.Data.S3UseSSL,
			Bucket:    cfg.Data.S3Bucket,
		})
	default:
		blobDir := cfg.Data.BlobDir
		if blobDir == "" {
			blobDir = filepath.Join(cfg.Data.Dir, "blobs")
		}
		return blob.NewFilesystem(blobDir)
	}
}

// Close releases the storage engines.
func (d *Dependencies) Close() {
	_ = d.Store.Close()
}
