package store

import (
	"context"
	"fmt"

	"timeline-go/internal/config"
	"timeline-go/internal/timeline"
)

// NewContentStoreFromConfig creates the tabular-file backend selected by
// the config type tag.
func NewContentStoreFromConfig(cfg *config.Config) (timeline.ContentStore, error) {
	switch cfg.Store.Type {
	case "memory":
		return NewMemoryStore(cfg.Store.PublicBase), nil
	case "filesystem":
		if cfg.Store.Root == "" {
			return nil, fmt.Errorf("filesystem store requires store.root to be set")
		}
		return NewFileSystemStore(cfg.Store.Root, cfg.Store.PublicBase)
	case "github":
		return NewGitHubStore(GitHubOptions{
			Token:   cfg.GitHub.Token,
			Owner:   cfg.GitHub.Owner,
			Repo:    cfg.GitHub.Repo,
			Branch:  cfg.GitHub.Branch,
			APIBase: cfg.GitHub.APIBase,
			RawBase: cfg.GitHub.RawBase,
		})
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}
}

// NewBlobStoreFromConfig creates the image blob backend. With the "store"
// backend images share the tabular file's store, which must then also
// serve blobs.
func NewBlobStoreFromConfig(ctx context.Context, cfg *config.Config, content timeline.ContentStore) (timeline.BlobStore, error) {
	switch cfg.Images.Backend {
	case "", "store":
		blobs, ok := content.(timeline.BlobStore)
		if !ok {
			return nil, fmt.Errorf("store type %s cannot hold image blobs", cfg.Store.Type)
		}
		return blobs, nil
	case "s3":
		return NewS3BlobStore(ctx, S3Options{
			Bucket:     cfg.Images.S3Bucket,
			Prefix:     cfg.Images.S3Prefix,
			Region:     cfg.Images.S3Region,
			AccessKey:  cfg.Images.S3AccessKey,
			SecretKey:  cfg.Images.S3SecretKey,
			PublicBase: cfg.Images.S3PublicBase,
		})
	default:
		return nil, fmt.Errorf("unknown image backend: %s", cfg.Images.Backend)
	}
}
