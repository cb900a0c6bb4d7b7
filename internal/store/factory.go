package store

import (
	"context"
	"fmt"

	"momentshub/internal/config"
	"momentshub/internal/hub"
)

// Connection holds the repository coordinates and credential saved in the
// session. Non-empty fields override the config file.
type Connection struct {
	Owner  string
	Repo   string
	Branch string
	Token  string
}

// Resolve merges c over the configured defaults.
func (c Connection) Resolve(cfg config.StoreConfig) Connection {
	out := Connection{Owner: cfg.Owner, Repo: cfg.Repo, Branch: cfg.Branch, Token: c.Token}
	if c.Owner != "" {
		out.Owner = c.Owner
	}
	if c.Repo != "" {
		out.Repo = c.Repo
	}
	if c.Branch != "" {
		out.Branch = c.Branch
	}
	if out.Branch == "" {
		out.Branch = "main"
	}
	return out
}

// NewStoreFromConfig creates an ObjectStore implementation based on the
// store config type. The returned Mirror is nil for backends without a
// public copy.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, conn Connection, cache hub.TokenCache, logger hub.Logger) (hub.ObjectStore, hub.Mirror, error) {
	if cfg.IsGitHub() {
		c := conn.Resolve(cfg)
		if c.Owner == "" || c.Repo == "" {
			return nil, nil, fmt.Errorf("github store requires owner and repo (run `moments connect`)")
		}
		s, err := NewGitHubStore(GitHubConfig{
			Owner:     c.Owner,
			Repo:      c.Repo,
			Branch:    c.Branch,
			Token:     c.Token,
			BaseURL:   cfg.APIBaseURL,
			UserAgent: cfg.UserAgent,
			Cache:     cache,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, NewPagesMirror(PagesBaseURL(c.Owner, c.Repo, cfg.PagesHost), nil), nil
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, nil, fmt.Errorf("filesystem store requires fs_root to be set")
		}
		s, err := NewFileSystemStore(cfg.FSRoot)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "s3":
		s, err := NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
