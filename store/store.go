// Package store persists users and posts. Every backend honours the same
// contract: loads never fail visibly and return an empty slice instead, saves
// replace the whole collection and report success as a bool.
package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/config"
	"github.com/cppla/campusbbs/models"
)

// DataLoader loads and saves the full user and post collections.
type DataLoader interface {
	LoadUsers() []*models.User
	SaveUsers(users []*models.User) bool
	LoadPosts() []*models.Post
	SavePosts(posts []*models.Post) bool
	Close() error
}

// New opens the backend named by cfg.StoreBackend.
func New(cfg config.AppConfig, logger *zap.Logger) (DataLoader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	switch strings.ToLower(cfg.StoreBackend) {
	case "", "json":
		return NewJSONLoader(
			filepath.Join(cfg.DataDir, cfg.UsersFile),
			filepath.Join(cfg.DataDir, cfg.PostsFile),
			logger,
		), nil
	case "memory":
		return NewMemoryLoader(cfg.SeedMockData, logger), nil
	case "badger":
		return OpenBadger(filepath.Join(cfg.DataDir, "badger"), logger)
	case "mysql":
		db, err := config.OpenMySQL(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormLoader(db, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// normalizeUsers drops nil entries and fills empty collections.
func normalizeUsers(in []*models.User) []*models.User {
	out := make([]*models.User, 0, len(in))
	for _, u := range in {
		if u == nil {
			continue
		}
		if u.PostIDs == nil {
			u.PostIDs = []string{}
		}
		out = append(out, u)
	}
	return out
}

// normalizePosts drops nil entries and rebinds comment trees.
func normalizePosts(in []*models.Post) []*models.Post {
	out := make([]*models.Post, 0, len(in))
	for _, p := range in {
		if p == nil {
			continue
		}
		p.Bind(nil)
		out = append(out, p)
	}
	return out
}
