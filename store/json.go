package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/models"
)

var emptyArray = []byte("[]")

// JSONLoader keeps each collection in a flat JSON array file. Missing files are
// created as "[]" on first use; writes go to a temp file that is renamed over
// the target.
type JSONLoader struct {
	usersPath string
	postsPath string
	logger    *zap.Logger
	mu        sync.Mutex
}

func NewJSONLoader(usersPath, postsPath string, logger *zap.Logger) *JSONLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONLoader{usersPath: usersPath, postsPath: postsPath, logger: logger}
}

func (l *JSONLoader) LoadUsers() []*models.User {
	var users []*models.User
	if !l.read(l.usersPath, &users) {
		return []*models.User{}
	}
	return normalizeUsers(users)
}

func (l *JSONLoader) SaveUsers(users []*models.User) bool {
	if users == nil {
		users = []*models.User{}
	}
	return l.write(l.usersPath, users)
}

func (l *JSONLoader) LoadPosts() []*models.Post {
	var posts []*models.Post
	if !l.read(l.postsPath, &posts) {
		return []*models.Post{}
	}
	return normalizePosts(posts)
}

func (l *JSONLoader) SavePosts(posts []*models.Post) bool {
	if posts == nil {
		posts = []*models.Post{}
	}
	return l.write(l.postsPath, posts)
}

func (l *JSONLoader) Close() error { return nil }

// ensureFile creates path containing an empty array unless it already exists.
func (l *JSONLoader) ensureFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(emptyArray); err != nil {
		f.Close()
		return err
	}
	l.logger.Info("initialized data file", zap.String("path", path))
	return f.Close()
}

func (l *JSONLoader) read(path string, out interface{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureFile(path); err != nil {
		l.logger.Warn("init data file failed", zap.String("path", path), zap.Error(err))
		return false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		l.logger.Warn("read data file failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		l.logger.Warn("decode data file failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func (l *JSONLoader) write(path string, v interface{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		l.logger.Error("encode data failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := l.ensureFile(path); err != nil {
		l.logger.Error("init data file failed", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := replaceFile(path, b); err != nil {
		l.logger.Error("write data file failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
