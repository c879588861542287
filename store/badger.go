package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/cppla/campusbbs/models"
)

const (
	usersKind = "users"
	postsKind = "posts"
)

// BadgerLoader stores one JSON value per record under an ordered key, so a
// prefix scan returns records in the order they were saved. Each save writes a
// new generation (users/<gen>/<index>) in batches, then moves the meta/users
// pointer to it in one small transaction, so a save of any size either
// replaces the whole list or leaves the previous one readable.
type BadgerLoader struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenBadger opens (creating if needed) a database directory. An empty path
// opens an in-memory database.
func OpenBadger(path string, logger *zap.Logger) (*BadgerLoader, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	return openBadger(opts, logger)
}

func openBadger(opts badger.Options, logger *zap.Logger) (*BadgerLoader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.WithLogger(badgerLogger{logger.Sugar()}).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerLoader{db: db, logger: logger}, nil
}

func (b *BadgerLoader) LoadUsers() []*models.User {
	var users []*models.User
	err := b.scan(usersKind, func(val []byte) error {
		var u models.User
		if err := json.Unmarshal(val, &u); err != nil {
			return err
		}
		users = append(users, &u)
		return nil
	})
	if err != nil {
		b.logger.Warn("load users failed", zap.Error(err))
		return []*models.User{}
	}
	return normalizeUsers(users)
}

func (b *BadgerLoader) SaveUsers(users []*models.User) bool {
	vals := make([]interface{}, 0, len(users))
	for _, u := range users {
		if u != nil {
			vals = append(vals, u)
		}
	}
	return b.replace(usersKind, vals)
}

func (b *BadgerLoader) LoadPosts() []*models.Post {
	var posts []*models.Post
	err := b.scan(postsKind, func(val []byte) error {
		var p models.Post
		if err := json.Unmarshal(val, &p); err != nil {
			return err
		}
		posts = append(posts, &p)
		return nil
	})
	if err != nil {
		b.logger.Warn("load posts failed", zap.Error(err))
		return []*models.Post{}
	}
	return normalizePosts(posts)
}

func (b *BadgerLoader) SavePosts(posts []*models.Post) bool {
	vals := make([]interface{}, 0, len(posts))
	for _, p := range posts {
		if p != nil {
			vals = append(vals, p)
		}
	}
	return b.replace(postsKind, vals)
}

func (b *BadgerLoader) Close() error { return b.db.Close() }

func (b *BadgerLoader) scan(kind string, fn func(val []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		gen, ok, err := generation(txn, kind)
		if err != nil || !ok {
			return err
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := genPrefix(kind, gen)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return fmt.Errorf("key %s: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
}

// replace writes vals as the next generation of kind and makes it current.
func (b *BadgerLoader) replace(kind string, vals []interface{}) bool {
	encoded := make([][]byte, len(vals))
	for i, v := range vals {
		buf, err := json.Marshal(v)
		if err != nil {
			b.logger.Error("encode record failed", zap.String("kind", kind), zap.Error(err))
			return false
		}
		encoded[i] = buf
	}

	var cur uint64
	var hasCur bool
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		cur, hasCur, err = generation(txn, kind)
		return err
	})
	if err != nil {
		b.logger.Error("read generation failed", zap.String("kind", kind), zap.Error(err))
		return false
	}
	next := cur + 1

	// Leftovers of an interrupted save would otherwise mix into this one.
	if err := b.dropPrefix(genPrefix(kind, next)); err != nil {
		b.logger.Error("clear generation failed", zap.String("kind", kind), zap.Uint64("generation", next), zap.Error(err))
		return false
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	prefix := genPrefix(kind, next)
	for i, buf := range encoded {
		if err := wb.Set(recordKey(prefix, i), buf); err != nil {
			b.saveFailed(kind, len(vals), err)
			return false
		}
	}
	if err := wb.Flush(); err != nil {
		b.saveFailed(kind, len(vals), err)
		return false
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(kind), []byte(strconv.FormatUint(next, 10)))
	})
	if err != nil {
		b.saveFailed(kind, len(vals), err)
		return false
	}

	if hasCur {
		if err := b.dropPrefix(genPrefix(kind, cur)); err != nil {
			b.logger.Warn("drop old generation failed", zap.String("kind", kind), zap.Uint64("generation", cur), zap.Error(err))
		}
	}
	return true
}

func (b *BadgerLoader) saveFailed(kind string, count int, err error) {
	if errors.Is(err, badger.ErrTxnTooBig) {
		b.logger.Error("save records failed: transaction too big", zap.String("kind", kind), zap.Int("count", count), zap.Error(err))
		return
	}
	b.logger.Error("save records failed", zap.String("kind", kind), zap.Int("count", count), zap.Error(err))
}

// dropPrefix deletes every key under prefix in batches.
func (b *BadgerLoader) dropPrefix(prefix []byte) error {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// generation reads the current generation of kind; ok is false before the
// first save.
func generation(txn *badger.Txn, kind string) (gen uint64, ok bool, err error) {
	item, err := txn.Get(metaKey(kind))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	err = item.Value(func(val []byte) error {
		gen, err = strconv.ParseUint(string(val), 10, 64)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("generation of %s: %w", kind, err)
	}
	return gen, true, nil
}

func metaKey(kind string) []byte {
	return []byte("meta/" + kind)
}

func genPrefix(kind string, gen uint64) []byte {
	return []byte(fmt.Sprintf("%s/%016x/", kind, gen))
}

func recordKey(prefix []byte, i int) []byte {
	var buf bytes.Buffer
	buf.Write(prefix)
	fmt.Fprintf(&buf, "%09d", i)
	return buf.Bytes()
}

// badgerLogger routes badger's internal log lines into zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, args ...interface{})   { l.s.Errorf(f, args...) }
func (l badgerLogger) Warningf(f string, args ...interface{}) { l.s.Warnf(f, args...) }
func (l badgerLogger) Infof(f string, args ...interface{})    { l.s.Debugf(f, args...) }
func (l badgerLogger) Debugf(f string, args ...interface{})   { l.s.Debugf(f, args...) }
