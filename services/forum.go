// Package services holds the forum application service, the single owner of
// the in-memory users, posts and reports.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cppla/campusbbs/events"
	"github.com/cppla/campusbbs/models"
	"github.com/cppla/campusbbs/session"
	"github.com/cppla/campusbbs/store"
	"github.com/cppla/campusbbs/utils"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInvalidCode  = errors.New("invalid or expired verification code")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDelivery     = errors.New("verification code not sent")
)

// Options tunes forum behaviour. Zero values fall back to defaults.
type Options struct {
	AdminStudentIDs []string
	EmailSuffix     string
	HotThreshold    float64
	DefaultPageSize int
	MaxPageSize     int
}

func (o *Options) applyDefaults() {
	if o.EmailSuffix == "" {
		o.EmailSuffix = "@buaa.edu.cn"
	}
	if o.HotThreshold <= 0 {
		o.HotThreshold = models.DefaultHotThreshold
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 20
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 100
	}
}

// Forum serialises every domain mutation behind one mutex. Events raised by
// posts and comments are delivered synchronously while that mutex is held.
type Forum struct {
	mu        sync.Mutex
	loader    store.DataLoader
	hasher    utils.Hasher
	codes     utils.CodeVerifier
	tasks     *utils.Dispatcher
	bus       *events.Bus
	validate  *validator.Validate
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
	users     []*models.User
	byID      map[string]*models.User
	byStudent map[string]*models.User
	posts     []*models.Post
	postByID  map[string]*models.Post
	reports   []models.Report
	// viewed is set when a view was counted after the last save.
	viewed bool
}

// New wires a forum. tasks may be nil, in which case async operations run inline.
func New(loader store.DataLoader, hasher utils.Hasher, codes utils.CodeVerifier, tasks *utils.Dispatcher, logger *zap.Logger, opts Options) *Forum {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()
	f := &Forum{
		loader:    loader,
		hasher:    hasher,
		codes:     codes,
		tasks:     tasks,
		validate:  validator.New(),
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return models.Now() },
		byID:      map[string]*models.User{},
		byStudent: map[string]*models.User{},
		postByID:  map[string]*models.Post{},
	}
	// The directory is consulted from Emit, which only runs with f.mu held.
	f.bus = events.NewBus(events.DirectoryFunc(func(id string) (events.Observer, bool) {
		u, ok := f.byID[id]
		return u, ok
	}), logger.Named("events"))
	f.bus.Use(events.LogHook(logger.Named("events")))
	return f
}

// Bus exposes the event bus so callers can subscribe to post or comment ids.
func (f *Forum) Bus() *events.Bus { return f.bus }

// Load replaces the in-memory state with what the store holds.
func (f *Forum) Load() {
	users := f.loader.LoadUsers()
	posts := f.loader.LoadPosts()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = users
	f.byID = make(map[string]*models.User, len(users))
	f.byStudent = make(map[string]*models.User, len(users))
	for _, u := range users {
		f.byID[u.ID] = u
		f.byStudent[studentKey(u.StudentID)] = u
		if u.Role != models.RoleAdmin && f.isAdminStudentID(u.StudentID) {
			u.Role = models.RoleAdmin
		}
	}
	f.posts = posts
	f.postByID = make(map[string]*models.Post, len(posts))
	for _, p := range posts {
		p.Bind(f.bus)
		f.postByID[p.ID] = p
	}
	f.logger.Info("forum loaded", zap.Int("users", len(users)), zap.Int("posts", len(posts)))
}

// Save persists users and posts. Both are attempted even if the first fails.
func (f *Forum) Save() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	okUsers := f.loader.SaveUsers(f.users)
	okPosts := f.loader.SavePosts(f.posts)
	if !okUsers || !okPosts {
		f.logger.Error("save failed", zap.Bool("users", okUsers), zap.Bool("posts", okPosts))
		return false
	}
	f.viewed = false
	return true
}

// FlushViews saves when view counts changed since the last save and reports
// whether it did. Views are not saved per request.
func (f *Forum) FlushViews() bool {
	f.mu.Lock()
	pending := f.viewed
	f.mu.Unlock()
	if !pending {
		return false
	}
	return f.Save()
}

// FlushLoop runs FlushViews every interval until ctx is done.
func (f *Forum) FlushLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.FlushViews()
		}
	}
}

// SaveAsync persists in the background; done receives the outcome on the
// dispatcher loop.
func (f *Forum) SaveAsync(done func(ok bool)) {
	if f.tasks == nil {
		ok := f.Save()
		if done != nil {
			done(ok)
		}
		return
	}
	f.tasks.Submit("save", f.Save, func(ok bool) {
		if !ok {
			f.logger.Warn("background save failed")
		}
		if done != nil {
			done(ok)
		}
	})
}

// SendCode mails a verification code to a campus address.
func (f *Forum) SendCode(ctx context.Context, email string) error {
	addr, err := f.campusEmail(email)
	if err != nil {
		return err
	}
	if !f.codes.SendCode(ctx, addr) {
		return ErrDelivery
	}
	return nil
}

// SendCodeAsync sends a code in the background and reports the outcome on the
// dispatcher loop.
func (f *Forum) SendCodeAsync(email string, done func(ok bool)) {
	task := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return f.SendCode(ctx, email) == nil
	}
	if f.tasks == nil {
		ok := task()
		if done != nil {
			done(ok)
		}
		return
	}
	f.tasks.Submit("send-code", task, done)
}

// Authenticate resolves a token subject to its account.
func (f *Forum) Authenticate(userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return nil, ErrUnauthorized
	}
	if u.IsBanned(f.now()) {
		return nil, ErrForbidden
	}
	return u, nil
}

// actor returns the canonical account behind sess. Callers hold f.mu.
func (f *Forum) actor(sess *session.Session) (*models.User, error) {
	cur := sess.CurrentUser()
	if cur == nil {
		return nil, ErrUnauthorized
	}
	u, ok := f.byID[cur.ID]
	if !ok {
		return nil, ErrUnauthorized
	}
	if u.IsBanned(f.now()) {
		return nil, ErrForbidden
	}
	return u, nil
}

// viewer is like actor but tolerates anonymous readers.
func (f *Forum) viewer(sess *session.Session) *models.User {
	cur := sess.CurrentUser()
	if cur == nil {
		return nil
	}
	return f.byID[cur.ID]
}

func (f *Forum) post(id string) (*models.Post, error) {
	p, ok := f.postByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (f *Forum) isAdminStudentID(id string) bool {
	for _, a := range f.opts.AdminStudentIDs {
		if studentKey(a) == studentKey(id) {
			return true
		}
	}
	return false
}

// campusEmail completes a bare mailbox prefix with the campus suffix and
// rejects other domains.
func (f *Forum) campusEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", errInput("email is required")
	}
	if !strings.Contains(e, "@") {
		e += strings.ToLower(f.opts.EmailSuffix)
	}
	if !strings.HasSuffix(e, strings.ToLower(f.opts.EmailSuffix)) || strings.HasPrefix(e, "@") {
		return "", errInput("email must end with " + f.opts.EmailSuffix)
	}
	if err := f.validate.Var(e, "email"); err != nil {
		return "", errInput("invalid email")
	}
	return e, nil
}

func studentKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
