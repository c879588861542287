package events

import (
	"sync"

	"go.uber.org/zap"
)

// Directory resolves a recipient id to its observer.
type Directory interface {
	Lookup(id string) (Observer, bool)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(id string) (Observer, bool)

func (f DirectoryFunc) Lookup(id string) (Observer, bool) { return f(id) }

// Hook sees every emitted event after delivery together with the number of
// observers that received it.
type Hook func(ev Event, delivered int)

// Bus delivers events synchronously in the emitting goroutine. Observers are
// the event's recipient, looked up in the directory, plus anyone subscribed to
// the event's subject. Subscriptions are never removed.
type Bus struct {
	mu     sync.RWMutex
	dir    Directory
	subs   map[string][]Observer
	hooks  []Hook
	logger *zap.Logger
}

// NewBus creates a bus. dir may be nil when only subject subscriptions are used.
func NewBus(dir Directory, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		dir:    dir,
		subs:   make(map[string][]Observer),
		logger: logger,
	}
}

// Subscribe registers o for every event whose subject is subjectID.
func (b *Bus) Subscribe(subjectID string, o Observer) {
	if o == nil || subjectID == "" {
		return
	}
	b.mu.Lock()
	b.subs[subjectID] = append(b.subs[subjectID], o)
	b.mu.Unlock()
}

// Subscribers returns how many observers are attached to subjectID.
func (b *Bus) Subscribers(subjectID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[subjectID])
}

// Use appends a hook.
func (b *Bus) Use(h Hook) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.hooks = append(b.hooks, h)
	b.mu.Unlock()
}

// Emit delivers ev to each distinct observer once. There is no retry.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	targets := make([]Observer, 0, len(b.subs[ev.SubjectID])+1)
	if b.dir != nil && ev.RecipientID != "" {
		if o, ok := b.dir.Lookup(ev.RecipientID); ok && o != nil {
			targets = append(targets, o)
		}
	}
	targets = append(targets, b.subs[ev.SubjectID]...)
	hooks := append([]Hook(nil), b.hooks...)
	b.mu.RUnlock()

	seen := make(map[string]struct{}, len(targets))
	delivered := 0
	for _, o := range targets {
		id := o.ObserverID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		o.Notify(ev)
		delivered++
	}
	if delivered == 0 {
		b.logger.Debug("event had no observers", zap.String("type", string(ev.Type)), zap.String("subject", ev.SubjectID))
	}
	for _, h := range hooks {
		h(ev, delivered)
	}
}

// LogHook writes one info line per event.
func LogHook(logger *zap.Logger) Hook {
	return func(ev Event, delivered int) {
		logger.Info("event delivered",
			zap.String("type", string(ev.Type)),
			zap.String("actor", ev.ActorID),
			zap.String("recipient", ev.RecipientID),
			zap.String("subject", ev.SubjectID),
			zap.Int("observers", delivered),
		)
	}
}
