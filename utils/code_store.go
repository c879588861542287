package utils

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// in-memory fallback entry
type codeEntry struct {
	code      string
	expiresAt time.Time
}

// consumeScript deletes the key only when the stored code matches.
var consumeScript = redis.NewScript(`local v=redis.call('GET', KEYS[1]); if v and v==ARGV[1] then redis.call('DEL', KEYS[1]); return 1 end; return 0`)

// CodeStore keeps one-time codes per email. It prefers Redis and falls back to memory.
type CodeStore struct {
	rc  *redis.Client
	mu  sync.Mutex
	mem map[string]codeEntry
	now func() time.Time
}

// NewCodeStore creates a store; rc may be nil.
func NewCodeStore(rc *redis.Client) *CodeStore {
	return &CodeStore{rc: rc, mem: map[string]codeEntry{}, now: time.Now}
}

// GenerateVerificationCode creates a numeric code with given length.
func GenerateVerificationCode(n int) string {
	if n <= 0 {
		n = 6
	}
	digits := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			v = big.NewInt(time.Now().UnixNano() % 10)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}

func codeKey(email string) string {
	return "verify:email:" + email
}

// Save stores a code for an email with TTL, replacing any previous code.
func (s *CodeStore) Save(email, code string, ttl time.Duration) {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.rc.Set(ctx, codeKey(email), code, ttl).Err(); err == nil {
			return
		}
	}
	s.mu.Lock()
	s.mem[codeKey(email)] = codeEntry{code: code, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// Delete removes the code of an email.
func (s *CodeStore) Delete(email string) {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.rc.Del(ctx, codeKey(email)).Err()
	}
	s.mu.Lock()
	delete(s.mem, codeKey(email))
	s.mu.Unlock()
}

// VerifyAndConsume reports whether code matches and removes it on success.
// A wrong code leaves the stored one in place.
func (s *CodeStore) VerifyAndConsume(email, code string) bool {
	if code == "" {
		return false
	}
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := consumeScript.Run(ctx, s.rc, []string{codeKey(email)}, code).Int(); err == nil {
			return n == 1
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := codeKey(email)
	entry, ok := s.mem[key]
	if !ok {
		return false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.mem, key)
		return false
	}
	if entry.code != code {
		return false
	}
	delete(s.mem, key)
	return true
}

// CooldownTrySet sets a cooldown key for sending email code. Returns true if set, false if cooling down.
func (s *CodeStore) CooldownTrySet(email string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	key := "cooldown:email:" + email
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := s.rc.SetNX(ctx, key, "1", cooldown).Result(); err == nil {
			return ok
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.mem[key]; ok && s.now().Before(entry.expiresAt) {
		return false
	}
	s.mem[key] = codeEntry{code: "1", expiresAt: s.now().Add(cooldown)}
	return true
}

// ClearCooldown lets the email request a new code immediately.
func (s *CodeStore) ClearCooldown(email string) {
	key := "cooldown:email:" + email
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.rc.Del(ctx, key).Err()
	}
	s.mu.Lock()
	delete(s.mem, key)
	s.mu.Unlock()
}
