package utils

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

// CaptchaStore implements base64Captcha.Store. It prefers Redis so answers
// survive across instances and falls back to process memory.
type CaptchaStore struct {
	rc  *redis.Client
	ttl time.Duration
	mem base64Captcha.Store
}

// NewCaptchaStore creates a store; rc may be nil.
func NewCaptchaStore(rc *redis.Client, ttl time.Duration) *CaptchaStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CaptchaStore{
		rc:  rc,
		ttl: ttl,
		mem: base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, ttl),
	}
}

func captchaKey(id string) string {
	return "captcha:" + id
}

// Set stores the answer of a captcha id with the store TTL.
func (s *CaptchaStore) Set(id string, value string) error {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.rc.Set(ctx, captchaKey(id), value, s.ttl).Err(); err == nil {
			return nil
		}
	}
	return s.mem.Set(id, value)
}

// Get returns the stored answer and deletes it when clear is set.
func (s *CaptchaStore) Get(id string, clear bool) string {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var (
			v   string
			err error
		)
		if clear {
			v, err = s.rc.GetDel(ctx, captchaKey(id)).Result()
		} else {
			v, err = s.rc.Get(ctx, captchaKey(id)).Result()
		}
		if err == nil {
			return v
		}
		if !errors.Is(err, redis.Nil) {
			// Redis is unreachable; Set may have fallen back too.
			return s.mem.Get(id, clear)
		}
	}
	return s.mem.Get(id, clear)
}

// Verify compares answer with the stored one. Clearing happens whether or not
// the answer matches, so every captcha allows a single guess.
func (s *CaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}

// Captcha issues digit image captchas.
type Captcha struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewCaptcha builds a five digit, 120x40 captcha on top of store.
func NewCaptcha(store base64Captcha.Store) *Captcha {
	return &Captcha{
		store:  store,
		driver: base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80),
	}
}

// Generate creates a captcha and returns its id and image as a data URI.
func (c *Captcha) Generate() (string, string, error) {
	id, b64, _, err := base64Captcha.NewCaptcha(c.driver, c.store).Generate()
	return id, b64, err
}

// Verify checks an answer and consumes the captcha.
func (c *Captcha) Verify(id, answer string) bool {
	id, answer = strings.TrimSpace(id), strings.TrimSpace(answer)
	if id == "" || answer == "" {
		return false
	}
	return c.store.Verify(id, answer, true)
}
