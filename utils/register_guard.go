package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegisterGuard throttles registrations per client IP: a cooldown between
// attempts and a cap on successful registrations per calendar day. Redis
// errors fail open; without Redis the counters live in memory.
type RegisterGuard struct {
	rc          *redis.Client
	cooldown    time.Duration
	dailyLimit  int
	now         func() time.Time
	mu          sync.Mutex
	lastAttempt map[string]time.Time
	successes   map[string]int
}

func NewRegisterGuard(rc *redis.Client, cooldown time.Duration, dailyLimit int) *RegisterGuard {
	return &RegisterGuard{
		rc:          rc,
		cooldown:    cooldown,
		dailyLimit:  dailyLimit,
		now:         time.Now,
		lastAttempt: map[string]time.Time{},
		successes:   map[string]int{},
	}
}

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

// Allow reports whether ip may attempt a registration now. A granted attempt
// starts the cooldown.
func (g *RegisterGuard) Allow(ip string) bool {
	if g == nil {
		return true
	}
	return g.dailyOK(ip) && g.cooldownOK(ip)
}

// RecordSuccess counts a completed registration for today.
func (g *RegisterGuard) RecordSuccess(ip string) {
	if g == nil || g.dailyLimit <= 0 {
		return
	}
	day := g.now().Format("20060102")
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		key := regKey("succday", ip, day)
		if err := g.rc.Incr(ctx, key).Err(); err == nil {
			_ = g.rc.Expire(ctx, key, 24*time.Hour).Err()
			return
		}
	}
	g.mu.Lock()
	g.successes[ip+"|"+day]++
	g.mu.Unlock()
}

func (g *RegisterGuard) cooldownOK(ip string) bool {
	if g.cooldown <= 0 {
		return true
	}
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		ok, err := g.rc.SetNX(ctx, regKey("cooldown", ip), "1", g.cooldown).Result()
		if err == nil {
			return ok
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if last, ok := g.lastAttempt[ip]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastAttempt[ip] = now
	return true
}

func (g *RegisterGuard) dailyOK(ip string) bool {
	if g.dailyLimit <= 0 {
		return true
	}
	day := g.now().Format("20060102")
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		n, err := g.rc.Get(ctx, regKey("succday", ip, day)).Int()
		switch {
		case err == redis.Nil:
			return true
		case err == nil:
			return n < g.dailyLimit
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.successes[ip+"|"+day] < g.dailyLimit
}
