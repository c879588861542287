package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CodeVerifier is the verification-code capability used during registration.
type CodeVerifier interface {
	SendCode(ctx context.Context, email string) bool
	IsCodeValid(email, code string) bool
}

// Verifier mails six-digit one-time codes and checks them.
type Verifier struct {
	store    *CodeStore
	mailer   Mailer
	ttl      time.Duration
	cooldown time.Duration
	logger   *zap.Logger
}

// NewVerifier wires a code store to a mailer.
func NewVerifier(store *CodeStore, mailer Mailer, ttl, cooldown time.Duration, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Verifier{store: store, mailer: mailer, ttl: ttl, cooldown: cooldown, logger: logger}
}

// SendCode stores a fresh code and mails it. On any failure the code is dropped
// and false is returned; the caller decides whether to retry.
func (v *Verifier) SendCode(ctx context.Context, email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	if !v.store.CooldownTrySet(email, v.cooldown) {
		v.logger.Info("verification code throttled", zap.String("email", email))
		return false
	}
	code := GenerateVerificationCode(6)
	v.store.Save(email, code, v.ttl)

	body := fmt.Sprintf("您的验证码是：%s，%d 分钟内有效。", code, int(v.ttl.Minutes()))
	if err := v.mailer.Send(ctx, email, "论坛注册验证码", body); err != nil {
		v.store.Delete(email)
		v.store.ClearCooldown(email)
		v.logger.Warn("send verification code failed", zap.String("email", email), zap.Error(err))
		return false
	}
	v.logger.Info("verification code sent", zap.String("email", email))
	return true
}

// IsCodeValid checks and consumes a code.
func (v *Verifier) IsCodeValid(email, code string) bool {
	return v.store.VerifyAndConsume(normalizeEmail(email), strings.TrimSpace(code))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
