package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bizportal/internal/auth"
	"bizportal/internal/config"
)

type AdminStore interface {
	EnsureAdmin(ctx context.Context, username, email, passwordHash string) error
}

// EnsureBootstrapAdmin creates or repairs the configured administrator. It
// does nothing when no bootstrap password is configured.
func EnsureBootstrapAdmin(ctx context.Context, cfg config.Config, st AdminStore, log *zap.Logger) error {
	if strings.TrimSpace(cfg.BootstrapAdminPassword) == "" {
		return nil
	}
	if err := ValidatePassword(cfg.BootstrapAdminPassword, cfg.PasswordMinLength, cfg.PasswordMaxLength); err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}
	hash, err := auth.HashPassword(cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	if err := st.EnsureAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminEmail, hash); err != nil {
		return fmt.Errorf("ensure bootstrap admin: %w", err)
	}
	if log != nil {
		log.Info("bootstrap admin ensured", zap.String("username", strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminUsername))))
	}
	return nil
}

// ValidatePassword enforces length bounds and at least three character
// classes out of lower, upper, digit and symbol.
func ValidatePassword(pw string, minLen, maxLen int) error {
	pw = strings.TrimSpace(pw)
	if pw == "" {
		return errors.New("password is required")
	}
	if len(pw) < minLen {
		return fmt.Errorf("password must be at least %d characters", minLen)
	}
	if len(pw) > maxLen {
		return fmt.Errorf("password must be at most %d characters", maxLen)
	}
	classes := 0
	if strings.IndexFunc(pw, func(r rune) bool { return r >= 'a' && r <= 'z' }) >= 0 {
		classes++
	}
	if strings.IndexFunc(pw, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0 {
		classes++
	}
	if strings.IndexFunc(pw, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
		classes++
	}
	if strings.IndexFunc(pw, func(r rune) bool {
		return (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126)
	}) >= 0 {
		classes++
	}
	if classes < 3 {
		return errors.New("password must include at least 3 character classes (lower/upper/number/symbol)")
	}
	return nil
}
