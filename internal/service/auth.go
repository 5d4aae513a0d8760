package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bizportal/internal/audit"
	"bizportal/internal/auth"
	"bizportal/internal/config"
	"bizportal/internal/logging"
	"bizportal/internal/models"
	"bizportal/internal/permission"
	"bizportal/internal/store"
)

// AuthStore is the persistence the auth flow needs. *store.Store satisfies it.
type AuthStore interface {
	GetActiveAccountByHandle(ctx context.Context, handle string) (models.Account, error)
	GetAccountByID(ctx context.Context, id string) (models.Account, error)
	RecordFailedAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	ClearLockout(ctx context.Context, id string) error
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error

	CreateSession(ctx context.Context, sess models.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (models.Session, error)
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error
	DeactivateSession(ctx context.Context, tokenHash, accountID string) (bool, error)
}

type LoginRequest struct {
	Handle    string
	Secret    string
	Remember  bool
	ClientIP  string
	UserAgent string
}

type LoginResult struct {
	Profile          models.Profile
	Permissions      []string
	AntiForgeryToken string
	SessionToken     string
	ExpiresAt        time.Time
}

type StatusResult struct {
	Authenticated    bool
	Profile          *models.Profile
	Permissions      []string
	AntiForgeryToken string
}

type AuthService struct {
	store  AuthStore
	perms  *permission.Resolver
	audit  *audit.Logger
	log    *zap.Logger
	tracer trace.Tracer
	nowFn  func() time.Time

	sessionTTL       time.Duration
	rememberTTL      time.Duration
	lockoutDuration  time.Duration
	lockoutThreshold int
}

func NewAuthService(cfg config.Config, st AuthStore, perms *permission.Resolver, auditLog *audit.Logger, log *zap.Logger) *AuthService {
	return &AuthService{
		store:            st,
		perms:            perms,
		audit:            auditLog,
		log:              logging.OrNop(log),
		tracer:           otel.Tracer("bizportal/internal/service"),
		nowFn:            time.Now,
		sessionTTL:       cfg.SessionTTL(),
		rememberTTL:      cfg.RememberTTL(),
		lockoutDuration:  cfg.LockoutDuration(),
		lockoutThreshold: cfg.LockoutThreshold,
	}
}

// Authenticate checks a handle/secret pair and opens a session.
//
// Failed attempts are counted per account; reaching the threshold locks the
// account for the lockout duration. The counter update is a plain
// read-modify-write, so concurrent failures against one account can be
// under-counted. A lock that has already expired is cleared and the counter
// starts over for the current attempt.
//
// On success the returned SessionContext is brand new, so any context the
// client held before login cannot be replayed.
func (s *AuthService) Authenticate(ctx context.Context, req LoginRequest, sc SessionContext) (LoginResult, SessionContext, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Authenticate")
	defer span.End()

	handle := strings.TrimSpace(req.Handle)
	if handle == "" || req.Secret == "" {
		return LoginResult{}, sc, invalid("handle", "handle and secret are required")
	}

	acc, err := s.store.GetActiveAccountByHandle(ctx, handle)
	if errors.Is(err, store.ErrNotFound) {
		s.recordLogin(ctx, nil, req, false, "invalid_credentials")
		return LoginResult{}, sc, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, sc, s.fail(span, internal("lookup account", err))
	}
	span.SetAttributes(attribute.String("account.id", acc.ID))

	now := s.nowFn().UTC()
	attempts := acc.FailedAttempts
	if acc.LockedUntil != nil {
		if now.Before(*acc.LockedUntil) {
			s.recordLogin(ctx, nil, req, false, "locked")
			return LoginResult{}, sc, &LockedError{Until: *acc.LockedUntil}
		}
		attempts = 0
		if err := s.store.ClearLockout(ctx, acc.ID); err != nil {
			return LoginResult{}, sc, s.fail(span, internal("clear expired lockout", err))
		}
	}

	if !auth.VerifyPassword(acc.PasswordHash, req.Secret) {
		attempts++
		var until *time.Time
		if attempts >= s.lockoutThreshold {
			t := now.Add(s.lockoutDuration)
			until = &t
			s.log.Warn("account locked",
				zap.String("account_id", acc.ID),
				zap.Int("failed_attempts", attempts),
				zap.Time("locked_until", t),
				zap.String("client_ip", req.ClientIP),
			)
		}
		if err := s.store.RecordFailedAttempt(ctx, acc.ID, attempts, until); err != nil {
			return LoginResult{}, sc, s.fail(span, internal("record failed attempt", err))
		}
		s.recordLogin(ctx, nil, req, false, "invalid_credentials")
		return LoginResult{}, sc, ErrInvalidCredentials
	}

	if err := s.store.RecordSuccessfulLogin(ctx, acc.ID, now); err != nil {
		return LoginResult{}, sc, s.fail(span, internal("record login", err))
	}
	acc.FailedAttempts = 0
	acc.LockedUntil = nil
	acc.LastLoginAt = &now

	// Everything that can fail runs before the session row exists.
	perms, err := s.perms.PermissionsFor(ctx, acc.Role)
	if err != nil {
		return LoginResult{}, sc, s.fail(span, internal("resolve permissions", err))
	}
	next, err := NewSessionContext().withAntiForgeryToken()
	if err != nil {
		return LoginResult{}, sc, s.fail(span, internal("issue anti-forgery token", err))
	}
	next.AccountID = acc.ID

	token, sess, err := s.CreateSession(ctx, acc.ID, req.Remember, req.ClientIP, req.UserAgent)
	if err != nil {
		return LoginResult{}, sc, s.fail(span, err)
	}

	s.recordLogin(ctx, &acc.ID, req, true, "")
	return LoginResult{
		Profile:          acc.Profile(),
		Permissions:      perms,
		AntiForgeryToken: next.AntiForgeryToken,
		SessionToken:     token,
		ExpiresAt:        sess.ExpiresAt,
	}, next, nil
}

// CreateSession persists a new session for accountID and returns its raw
// token. Only the token hash is stored.
func (s *AuthService) CreateSession(ctx context.Context, accountID string, remember bool, clientIP, userAgent string) (string, models.Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.CreateSession")
	defer span.End()

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", models.Session{}, s.fail(span, internal("generate session token", err))
	}
	now := s.nowFn().UTC()
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}
	sess := models.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: hash,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Active:    true,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", models.Session{}, s.fail(span, internal("create session", err))
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:     &accountID,
		Action:      audit.ActionSessionCreate,
		Detail:      map[string]any{"token_prefix": auth.TokenPrefix(raw), "remember": remember},
		ClientIP:    clientIP,
		ClientAgent: userAgent,
		Success:     true,
	})
	return raw, sess, nil
}

// ValidateSession resolves token to its account. A missing, unknown, expired
// or inactive session, or a disabled owner, yields ErrUnauthenticated. On
// success the context is given an anti-forgery token if it has none.
func (s *AuthService) ValidateSession(ctx context.Context, token string, sc SessionContext) (models.Account, SessionContext, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ValidateSession")
	defer span.End()

	sess, err := s.activeSession(ctx, token)
	if err != nil {
		return models.Account{}, sc, s.fail(span, err)
	}
	acc, err := s.store.GetAccountByID(ctx, sess.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, sc, ErrUnauthenticated
	}
	if err != nil {
		return models.Account{}, sc, s.fail(span, internal("load session owner", err))
	}
	if acc.Status != models.AccountActive {
		return models.Account{}, sc, ErrUnauthenticated
	}

	// A context bound to another account is discarded rather than reused.
	if sc.AccountID != "" && sc.AccountID != acc.ID {
		sc = NewSessionContext()
	}
	next, err := sc.withAntiForgeryToken()
	if err != nil {
		return models.Account{}, sc, s.fail(span, internal("issue anti-forgery token", err))
	}
	next.AccountID = acc.ID
	return acc, next, nil
}

// SessionStatus reports whether token authenticates anyone. Being signed out
// is a normal result, not an error.
func (s *AuthService) SessionStatus(ctx context.Context, token string, sc SessionContext) (StatusResult, SessionContext, error) {
	acc, next, err := s.ValidateSession(ctx, token, sc)
	if errors.Is(err, ErrUnauthenticated) {
		return StatusResult{Authenticated: false}, sc, nil
	}
	if err != nil {
		return StatusResult{}, sc, err
	}
	perms, err := s.perms.PermissionsFor(ctx, acc.Role)
	if err != nil {
		return StatusResult{}, sc, internal("resolve permissions", err)
	}
	p := acc.Profile()
	return StatusResult{
		Authenticated:    true,
		Profile:          &p,
		Permissions:      perms,
		AntiForgeryToken: next.AntiForgeryToken,
	}, next, nil
}

// RefreshSession moves the expiry to now plus the regular session lifetime.
// An expiry already further out (a remembered session) is left alone, so a
// refresh never shortens a session. An empty token is a no-op.
func (s *AuthService) RefreshSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	ctx, span := s.startSpan(ctx, "AuthService.RefreshSession")
	defer span.End()

	sess, err := s.activeSession(ctx, token)
	if err != nil {
		return s.fail(span, err)
	}
	next := s.nowFn().UTC().Add(s.sessionTTL)
	if !next.After(sess.ExpiresAt) {
		return nil
	}
	if err := s.store.UpdateSessionExpiry(ctx, sess.ID, next); err != nil {
		return s.fail(span, internal("extend session", err))
	}
	return nil
}

// Logout deactivates the session behind token and always hands back an empty
// context, even when the session was already gone.
func (s *AuthService) Logout(ctx context.Context, token, accountID, clientIP, userAgent string) (SessionContext, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return SessionContext{}, nil
	}
	changed, err := s.store.DeactivateSession(ctx, auth.HashToken(token), accountID)
	if err != nil {
		return SessionContext{}, s.fail(span, internal("deactivate session", err))
	}
	var actor *string
	if accountID != "" {
		actor = &accountID
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor,
		Action:      audit.ActionLogout,
		Detail:      map[string]any{"token_prefix": auth.TokenPrefix(token)},
		ClientIP:    clientIP,
		ClientAgent: userAgent,
		Success:     changed,
	})
	return SessionContext{}, nil
}

func (s *AuthService) HasPermission(ctx context.Context, acc models.Account, key string) (bool, error) {
	ok, err := s.perms.Has(ctx, acc.Role, key)
	if err != nil {
		return false, internal("check permission", err)
	}
	return ok, nil
}

func (s *AuthService) activeSession(ctx context.Context, token string) (models.Session, error) {
	if strings.TrimSpace(token) == "" {
		return models.Session{}, ErrUnauthenticated
	}
	sess, err := s.store.GetSessionByTokenHash(ctx, auth.HashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return models.Session{}, ErrUnauthenticated
	}
	if err != nil {
		return models.Session{}, internal("load session", err)
	}
	if !sess.ValidAt(s.nowFn().UTC()) {
		return models.Session{}, ErrUnauthenticated
	}
	return sess, nil
}

func (s *AuthService) recordLogin(ctx context.Context, actor *string, req LoginRequest, ok bool, reason string) {
	detail := map[string]any{"handle": strings.ToLower(strings.TrimSpace(req.Handle)), "remember": req.Remember}
	if reason != "" {
		detail["reason"] = reason
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor,
		Action:      audit.ActionLogin,
		Detail:      detail,
		ClientIP:    req.ClientIP,
		ClientAgent: req.UserAgent,
		Success:     ok,
	})
}

// fail marks unexpected errors on the span. Expected negative outcomes are
// returned untouched.
func (s *AuthService) fail(span trace.Span, err error) error {
	if errors.Is(err, ErrInternal) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal")
		s.log.Error("auth operation failed", zap.Error(err))
	}
	return err
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}
