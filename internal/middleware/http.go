package middleware

import (
	"crypto/subtle"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bizportal/internal/i18n"
	"bizportal/internal/logging"
	"bizportal/internal/rate"
	"bizportal/internal/service"
	"bizportal/internal/util"
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.NewString()
		r = r.WithContext(WithRequestID(r.Context(), rid))
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// Authn requires a valid session cookie. The account, raw token and the
// (possibly refreshed) SessionContext are placed on the request context.
func Authn(auth *service.AuthService, cookies Cookies, loc *i18n.Localizer, log *zap.Logger) func(http.Handler) http.Handler {
	log = logging.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.SessionToken(r)
			prev := cookies.Context(r)
			acc, sc, err := auth.ValidateSession(r.Context(), token, prev)
			if errors.Is(err, service.ErrUnauthenticated) {
				util.WriteError(w, http.StatusUnauthorized, "unauthenticated", loc.Sprintf(r, i18n.Unauthenticated), RequestID(r.Context()))
				return
			}
			if err != nil {
				log.Error("session validation failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
				util.WriteError(w, http.StatusInternalServerError, "internal", loc.Sprintf(r, i18n.Internal), RequestID(r.Context()))
				return
			}
			if sc != prev {
				if err := cookies.SetContext(w, r, sc); err != nil {
					log.Warn("seal session context failed", zap.Error(err))
				}
			}
			ctx := WithAccount(r.Context(), acc)
			ctx = WithSessionToken(ctx, token)
			ctx = WithSessionContext(ctx, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission must run after Authn.
func RequirePermission(auth *service.AuthService, key string, loc *i18n.Localizer, log *zap.Logger) func(http.Handler) http.Handler {
	log = logging.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc, ok := Account(r.Context())
			if !ok {
				util.WriteError(w, http.StatusUnauthorized, "unauthenticated", loc.Sprintf(r, i18n.Unauthenticated), RequestID(r.Context()))
				return
			}
			allowed, err := auth.HasPermission(r.Context(), acc, key)
			if err != nil {
				log.Error("permission check failed", zap.String("permission", key), zap.Error(err))
				util.WriteError(w, http.StatusInternalServerError, "internal", loc.Sprintf(r, i18n.Internal), RequestID(r.Context()))
				return
			}
			if !allowed {
				util.WriteError(w, http.StatusForbidden, "forbidden", loc.Sprintf(r, i18n.Forbidden), RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRF compares X-CSRF-Token on state-changing requests with the
// anti-forgery token of the SessionContext Authn resolved.
func CSRF(loc *i18n.Localizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			want := SessionContext(r.Context()).AntiForgeryToken
			got := r.Header.Get("X-CSRF-Token")
			if want == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				util.WriteError(w, http.StatusForbidden, "csrf_failed", loc.Sprintf(r, i18n.CSRFFailed), RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RateLimit(l *rate.Limiter, route string, limit int, window time.Duration, trustProxy bool, loc *i18n.Localizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + ClientIP(r, trustProxy)
			if ok, retry := l.Allow(key, limit, window); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				util.WriteError(w, http.StatusTooManyRequests, "rate_limited", loc.Sprintf(r, i18n.RateLimited), RequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request at a level chosen by status class.
func RequestLogger(log *zap.Logger, trustProxy bool) func(http.Handler) http.Handler {
	log = logging.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			level := zapcore.InfoLevel
			switch {
			case sr.status >= 500:
				level = zapcore.ErrorLevel
			case sr.status >= 400:
				level = zapcore.WarnLevel
			}
			if ce := log.Check(level, "http_request"); ce != nil {
				ce.Write(
					zap.String("request_id", RequestID(r.Context())),
					zap.Int("status", sr.status),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("latency", time.Since(start)),
					zap.String("client_ip", ClientIP(r, trustProxy)),
					zap.String("user_agent", r.UserAgent()),
				)
			}
		})
	}
}
