package middleware

import (
	"context"
	"net/http"

	"bizportal/internal/models"
	"bizportal/internal/service"
)

type ctxKey string

const (
	ctxRequestID      ctxKey = "request_id"
	ctxAccount        ctxKey = "account"
	ctxSessionToken   ctxKey = "session_token"
	ctxSessionContext ctxKey = "session_context"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

func WithAccount(ctx context.Context, a models.Account) context.Context {
	return context.WithValue(ctx, ctxAccount, a)
}

func Account(ctx context.Context) (models.Account, bool) {
	a, ok := ctx.Value(ctxAccount).(models.Account)
	return a, ok
}

func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxSessionToken, token)
}

func SessionToken(ctx context.Context) string {
	v, _ := ctx.Value(ctxSessionToken).(string)
	return v
}

func WithSessionContext(ctx context.Context, sc service.SessionContext) context.Context {
	return context.WithValue(ctx, ctxSessionContext, sc)
}

func SessionContext(ctx context.Context) service.SessionContext {
	sc, _ := ctx.Value(ctxSessionContext).(service.SessionContext)
	return sc
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
