package middleware

import (
	"net/http"
	"time"

	"bizportal/internal/config"
	"bizportal/internal/service"
	"bizportal/internal/util"
)

// Cookies reads and writes the session token cookie and the sealed
// SessionContext cookie.
type Cookies struct {
	cfg config.Config
	key []byte
}

func NewCookies(cfg config.Config) Cookies {
	return Cookies{cfg: cfg, key: util.Derive32ByteKey(cfg.SessionEncryptKey)}
}

func (c Cookies) SessionToken(r *http.Request) string {
	ck, err := r.Cookie(c.cfg.SessionCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c Cookies) Context(r *http.Request) service.SessionContext {
	ck, err := r.Cookie(c.cfg.ContextCookieName)
	if err != nil {
		return service.SessionContext{}
	}
	return service.OpenSessionContext(c.key, ck.Value)
}

// SetSession writes the raw session token. A zero expiresAt makes it a
// browser-session cookie.
func (c Cookies) SetSession(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.ResolveCookieSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt.UTC(),
	})
}

// SetContext writes sc, or clears the cookie when sc is zero.
func (c Cookies) SetContext(w http.ResponseWriter, r *http.Request, sc service.SessionContext) error {
	if sc.IsZero() {
		c.expire(w, r, c.cfg.ContextCookieName)
		return nil
	}
	sealed, err := service.SealSessionContext(c.key, sc)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.ContextCookieName,
		Value:    sealed,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.ResolveCookieSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c Cookies) Clear(w http.ResponseWriter, r *http.Request) {
	c.expire(w, r, c.cfg.SessionCookieName)
	c.expire(w, r, c.cfg.ContextCookieName)
}

func (c Cookies) expire(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.cfg.ResolveCookieSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(1, 0).UTC(),
	})
}
