package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/service"
	"bizportal/internal/util"
)

type loginRequest struct {
	Handle   string `json:"handle"`
	Secret   string `json:"secret"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	OK               bool           `json:"ok"`
	Profile          models.Profile `json:"profile"`
	Permissions      []string       `json:"permissions"`
	AntiForgeryToken string         `json:"anti_forgery_token"`
	ExpiresAt        time.Time      `json:"expires_at"`
}

type sessionResponse struct {
	OK               bool            `json:"ok"`
	Authenticated    bool            `json:"authenticated"`
	Profile          *models.Profile `json:"profile,omitempty"`
	Permissions      []string        `json:"permissions"`
	AntiForgeryToken string          `json:"anti_forgery_token,omitempty"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		h.writeBadJSON(w, r)
		return
	}
	res, sc, err := h.deps.Auth.Authenticate(r.Context(), service.LoginRequest{
		Handle:    req.Handle,
		Secret:    req.Secret,
		Remember:  req.Remember,
		ClientIP:  h.clientIP(r),
		UserAgent: r.UserAgent(),
	}, h.cookies.Context(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Without "remember" the token lives in a browser-session cookie and the
	// server-side expiry alone bounds it.
	var cookieExpiry time.Time
	if req.Remember {
		cookieExpiry = res.ExpiresAt
	}
	h.cookies.SetSession(w, r, res.SessionToken, cookieExpiry)
	h.setContextCookie(w, r, sc)
	util.WriteJSON(w, http.StatusOK, loginResponse{
		OK:               true,
		Profile:          res.Profile,
		Permissions:      res.Permissions,
		AntiForgeryToken: res.AntiForgeryToken,
		ExpiresAt:        res.ExpiresAt,
	})
}

// Logout always succeeds for the client and clears both cookies.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.cookies.SessionToken(r)
	var accountID string
	if acc, _, err := h.deps.Auth.ValidateSession(r.Context(), token, h.cookies.Context(r)); err == nil {
		accountID = acc.ID
	} else if !errors.Is(err, service.ErrUnauthenticated) {
		h.writeServiceError(w, r, err)
		return
	}
	if _, err := h.deps.Auth.Logout(r.Context(), token, accountID, h.clientIP(r), r.UserAgent()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.cookies.Clear(w, r)
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Session reports the signed-in state. Being signed out is a 200.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	prev := h.cookies.Context(r)
	st, sc, err := h.deps.Auth.SessionStatus(r.Context(), h.cookies.SessionToken(r), prev)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if sc != prev {
		h.setContextCookie(w, r, sc)
	}
	perms := st.Permissions
	if perms == nil {
		perms = []string{}
	}
	util.WriteJSON(w, http.StatusOK, sessionResponse{
		OK:               true,
		Authenticated:    st.Authenticated,
		Profile:          st.Profile,
		Permissions:      perms,
		AntiForgeryToken: st.AntiForgeryToken,
	})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Auth.RefreshSession(r.Context(), middleware.SessionToken(r.Context())); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) Permission(w http.ResponseWriter, r *http.Request) {
	acc, _ := middleware.Account(r.Context())
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	granted, err := h.deps.Auth.HasPermission(r.Context(), acc, key)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "key": key, "granted": granted})
}
