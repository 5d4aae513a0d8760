package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"bizportal/internal/captcha"
	"bizportal/internal/config"
	"bizportal/internal/i18n"
	"bizportal/internal/logging"
	"bizportal/internal/middleware"
	"bizportal/internal/permission"
	"bizportal/internal/rate"
	"bizportal/internal/service"
	"bizportal/internal/util"
	"bizportal/internal/version"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Auth           *service.AuthService
	Activity       *service.ActivityService
	Questionnaires *service.QuestionnaireService
	Submissions    *service.SubmissionService
	DB             Pinger
	// SMTPProbe is optional. When set, readiness reports the relay but
	// does not fail on it.
	SMTPProbe func(ctx context.Context) error
	Captcha   captcha.Verifier
	Log       *zap.Logger
}

type Handlers struct {
	cfg     config.Config
	deps    Deps
	limiter *rate.Limiter
	cookies middleware.Cookies
	loc     *i18n.Localizer
	log     *zap.Logger
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	if deps.Captcha == nil {
		deps.Captcha = captcha.NewVerifier(cfg)
	}
	h := &Handlers{
		cfg:     cfg,
		deps:    deps,
		limiter: rate.NewLimiter(),
		cookies: middleware.NewCookies(cfg),
		loc:     i18n.New(cfg.DefaultLocale),
		log:     logging.OrNop(deps.Log),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(h.log, cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-CSRF-Token", "Accept-Language"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	authn := middleware.Authn(deps.Auth, h.cookies, h.loc, h.log)
	csrf := middleware.CSRF(h.loc)
	need := func(key string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(deps.Auth, key, h.loc, h.log)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(h.limiter, "login", 20, time.Minute, cfg.TrustProxy, h.loc)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/permissions/{key}", h.Permission)
				r.With(csrf).Post("/refresh", h.Refresh)
			})
		})

		r.Route("/forms/{slug}", func(r chi.Router) {
			r.Get("/", h.PublicForm)
			r.With(middleware.RateLimit(h.limiter, "submit", 10, time.Minute, cfg.TrustProxy, h.loc)).Post("/submissions", h.Submit)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.With(need(permission.ActivityView)).Get("/activity", h.ListActivity)

			r.Route("/questionnaires", func(r chi.Router) {
				r.With(need(permission.QuestionnaireView)).Get("/", h.ListQuestionnaires)
				r.With(need(permission.QuestionnaireView)).Get("/{id}", h.GetQuestionnaire)
				r.With(need(permission.SubmissionView)).Get("/{id}/submissions", h.ListSubmissions)
				r.Group(func(r chi.Router) {
					r.Use(need(permission.QuestionnaireManage), csrf)
					r.Post("/", h.CreateQuestionnaire)
					r.Put("/{id}", h.UpdateQuestionnaire)
					r.Delete("/{id}", h.DeleteQuestionnaire)
				})
			})
		})
	})

	return r
}

func (h *Handlers) Live(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ok", "version": version.Current()})
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	comps := map[string]any{}
	ready := true
	if err := h.deps.DB.Ping(ctx); err != nil {
		ready = false
		h.log.Warn("readiness: database ping failed", zap.Error(err))
		comps["database"] = map[string]any{"ok": false}
	} else {
		comps["database"] = map[string]any{"ok": true}
	}
	if h.deps.SMTPProbe != nil {
		if err := h.deps.SMTPProbe(ctx); err != nil {
			h.log.Warn("readiness: smtp probe failed", zap.Error(err))
			comps["smtp"] = map[string]any{"ok": false}
		} else {
			comps["smtp"] = map[string]any{"ok": true}
		}
	}

	body := map[string]any{
		"ok":         ready,
		"checked_at": time.Now().UTC().Format(time.RFC3339),
		"components": comps,
	}
	if ready {
		body["status"] = "ready"
		util.WriteJSON(w, http.StatusOK, body)
		return
	}
	body["status"] = "degraded"
	util.WriteJSON(w, http.StatusServiceUnavailable, body)
}

func (h *Handlers) clientIP(r *http.Request) string {
	return middleware.ClientIP(r, h.cfg.TrustProxy)
}

func (h *Handlers) actor(r *http.Request) service.Actor {
	acc, _ := middleware.Account(r.Context())
	return service.Actor{AccountID: acc.ID, ClientIP: h.clientIP(r), UserAgent: r.UserAgent()}
}

func (h *Handlers) setContextCookie(w http.ResponseWriter, r *http.Request, sc service.SessionContext) {
	if err := h.cookies.SetContext(w, r, sc); err != nil {
		h.log.Warn("seal session context failed", zap.String("request_id", middleware.RequestID(r.Context())), zap.Error(err))
	}
}
