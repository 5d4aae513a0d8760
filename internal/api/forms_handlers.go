package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bizportal/internal/captcha"
	"bizportal/internal/i18n"
	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/service"
	"bizportal/internal/util"
)

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &service.ValidationError{Field: name, Reason: "must be an RFC 3339 timestamp"}
	}
	return t.UTC(), nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseActivityQuery(r *http.Request) (models.ActivityQuery, error) {
	qs := r.URL.Query()
	q := models.ActivityQuery{
		Q:       strings.TrimSpace(qs.Get("q")),
		ActorID: strings.TrimSpace(qs.Get("actor_id")),
		Action:  strings.TrimSpace(qs.Get("action")),
		Order:   qs.Get("order"),
	}
	if raw := strings.TrimSpace(qs.Get("success")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, &service.ValidationError{Field: "success", Reason: "must be true or false"}
		}
		q.Success = &b
	}
	var err error
	if q.From, err = queryTime(r, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryTime(r, "to"); err != nil {
		return q, err
	}
	if q.Limit, q.Offset, err = pageParams(r); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handlers) ListActivity(w http.ResponseWriter, r *http.Request) {
	q, err := parseActivityQuery(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	items, total, err := h.deps.Activity.List(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.ActivityRecord{}
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items, "total": total})
}

func (h *Handlers) ListQuestionnaires(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	items, total, err := h.deps.Questionnaires.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Questionnaire{}
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items, "total": total})
}

func (h *Handlers) GetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	q, err := h.deps.Questionnaires.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "questionnaire": q})
}

func (h *Handlers) CreateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var in service.QuestionnaireInput
	if err := util.DecodeJSON(r, &in); err != nil {
		h.writeBadJSON(w, r)
		return
	}
	q, err := h.deps.Questionnaires.Create(r.Context(), h.actor(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "questionnaire": q})
}

func (h *Handlers) UpdateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var in service.QuestionnaireInput
	if err := util.DecodeJSON(r, &in); err != nil {
		h.writeBadJSON(w, r)
		return
	}
	q, err := h.deps.Questionnaires.Update(r.Context(), h.actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "questionnaire": q})
}

func (h *Handlers) DeleteQuestionnaire(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Questionnaires.Delete(r.Context(), h.actor(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	items, total, err := h.deps.Submissions.List(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Submission{}
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items, "total": total})
}

// publicForm is what anonymous visitors see. Owner details stay private.
type publicForm struct {
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Questions   []models.Question `json:"questions"`
}

func (h *Handlers) PublicForm(w http.ResponseWriter, r *http.Request) {
	q, err := h.deps.Questionnaires.GetPublic(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "form": publicForm{
		Slug:        q.Slug,
		Title:       q.Title,
		Description: q.Description,
		Questions:   q.Questions,
	}})
}

type submitRequest struct {
	Answers      map[string]any `json:"answers"`
	CaptchaToken string         `json:"captcha_token"`
}

func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		h.writeBadJSON(w, r)
		return
	}
	ip := h.clientIP(r)
	if err := h.deps.Captcha.Verify(r.Context(), req.CaptchaToken, ip); err != nil {
		rid := middleware.RequestID(r.Context())
		if errors.Is(err, captcha.ErrUnavailable) {
			h.log.Error("captcha provider unavailable", zap.String("request_id", rid), zap.Error(err))
			util.WriteError(w, http.StatusServiceUnavailable, "captcha_unavailable", h.loc.Sprintf(r, i18n.Internal), rid)
			return
		}
		util.WriteError(w, http.StatusBadRequest, "captcha_failed", h.loc.Sprintf(r, i18n.CaptchaFailed), rid)
		return
	}
	sub, err := h.deps.Submissions.Submit(r.Context(), chi.URLParam(r, "slug"), req.Answers, ip, r.UserAgent())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": sub.ID, "created_at": sub.CreatedAt})
}
