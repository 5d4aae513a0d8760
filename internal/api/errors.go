package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bizportal/internal/i18n"
	"bizportal/internal/middleware"
	"bizportal/internal/service"
	"bizportal/internal/util"
)

// writeServiceError maps service errors to a status and a localized message.
// Anything unrecognized is logged with its cause and reported as internal.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	var locked *service.LockedError
	var verr *service.ValidationError
	switch {
	case errors.As(err, &locked):
		until := locked.Until.UTC()
		util.WriteJSON(w, http.StatusLocked, util.APIError{
			Code:        "account_locked",
			Error:       h.loc.Sprintf(r, i18n.AccountLocked, until.Format(time.RFC3339)),
			LockedUntil: &until,
			RequestID:   rid,
		})
	case errors.As(err, &verr):
		util.WriteJSON(w, http.StatusBadRequest, util.APIError{
			Code:      "invalid_input",
			Error:     h.loc.Sprintf(r, i18n.InvalidInput),
			Field:     verr.Field,
			RequestID: rid,
		})
	case errors.Is(err, service.ErrValidation):
		util.WriteError(w, http.StatusBadRequest, "invalid_input", h.loc.Sprintf(r, i18n.InvalidInput), rid)
	case errors.Is(err, service.ErrInvalidCredentials):
		util.WriteError(w, http.StatusUnauthorized, "invalid_credentials", h.loc.Sprintf(r, i18n.InvalidCredentials), rid)
	case errors.Is(err, service.ErrUnauthenticated):
		util.WriteError(w, http.StatusUnauthorized, "unauthenticated", h.loc.Sprintf(r, i18n.Unauthenticated), rid)
	case errors.Is(err, service.ErrForbidden):
		util.WriteError(w, http.StatusForbidden, "forbidden", h.loc.Sprintf(r, i18n.Forbidden), rid)
	case errors.Is(err, service.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "not_found", h.loc.Sprintf(r, i18n.NotFound), rid)
	case errors.Is(err, service.ErrConflict):
		util.WriteError(w, http.StatusConflict, "conflict", h.loc.Sprintf(r, i18n.Conflict), rid)
	default:
		h.log.Error("request failed",
			zap.String("request_id", rid),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		util.WriteError(w, http.StatusInternalServerError, "internal", h.loc.Sprintf(r, i18n.Internal), rid)
	}
}

func (h *Handlers) writeBadJSON(w http.ResponseWriter, r *http.Request) {
	util.WriteError(w, http.StatusBadRequest, "bad_json", h.loc.Sprintf(r, i18n.BadJSON), middleware.RequestID(r.Context()))
}
