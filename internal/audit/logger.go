// Package audit appends activity records. Recording never fails the caller;
// problems go to the diagnostic logger only.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bizportal/internal/logging"
	"bizportal/internal/models"
	"bizportal/internal/store"
)

const (
	ActionLogin               = "login"
	ActionLogout              = "logout"
	ActionSessionCreate       = "session.create"
	ActionQuestionnaireCreate = "questionnaire.create"
	ActionQuestionnaireUpdate = "questionnaire.update"
	ActionQuestionnaireDelete = "questionnaire.delete"
	ActionSubmissionCreate    = "submission.create"
)

type Sink interface {
	InsertActivity(ctx context.Context, rec models.ActivityRecord) error
	EnsureActivityTable(ctx context.Context) error
}

type Entry struct {
	ActorID     *string
	Action      string
	Detail      any
	ClientIP    string
	ClientAgent string
	Success     bool
}

type Logger struct {
	sink  Sink
	log   *zap.Logger
	nowFn func() time.Time
}

func NewLogger(sink Sink, log *zap.Logger) *Logger {
	return &Logger{sink: sink, log: logging.OrNop(log), nowFn: time.Now}
}

// Record writes e. A missing activity table is created and the insert retried once.
func (l *Logger) Record(ctx context.Context, e Entry) {
	rec := models.ActivityRecord{
		ID:          uuid.NewString(),
		ActorID:     e.ActorID,
		Action:      e.Action,
		ClientIP:    e.ClientIP,
		ClientAgent: e.ClientAgent,
		Success:     e.Success,
		CreatedAt:   l.nowFn().UTC(),
	}
	if e.Detail != nil {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			l.log.Warn("audit detail encode failed", zap.String("action", e.Action), zap.Error(err))
		} else {
			s := string(raw)
			rec.Detail = &s
		}
	}

	err := l.sink.InsertActivity(ctx, rec)
	if err != nil && store.IsMissingTable(err) {
		if perr := l.sink.EnsureActivityTable(ctx); perr != nil {
			l.log.Warn("audit table provisioning failed", zap.Error(perr))
			return
		}
		err = l.sink.InsertActivity(ctx, rec)
	}
	if err != nil {
		l.log.Warn("audit record dropped", zap.String("action", e.Action), zap.Error(err))
	}
}
