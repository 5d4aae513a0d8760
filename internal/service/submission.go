package service

import (
	"context"
	"math"
	netmail "net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"bizportal/internal/audit"
	"bizportal/internal/logging"
	"bizportal/internal/models"
	"bizportal/internal/notify"
)

const maxAnswerLen = 5000

var phoneRx = regexp.MustCompile(`^\+?[0-9 ()\-]{6,20}$`)

type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub models.Submission) (models.Submission, error)
	MarkSubmissionNotified(ctx context.Context, id string, at time.Time, notifyErr *string) error
	ListSubmissions(ctx context.Context, questionnaireID string, limit, offset int) ([]models.Submission, int, error)
}

type SubmissionService struct {
	forms  *QuestionnaireService
	store  SubmissionStore
	sender notify.Sender
	audit  *audit.Logger
	log    *zap.Logger
	nowFn  func() time.Time
}

func NewSubmissionService(forms *QuestionnaireService, st SubmissionStore, sender notify.Sender, auditLog *audit.Logger, log *zap.Logger) *SubmissionService {
	if sender == nil {
		sender = notify.LogSender{}
	}
	return &SubmissionService{forms: forms, store: st, sender: sender, audit: auditLog, log: logging.OrNop(log), nowFn: time.Now}
}

// Submit validates answers against the active questionnaire behind slug,
// stores them and notifies the form owner. A failed notification is kept on
// the submission row and does not fail the call.
func (s *SubmissionService) Submit(ctx context.Context, slug string, answers map[string]any, clientIP, userAgent string) (models.Submission, error) {
	q, err := s.forms.GetPublic(ctx, slug)
	if err != nil {
		return models.Submission{}, err
	}
	clean, err := ValidateAnswers(q.Questions, answers)
	if err != nil {
		return models.Submission{}, err
	}

	sub, err := s.store.CreateSubmission(ctx, models.Submission{
		QuestionnaireID: q.ID,
		Answers:         clean,
		ClientIP:        clientIP,
		UserAgent:       userAgent,
	})
	if err != nil {
		return models.Submission{}, internal("store submission", err)
	}

	notified := false
	if q.NotifyEmail != "" {
		notified = s.notify(ctx, q, &sub)
	}

	s.audit.Record(ctx, audit.Entry{
		Action:      audit.ActionSubmissionCreate,
		Detail:      map[string]any{"questionnaire_id": q.ID, "slug": q.Slug, "submission_id": sub.ID, "notified": notified},
		ClientIP:    clientIP,
		ClientAgent: userAgent,
		Success:     true,
	})
	return sub, nil
}

func (s *SubmissionService) notify(ctx context.Context, q models.Questionnaire, sub *models.Submission) bool {
	fields := make([]notify.Field, 0, len(q.Questions))
	for _, qu := range q.Questions {
		fields = append(fields, notify.Field{Label: qu.Label, Value: sub.Answers[qu.Key]})
	}
	sendErr := s.sender.SendSubmissionNotice(ctx, notify.Notice{
		To:                 q.NotifyEmail,
		QuestionnaireTitle: q.Title,
		QuestionnaireSlug:  q.Slug,
		SubmissionID:       sub.ID,
		SubmittedAt:        sub.CreatedAt,
		ClientIP:           sub.ClientIP,
		Fields:             fields,
	})

	now := s.nowFn().UTC()
	var msg *string
	if sendErr != nil {
		m := sendErr.Error()
		msg = &m
		sub.NotifyError = msg
		s.log.Warn("submission notice failed", zap.String("submission_id", sub.ID), zap.Error(sendErr))
	} else {
		sub.NotifiedAt = &now
	}
	if err := s.store.MarkSubmissionNotified(ctx, sub.ID, now, msg); err != nil {
		s.log.Warn("record notice outcome failed", zap.String("submission_id", sub.ID), zap.Error(err))
	}
	return sendErr == nil
}

func (s *SubmissionService) List(ctx context.Context, questionnaireID string, limit, offset int) ([]models.Submission, int, error) {
	if _, err := s.forms.Get(ctx, questionnaireID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > maxActivityLimit {
		limit = defaultActivityLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.ListSubmissions(ctx, questionnaireID, limit, offset)
	if err != nil {
		return nil, 0, internal("list submissions", err)
	}
	return items, total, nil
}

// ValidateAnswers checks raw JSON answers against the questions and returns
// them normalized to strings. Keys that match no question are rejected.
func ValidateAnswers(questions []models.Question, raw map[string]any) (map[string]string, error) {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.Key] = true
	}
	for k := range raw {
		if !known[k] {
			return nil, invalid(k, "unknown field")
		}
	}

	out := make(map[string]string, len(questions))
	for _, q := range questions {
		v, err := answerString(raw[q.Key])
		if err != nil {
			return nil, invalid(q.Key, err.Error())
		}
		if utf8.RuneCountInString(v) > maxAnswerLen {
			return nil, invalid(q.Key, "is too long")
		}
		if q.Kind == models.KindCheckbox {
			b := false
			if v != "" {
				if b, err = strconv.ParseBool(v); err != nil {
					return nil, invalid(q.Key, "must be true or false")
				}
			}
			if q.Required && !b {
				return nil, invalid(q.Key, "is required")
			}
			out[q.Key] = strconv.FormatBool(b)
			continue
		}
		if v == "" {
			if q.Required {
				return nil, invalid(q.Key, "is required")
			}
			out[q.Key] = ""
			continue
		}
		switch q.Kind {
		case models.KindEmail:
			addr, err := netmail.ParseAddress(v)
			if err != nil || addr.Address != v {
				return nil, invalid(q.Key, "is not a valid email address")
			}
		case models.KindPhone:
			if !phoneRx.MatchString(v) {
				return nil, invalid(q.Key, "is not a valid phone number")
			}
		case models.KindNumber:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, invalid(q.Key, "is not a number")
			}
		case models.KindSelect:
			if !containsString(q.Options, v) {
				return nil, invalid(q.Key, "is not one of the allowed options")
			}
		}
		out[q.Key] = v
	}
	return out, nil
}

func answerString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", errUnsupportedAnswer
	}
}

var errUnsupportedAnswer = &ValidationError{Reason: "must be a string, number or boolean"}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
