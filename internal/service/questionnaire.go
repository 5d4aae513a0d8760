package service

import (
	"context"
	"errors"
	netmail "net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"bizportal/internal/audit"
	"bizportal/internal/models"
	"bizportal/internal/store"
)

var (
	slugRx        = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)
	questionKeyRx = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
)

const (
	maxTitleLen     = 200
	maxLabelLen     = 300
	maxQuestions    = 100
	maxSelectOption = 50
)

var questionKinds = map[models.QuestionKind]bool{
	models.KindText:     true,
	models.KindTextarea: true,
	models.KindEmail:    true,
	models.KindPhone:    true,
	models.KindNumber:   true,
	models.KindSelect:   true,
	models.KindCheckbox: true,
}

type QuestionnaireStore interface {
	CreateQuestionnaire(ctx context.Context, q models.Questionnaire) (models.Questionnaire, error)
	UpdateQuestionnaire(ctx context.Context, q models.Questionnaire) (models.Questionnaire, error)
	GetQuestionnaire(ctx context.Context, id string) (models.Questionnaire, error)
	GetQuestionnaireBySlug(ctx context.Context, slug string) (models.Questionnaire, error)
	ListQuestionnaires(ctx context.Context, limit, offset int) ([]models.Questionnaire, int, error)
	DeleteQuestionnaire(ctx context.Context, id string) error
}

// Actor identifies who performs a mutation and from where.
type Actor struct {
	AccountID string
	ClientIP  string
	UserAgent string
}

type QuestionnaireInput struct {
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	NotifyEmail string            `json:"notify_email"`
	Active      *bool             `json:"active"`
	Questions   []models.Question `json:"questions"`
}

type QuestionnaireService struct {
	store QuestionnaireStore
	audit *audit.Logger
}

func NewQuestionnaireService(st QuestionnaireStore, auditLog *audit.Logger) *QuestionnaireService {
	return &QuestionnaireService{store: st, audit: auditLog}
}

func (s *QuestionnaireService) Create(ctx context.Context, actor Actor, in QuestionnaireInput) (models.Questionnaire, error) {
	q, err := buildQuestionnaire(in)
	if err != nil {
		return models.Questionnaire{}, err
	}
	q.CreatedBy = actor.AccountID
	created, err := s.store.CreateQuestionnaire(ctx, q)
	if err != nil {
		return models.Questionnaire{}, mapStoreErr("create questionnaire", err)
	}
	s.record(ctx, actor, audit.ActionQuestionnaireCreate, created)
	return created, nil
}

// Update replaces every editable field and the full question list.
func (s *QuestionnaireService) Update(ctx context.Context, actor Actor, id string, in QuestionnaireInput) (models.Questionnaire, error) {
	q, err := buildQuestionnaire(in)
	if err != nil {
		return models.Questionnaire{}, err
	}
	q.ID = id
	updated, err := s.store.UpdateQuestionnaire(ctx, q)
	if err != nil {
		return models.Questionnaire{}, mapStoreErr("update questionnaire", err)
	}
	s.record(ctx, actor, audit.ActionQuestionnaireUpdate, updated)
	return updated, nil
}

func (s *QuestionnaireService) Get(ctx context.Context, id string) (models.Questionnaire, error) {
	q, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return models.Questionnaire{}, mapStoreErr("get questionnaire", err)
	}
	return q, nil
}

// GetPublic returns an active questionnaire by slug. Inactive forms read as missing.
func (s *QuestionnaireService) GetPublic(ctx context.Context, slug string) (models.Questionnaire, error) {
	q, err := s.store.GetQuestionnaireBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return models.Questionnaire{}, mapStoreErr("get questionnaire by slug", err)
	}
	if !q.Active {
		return models.Questionnaire{}, ErrNotFound
	}
	return q, nil
}

func (s *QuestionnaireService) List(ctx context.Context, limit, offset int) ([]models.Questionnaire, int, error) {
	if limit <= 0 || limit > maxActivityLimit {
		limit = defaultActivityLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.ListQuestionnaires(ctx, limit, offset)
	if err != nil {
		return nil, 0, internal("list questionnaires", err)
	}
	return items, total, nil
}

func (s *QuestionnaireService) Delete(ctx context.Context, actor Actor, id string) error {
	q, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return mapStoreErr("load questionnaire", err)
	}
	if err := s.store.DeleteQuestionnaire(ctx, id); err != nil {
		return mapStoreErr("delete questionnaire", err)
	}
	s.record(ctx, actor, audit.ActionQuestionnaireDelete, q)
	return nil
}

func (s *QuestionnaireService) record(ctx context.Context, actor Actor, action string, q models.Questionnaire) {
	var id *string
	if actor.AccountID != "" {
		v := actor.AccountID
		id = &v
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:     id,
		Action:      action,
		Detail:      map[string]any{"questionnaire_id": q.ID, "slug": q.Slug, "questions": len(q.Questions)},
		ClientIP:    actor.ClientIP,
		ClientAgent: actor.UserAgent,
		Success:     true,
	})
}

func buildQuestionnaire(in QuestionnaireInput) (models.Questionnaire, error) {
	q := models.Questionnaire{
		Slug:        strings.ToLower(strings.TrimSpace(in.Slug)),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		NotifyEmail: strings.TrimSpace(in.NotifyEmail),
		Active:      true,
	}
	if in.Active != nil {
		q.Active = *in.Active
	}
	if !slugRx.MatchString(q.Slug) {
		return q, invalid("slug", "must be 2-63 lowercase letters, digits or dashes")
	}
	if q.Title == "" || utf8.RuneCountInString(q.Title) > maxTitleLen {
		return q, invalid("title", "is required and must be at most 200 characters")
	}
	if q.NotifyEmail != "" {
		addr, err := netmail.ParseAddress(q.NotifyEmail)
		if err != nil {
			return q, invalid("notify_email", "is not a valid email address")
		}
		q.NotifyEmail = strings.ToLower(addr.Address)
	}
	if len(in.Questions) == 0 || len(in.Questions) > maxQuestions {
		return q, invalid("questions", "must contain between 1 and 100 questions")
	}

	seen := map[string]bool{}
	q.Questions = make([]models.Question, 0, len(in.Questions))
	for _, raw := range in.Questions {
		qu := models.Question{
			Key:      strings.ToLower(strings.TrimSpace(raw.Key)),
			Label:    strings.TrimSpace(raw.Label),
			Kind:     models.QuestionKind(strings.ToLower(strings.TrimSpace(string(raw.Kind)))),
			Required: raw.Required,
		}
		if !questionKeyRx.MatchString(qu.Key) {
			return q, invalid("questions.key", "must start with a letter and use lowercase letters, digits or underscores")
		}
		if seen[qu.Key] {
			return q, invalid("questions.key", "duplicate key "+qu.Key)
		}
		seen[qu.Key] = true
		if qu.Label == "" || utf8.RuneCountInString(qu.Label) > maxLabelLen {
			return q, invalid("questions.label", "is required and must be at most 300 characters")
		}
		if !questionKinds[qu.Kind] {
			return q, invalid("questions.kind", "unsupported kind "+string(qu.Kind))
		}
		if qu.Kind == models.KindSelect {
			opts, err := cleanOptions(raw.Options)
			if err != nil {
				return q, err
			}
			qu.Options = opts
		}
		q.Questions = append(q.Questions, qu)
	}
	return q, nil
}

func cleanOptions(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, o := range in {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	if len(out) == 0 || len(out) > maxSelectOption {
		return nil, invalid("questions.options", "select questions need between 1 and 50 options")
	}
	return out, nil
}

func mapStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	default:
		return internal(op, err)
	}
}
