package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bizportal/internal/models"
)

const questionnaireColumns = `id,slug,title,description,notify_email,active,created_by,created_at,updated_at`

// CreateQuestionnaire inserts the form and its questions in one transaction.
func (s *Store) CreateQuestionnaire(ctx context.Context, q models.Questionnaire) (models.Questionnaire, error) {
	now := time.Now().UTC()
	q.ID = uuid.NewString()
	q.CreatedAt = now
	q.UpdatedAt = now
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.txExec(ctx, tx,
			`INSERT INTO questionnaires(`+questionnaireColumns+`) VALUES(?,?,?,?,?,?,?,?,?)`,
			q.ID, q.Slug, q.Title, q.Description, q.NotifyEmail, boolToInt(q.Active), q.CreatedBy, q.CreatedAt, q.UpdatedAt,
		); err != nil {
			return err
		}
		var err error
		q.Questions, err = s.insertQuestions(ctx, tx, q.ID, q.Questions)
		return err
	})
	if isUniqueViolation(err) {
		return models.Questionnaire{}, ErrConflict
	}
	if err != nil {
		return models.Questionnaire{}, err
	}
	return q, nil
}

// UpdateQuestionnaire rewrites the form fields and replaces the question set.
func (s *Store) UpdateQuestionnaire(ctx context.Context, q models.Questionnaire) (models.Questionnaire, error) {
	q.UpdatedAt = time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.txExec(ctx, tx,
			`UPDATE questionnaires SET slug=?,title=?,description=?,notify_email=?,active=?,updated_at=? WHERE id=?`,
			q.Slug, q.Title, q.Description, q.NotifyEmail, boolToInt(q.Active), q.UpdatedAt, q.ID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		if _, err := s.txExec(ctx, tx, `DELETE FROM questions WHERE questionnaire_id=?`, q.ID); err != nil {
			return err
		}
		q.Questions, err = s.insertQuestions(ctx, tx, q.ID, q.Questions)
		return err
	})
	if isUniqueViolation(err) {
		return models.Questionnaire{}, ErrConflict
	}
	if err != nil {
		return models.Questionnaire{}, err
	}
	return s.GetQuestionnaire(ctx, q.ID)
}

func (s *Store) insertQuestions(ctx context.Context, tx *sql.Tx, questionnaireID string, qs []models.Question) ([]models.Question, error) {
	out := make([]models.Question, 0, len(qs))
	for i, qu := range qs {
		qu.ID = uuid.NewString()
		qu.Position = i
		opts := qu.Options
		if opts == nil {
			opts = []string{}
		}
		raw, err := json.Marshal(opts)
		if err != nil {
			return nil, err
		}
		if _, err := s.txExec(ctx, tx,
			`INSERT INTO questions(id,questionnaire_id,position,field_key,label,kind,required,options_json) VALUES(?,?,?,?,?,?,?,?)`,
			qu.ID, questionnaireID, qu.Position, qu.Key, qu.Label, qu.Kind, boolToInt(qu.Required), string(raw),
		); err != nil {
			return nil, err
		}
		out = append(out, qu)
	}
	return out, nil
}

func (s *Store) GetQuestionnaire(ctx context.Context, id string) (models.Questionnaire, error) {
	return s.loadQuestionnaire(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE id=?`, id)
}

func (s *Store) GetQuestionnaireBySlug(ctx context.Context, slug string) (models.Questionnaire, error) {
	return s.loadQuestionnaire(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE slug=?`, slug)
}

func (s *Store) loadQuestionnaire(ctx context.Context, q string, arg any) (models.Questionnaire, error) {
	var out models.Questionnaire
	err := s.queryRow(ctx, q, arg).Scan(&out.ID, &out.Slug, &out.Title, &out.Description, &out.NotifyEmail, &out.Active, &out.CreatedBy, &out.CreatedAt, &out.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Questionnaire{}, ErrNotFound
	}
	if err != nil {
		return models.Questionnaire{}, err
	}
	out.Questions, err = s.listQuestions(ctx, out.ID)
	if err != nil {
		return models.Questionnaire{}, err
	}
	return out, nil
}

func (s *Store) listQuestions(ctx context.Context, questionnaireID string) ([]models.Question, error) {
	rows, err := s.query(ctx,
		`SELECT id,position,field_key,label,kind,required,options_json FROM questions WHERE questionnaire_id=? ORDER BY position ASC`,
		questionnaireID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Question{}
	for rows.Next() {
		var qu models.Question
		var opts string
		if err := rows.Scan(&qu.ID, &qu.Position, &qu.Key, &qu.Label, &qu.Kind, &qu.Required, &opts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &qu.Options); err != nil {
			return nil, err
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

// ListQuestionnaires returns forms without their questions, newest first.
func (s *Store) ListQuestionnaires(ctx context.Context, limit, offset int) ([]models.Questionnaire, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM questionnaires`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.query(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaires ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.Questionnaire, 0, limit)
	for rows.Next() {
		var q models.Questionnaire
		if err := rows.Scan(&q.ID, &q.Slug, &q.Title, &q.Description, &q.NotifyEmail, &q.Active, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteQuestionnaire(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM submissions WHERE questionnaire_id=?`,
			`DELETE FROM questions WHERE questionnaire_id=?`,
		} {
			if _, err := s.txExec(ctx, tx, q, id); err != nil {
				return err
			}
		}
		res, err := s.txExec(ctx, tx, `DELETE FROM questionnaires WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
