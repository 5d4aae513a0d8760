package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"bizportal/internal/models"
)

func (s *Store) CreateSubmission(ctx context.Context, sub models.Submission) (models.Submission, error) {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	raw, err := json.Marshal(sub.Answers)
	if err != nil {
		return models.Submission{}, err
	}
	_, err = s.exec(ctx,
		`INSERT INTO submissions(id,questionnaire_id,answers_json,client_ip,user_agent,created_at) VALUES(?,?,?,?,?,?)`,
		sub.ID, sub.QuestionnaireID, string(raw), sub.ClientIP, sub.UserAgent, sub.CreatedAt,
	)
	if err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

// MarkSubmissionNotified records the outcome of the notification attempt.
func (s *Store) MarkSubmissionNotified(ctx context.Context, id string, at time.Time, notifyErr *string) error {
	var notifiedAt any
	if notifyErr == nil {
		notifiedAt = at.UTC()
	}
	_, err := s.exec(ctx, `UPDATE submissions SET notified_at=?, notify_error=? WHERE id=?`, notifiedAt, nullString(notifyErr), id)
	return err
}

func (s *Store) ListSubmissions(ctx context.Context, questionnaireID string, limit, offset int) ([]models.Submission, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM submissions WHERE questionnaire_id=?`, questionnaireID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.query(ctx,
		`SELECT id,questionnaire_id,answers_json,client_ip,user_agent,created_at,notified_at,notify_error FROM submissions WHERE questionnaire_id=? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		questionnaireID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.Submission, 0, limit)
	for rows.Next() {
		var sub models.Submission
		var answers string
		var ip, ua, notifyErr sql.NullString
		var notified sql.NullTime
		if err := rows.Scan(&sub.ID, &sub.QuestionnaireID, &answers, &ip, &ua, &sub.CreatedAt, &notified, &notifyErr); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
			return nil, 0, err
		}
		sub.ClientIP = ip.String
		sub.UserAgent = ua.String
		if notified.Valid {
			t := notified.Time.UTC()
			sub.NotifiedAt = &t
		}
		if notifyErr.Valid {
			v := notifyErr.String
			sub.NotifyError = &v
		}
		out = append(out, sub)
	}
	return out, total, rows.Err()
}
