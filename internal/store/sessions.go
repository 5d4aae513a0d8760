package store

import (
	"context"
	"database/sql"
	"time"

	"bizportal/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, sess models.Session) error {
	_, err := s.exec(ctx,
		`INSERT INTO sessions(id,account_id,token_hash,client_ip,user_agent,created_at,expires_at,active) VALUES(?,?,?,?,?,?,?,?)`,
		sess.ID, sess.AccountID, sess.TokenHash, sess.ClientIP, sess.UserAgent, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(), boolToInt(sess.Active),
	)
	return err
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (models.Session, error) {
	var sess models.Session
	var ip, ua sql.NullString
	err := s.queryRow(ctx,
		`SELECT id,account_id,token_hash,client_ip,user_agent,created_at,expires_at,active FROM sessions WHERE token_hash=?`,
		tokenHash,
	).Scan(&sess.ID, &sess.AccountID, &sess.TokenHash, &ip, &ua, &sess.CreatedAt, &sess.ExpiresAt, &sess.Active)
	if err == sql.ErrNoRows {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	sess.ClientIP = ip.String
	sess.UserAgent = ua.String
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	return sess, nil
}

func (s *Store) UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.exec(ctx, `UPDATE sessions SET expires_at=? WHERE id=? AND active=1`, expiresAt.UTC(), id)
	return err
}

// DeactivateSession clears the active flag. An empty accountID matches any owner.
func (s *Store) DeactivateSession(ctx context.Context, tokenHash, accountID string) (bool, error) {
	q := `UPDATE sessions SET active=0 WHERE token_hash=? AND active=1`
	args := []any{tokenHash}
	if accountID != "" {
		q += ` AND account_id=?`
		args = append(args, accountID)
	}
	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
