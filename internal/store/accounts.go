package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizportal/internal/models"
)

const accountColumns = `id,username,email,password_hash,role,status,failed_attempts,locked_until,created_at,last_login_at`

func (s *Store) CreateAccount(ctx context.Context, username string, email *string, passwordHash, role string) (models.Account, error) {
	a := models.Account{
		ID:           uuid.NewString(),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		Status:       models.AccountActive,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.exec(ctx,
		`INSERT INTO accounts(id,username,email,password_hash,role,status,failed_attempts,created_at) VALUES(?,?,?,?,?,?,?,?)`,
		a.ID, a.Username, nullString(a.Email), a.PasswordHash, a.Role, a.Status, 0, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.Account{}, ErrConflict
	}
	return a, err
}

// EnsureAdmin creates or repairs the bootstrap administrator.
func (s *Store) EnsureAdmin(ctx context.Context, username, email, passwordHash string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || passwordHash == "" {
		return nil
	}
	var emailPtr *string
	if e := strings.TrimSpace(email); e != "" {
		emailPtr = &e
	}
	var id string
	err := s.queryRow(ctx, `SELECT id FROM accounts WHERE username=?`, username).Scan(&id)
	if err == sql.ErrNoRows {
		_, err = s.CreateAccount(ctx, username, emailPtr, passwordHash, models.RoleAdmin)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`UPDATE accounts SET role=?, status=?, password_hash=?, email=?, failed_attempts=0, locked_until=NULL WHERE id=?`,
		models.RoleAdmin, models.AccountActive, passwordHash, nullString(normalizeEmail(emailPtr)), id,
	)
	return err
}

// GetActiveAccountByHandle matches the username or the email of an active account.
func (s *Store) GetActiveAccountByHandle(ctx context.Context, handle string) (models.Account, error) {
	h := strings.ToLower(strings.TrimSpace(handle))
	return s.scanAccount(s.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE (username=? OR email=?) AND status=?`,
		h, h, models.AccountActive,
	))
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (models.Account, error) {
	return s.scanAccount(s.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id))
}

// RecordFailedAttempt stores a counter value computed by the caller. It is a
// plain write, so two concurrent failures can both write the same value.
func (s *Store) RecordFailedAttempt(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	var lock any
	if lockedUntil != nil {
		lock = lockedUntil.UTC()
	}
	_, err := s.exec(ctx, `UPDATE accounts SET failed_attempts=?, locked_until=? WHERE id=?`, attempts, lock, id)
	return err
}

func (s *Store) ClearLockout(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `UPDATE accounts SET failed_attempts=0, locked_until=NULL WHERE id=?`, id)
	return err
}

func (s *Store) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.exec(ctx, `UPDATE accounts SET failed_attempts=0, locked_until=NULL, last_login_at=? WHERE id=?`, at.UTC(), id)
	return err
}

func (s *Store) SetAccountStatus(ctx context.Context, id string, status models.AccountStatus) error {
	res, err := s.exec(ctx, `UPDATE accounts SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AccountNames maps ids to usernames; unknown ids are omitted.
func (s *Store) AccountNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.query(ctx,
		`SELECT id,username FROM accounts WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (s *Store) scanAccount(row *sql.Row) (models.Account, error) {
	var a models.Account
	var email sql.NullString
	var lockedUntil, lastLogin sql.NullTime
	err := row.Scan(&a.ID, &a.Username, &email, &a.PasswordHash, &a.Role, &a.Status, &a.FailedAttempts, &lockedUntil, &a.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	if email.Valid && strings.TrimSpace(email.String) != "" {
		v := email.String
		a.Email = &v
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time.UTC()
		a.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		a.LastLoginAt = &t
	}
	return a, nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
