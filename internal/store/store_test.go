package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bizportal/internal/db"
	"bizportal/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "store.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	require.NoError(t, db.ApplyMigrationFile(sqdb, filepath.Join("..", "..", "migrations", "001_init.sql")))
	return New(sqdb, "sqlite")
}

func ptr(s string) *string { return &s }

func TestRebindNumbersPlaceholdersForPostgres(t *testing.T) {
	s := New(nil, "pgx")
	require.Equal(t, "SELECT a FROM t WHERE x=$1 AND y=$2", s.rebind("SELECT a FROM t WHERE x=? AND y=?"))

	s = New(nil, "mysql")
	require.Equal(t, "SELECT a FROM t WHERE x=?", s.rebind("SELECT a FROM t WHERE x=?"))
}

func TestAccountLookupByUsernameOrEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateAccount(ctx, "Alice", ptr("Alice@Example.com"), "hash", models.RoleStaff)
	require.NoError(t, err)
	require.Equal(t, "alice", a.Username)

	byName, err := s.GetActiveAccountByHandle(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, a.ID, byName.ID)

	byEmail, err := s.GetActiveAccountByHandle(ctx, " alice@example.com ")
	require.NoError(t, err)
	require.Equal(t, a.ID, byEmail.ID)

	_, err = s.CreateAccount(ctx, "alice", nil, "hash", models.RoleStaff)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.SetAccountStatus(ctx, a.ID, models.AccountDisabled))
	_, err = s.GetActiveAccountByHandle(ctx, "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailedAttemptAndLockoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.CreateAccount(ctx, "bob", nil, "hash", models.RoleStaff)
	require.NoError(t, err)

	until := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	require.NoError(t, s.RecordFailedAttempt(ctx, a.ID, 4, &until))

	got, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.FailedAttempts)
	require.NotNil(t, got.LockedUntil)
	require.True(t, got.LockedUntil.Equal(until))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.RecordSuccessfulLogin(ctx, a.ID, at))
	got, err = s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedAttempts)
	require.Nil(t, got.LockedUntil)
	require.NotNil(t, got.LastLoginAt)
}

func TestEnsureAdminCreatesThenRepairs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.EnsureAdmin(ctx, "admin", "admin@example.com", "h1"))
	a, err := s.GetActiveAccountByHandle(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, a.Role)

	require.NoError(t, s.RecordFailedAttempt(ctx, a.ID, 4, nil))
	require.NoError(t, s.SetAccountStatus(ctx, a.ID, models.AccountDisabled))
	require.NoError(t, s.EnsureAdmin(ctx, "admin", "admin@example.com", "h2"))

	a, err = s.GetActiveAccountByHandle(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "h2", a.PasswordHash)
	require.Zero(t, a.FailedAttempts)
}

func TestSessionDeactivateChecksOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.CreateAccount(ctx, "carol", nil, "hash", models.RoleStaff)
	require.NoError(t, err)

	now := time.Now().UTC()
	sess := models.Session{ID: "s1", AccountID: a.ID, TokenHash: "th1", CreatedAt: now, ExpiresAt: now.Add(time.Hour), Active: true}
	require.NoError(t, s.CreateSession(ctx, sess))

	ok, err := s.DeactivateSession(ctx, "th1", "someone-else")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.DeactivateSession(ctx, "th1", a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetSessionByTokenHash(ctx, "th1")
	require.NoError(t, err)
	require.False(t, got.Active)

	ok, err = s.DeactivateSession(ctx, "th1", "")
	require.NoError(t, err)
	require.False(t, ok, "second deactivation reports nothing changed")
}

func TestGrantedPermissionsFollowSeed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	admin, err := s.GrantedPermissions(ctx, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admin, 5)

	staff, err := s.GrantedPermissions(ctx, models.RoleStaff)
	require.NoError(t, err)
	require.Equal(t, []string{"questionnaire.view", "submission.view"}, staff)

	none, err := s.GrantedPermissions(ctx, "ghost")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestActivityListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	actor := "acc-1"
	for i, action := range []string{"login", "login", "logout", "questionnaire.create"} {
		require.NoError(t, s.InsertActivity(ctx, models.ActivityRecord{
			ID:        "r" + string(rune('a'+i)),
			ActorID:   &actor,
			Action:    action,
			Detail:    ptr(`{"n":1}`),
			ClientIP:  "203.0.113.5",
			Success:   i != 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	items, total, err := s.ListActivity(ctx, models.ActivityQuery{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, items, 2)
	require.Equal(t, "questionnaire.create", items[0].Action)

	items, total, err = s.ListActivity(ctx, models.ActivityQuery{Action: "login", Order: "asc", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "ra", items[0].ID)

	failed := false
	_, total, err = s.ListActivity(ctx, models.ActivityQuery{Success: &failed, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	_, total, err = s.ListActivity(ctx, models.ActivityQuery{Q: "QUESTIONNAIRE", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestActivityListOnMissingTableIsEmpty(t *testing.T) {
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "bare.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	s := New(sqdb, "sqlite")

	items, total, err := s.ListActivity(context.Background(), models.ActivityQuery{Limit: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, items)

	err = s.InsertActivity(context.Background(), models.ActivityRecord{ID: "x", Action: "login", CreatedAt: time.Now()})
	require.True(t, IsMissingTable(err))
	require.NoError(t, s.EnsureActivityTable(context.Background()))
	require.NoError(t, s.InsertActivity(context.Background(), models.ActivityRecord{ID: "x", Action: "login", CreatedAt: time.Now()}))
}

func TestQuestionnaireReplaceQuestionsAndSubmissions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	q, err := s.CreateQuestionnaire(ctx, models.Questionnaire{
		Slug: "intake", Title: "Intake", Active: true, CreatedBy: "acc-1",
		Questions: []models.Question{
			{Key: "name", Label: "Name", Kind: models.KindText, Required: true},
			{Key: "plan", Label: "Plan", Kind: models.KindSelect, Options: []string{"basic", "pro"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, q.Questions, 2)

	_, err = s.CreateQuestionnaire(ctx, models.Questionnaire{Slug: "intake", Title: "Dup", CreatedBy: "acc-1"})
	require.ErrorIs(t, err, ErrConflict)

	q.Title = "Client intake"
	q.Questions = []models.Question{{Key: "email", Label: "Email", Kind: models.KindEmail, Required: true}}
	updated, err := s.UpdateQuestionnaire(ctx, q)
	require.NoError(t, err)
	require.Equal(t, "Client intake", updated.Title)
	require.Len(t, updated.Questions, 1)
	require.Equal(t, "email", updated.Questions[0].Key)

	bySlug, err := s.GetQuestionnaireBySlug(ctx, "intake")
	require.NoError(t, err)
	require.Equal(t, q.ID, bySlug.ID)

	sub, err := s.CreateSubmission(ctx, models.Submission{QuestionnaireID: q.ID, Answers: map[string]string{"email": "a@b.co"}})
	require.NoError(t, err)
	msg := "smtp down"
	require.NoError(t, s.MarkSubmissionNotified(ctx, sub.ID, time.Now(), &msg))

	subs, total, err := s.ListSubmissions(ctx, q.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "a@b.co", subs[0].Answers["email"])
	require.NotNil(t, subs[0].NotifyError)
	require.Nil(t, subs[0].NotifiedAt)

	require.NoError(t, s.DeleteQuestionnaire(ctx, q.ID))
	_, err = s.GetQuestionnaire(ctx, q.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.DeleteQuestionnaire(ctx, q.ID), ErrNotFound)
}
