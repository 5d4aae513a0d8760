package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bizportal/internal/db"
	"bizportal/internal/models"
	"bizportal/internal/store"
)

func TestRecordProvisionsMissingTable(t *testing.T) {
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	st := store.New(sqdb, "sqlite")

	l := NewLogger(st, nil)
	actor := "acc-1"
	l.Record(context.Background(), Entry{
		ActorID:  &actor,
		Action:   ActionLogin,
		Detail:   map[string]string{"handle": "alice"},
		ClientIP: "127.0.0.1",
		Success:  true,
	})

	items, total, err := st.ListActivity(context.Background(), models.ActivityQuery{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, ActionLogin, items[0].Action)
	require.NotNil(t, items[0].Detail)
	require.JSONEq(t, `{"handle":"alice"}`, *items[0].Detail)
	require.Equal(t, actor, *items[0].ActorID)
}

type failingSink struct{ calls int }

func (f *failingSink) InsertActivity(context.Context, models.ActivityRecord) error {
	f.calls++
	return errors.New("disk I/O error")
}

func (f *failingSink) EnsureActivityTable(context.Context) error { return nil }

func TestRecordSwallowsFailuresIntoDiagnostics(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &failingSink{}
	l := NewLogger(sink, zap.New(core))

	require.NotPanics(t, func() {
		l.Record(context.Background(), Entry{Action: ActionLogout})
	})
	require.Equal(t, 1, sink.calls, "non missing-table errors are not retried")
	require.Equal(t, 1, logs.FilterMessage("audit record dropped").Len())
}
