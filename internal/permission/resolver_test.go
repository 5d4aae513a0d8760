package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGrants map[string][]string

func (f fakeGrants) GrantedPermissions(_ context.Context, role string) ([]string, error) {
	if role == "broken" {
		return nil, errors.New("db down")
	}
	return f[role], nil
}

func TestPermissionsForIsSortedAndDeterministic(t *testing.T) {
	r := NewResolver(fakeGrants{"manager": {SubmissionView, ActivityView, QuestionnaireView}})

	first, err := r.PermissionsFor(context.Background(), "manager")
	require.NoError(t, err)
	require.Equal(t, []string{ActivityView, QuestionnaireView, SubmissionView}, first)

	second, err := r.PermissionsFor(context.Background(), "manager")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestHas(t *testing.T) {
	r := NewResolver(fakeGrants{"staff": {QuestionnaireView}})

	ok, err := r.Has(context.Background(), "staff", QuestionnaireView)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Has(context.Background(), "staff", AccountManage)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Has(context.Background(), "nobody", QuestionnaireView)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreFailurePropagates(t *testing.T) {
	r := NewResolver(fakeGrants{})
	_, err := r.PermissionsFor(context.Background(), "broken")
	require.Error(t, err)
}
