// Package permission maps roles to permission keys using the role_permissions table.
package permission

import (
	"context"
	"fmt"
	"sort"
)

const (
	ActivityView        = "activity.view"
	QuestionnaireView   = "questionnaire.view"
	QuestionnaireManage = "questionnaire.manage"
	SubmissionView      = "submission.view"
	AccountManage       = "account.manage"
)

// Keys lists every permission key the application checks.
var Keys = []string{ActivityView, QuestionnaireView, QuestionnaireManage, SubmissionView, AccountManage}

type GrantSource interface {
	GrantedPermissions(ctx context.Context, role string) ([]string, error)
}

type Resolver struct {
	src GrantSource
}

func NewResolver(src GrantSource) *Resolver {
	return &Resolver{src: src}
}

// PermissionsFor returns the sorted keys granted to role. Unknown roles get an
// empty set.
func (r *Resolver) PermissionsFor(ctx context.Context, role string) ([]string, error) {
	keys, err := r.src.GrantedPermissions(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions for %q: %w", role, err)
	}
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out, nil
}

func (r *Resolver) Has(ctx context.Context, role, key string) (bool, error) {
	keys, err := r.PermissionsFor(ctx, role)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(keys, key)
	return i < len(keys) && keys[i] == key, nil
}
