package store

import "context"

// GrantedPermissions lists the permission keys with a truthy grant for role, sorted.
func (s *Store) GrantedPermissions(ctx context.Context, role string) ([]string, error) {
	rows, err := s.query(ctx,
		`SELECT permission_key FROM role_permissions WHERE role=? AND granted=1 ORDER BY permission_key ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}
