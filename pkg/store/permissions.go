package store

import (
	"context"
	"fmt"

	"github.com/adminkit/warden/pkg/authz"
)

// FetchAllPermissionTuples produces the flat rows the authorization
// cache is built from: one row per (user, group, resource) combination
// reachable through a non-blocked user and a non-blocked group. It is
// a single indexed join, not per-user lookups, because it runs
// synchronously on every mutation of the groups graph.
func (s *Store) FetchAllPermissionTuples(ctx context.Context) ([]authz.PermissionTuple, error) {
	query := `
		SELECT DISTINCT u.id, g.id, r.name, gr.write, gr.update, gr.delete
		FROM users u
		JOIN groups_users gu ON gu.user_id = u.id
		JOIN groups g ON g.id = gu.group_id
		JOIN groups_resources gr ON gr.group_id = g.id
		JOIN resources r ON r.id = gr.resource_id
		WHERE u.blocked = false AND g.blocked = false
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch permission tuples: %w", err)
	}
	defer rows.Close()

	var tuples []authz.PermissionTuple
	for rows.Next() {
		var t authz.PermissionTuple
		if err := rows.Scan(&t.UserID, &t.GroupID, &t.Resource, &t.Write, &t.Update, &t.Delete); err != nil {
			return nil, fmt.Errorf("scan permission tuple: %w", err)
		}
		tuples = append(tuples, t)
	}

	return tuples, rows.Err()
}
