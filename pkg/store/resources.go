package store

import (
	"context"
	"fmt"
)

// Resource is an application URL grantable to groups. Resources are
// seeded by migrations and never mutated through the API.
type Resource struct {
	ID          int64
	Name        string
	Department  string
	Description string
}

// ResourceFilter narrows resource listings by case-insensitive prefix.
type ResourceFilter struct {
	Name       string
	Department string
}

// ListResources returns every grantable resource matching the filter.
// The "/resources" row itself is excluded so no group edit can revoke
// access to the resource registry.
func (s *Store) ListResources(ctx context.Context, filter ResourceFilter) ([]Resource, error) {
	query := `
		SELECT id, name, department
		FROM resources
		WHERE name <> '/resources'
		  AND ($1 = '' OR lower(name) LIKE lower($1) || '%')
		  AND ($2 = '' OR lower(department) LIKE lower($2) || '%')
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, filter.Name, filter.Department)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.Name, &r.Department); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}

	return resources, rows.Err()
}
