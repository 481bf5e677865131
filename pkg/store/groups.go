package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Group is a named set of users sharing resource grants. A blocked
// group contributes nothing to the authorization cache.
type Group struct {
	ID          int64
	Name        string
	Description string
	Blocked     bool
}

// GroupMember is a user listed inside a group detail.
type GroupMember struct {
	ID    int64
	Name  string
	Email string
}

// GroupGrant is one resource grant row of a group with its three
// permission flags. Read access is implicit for any grant.
type GroupGrant struct {
	ResourceID   int64
	ResourceName string
	Write        bool
	Update       bool
	Delete       bool
}

// GroupDetail is a group with its member users and resource grants.
type GroupDetail struct {
	Group
	Users     []GroupMember
	Resources []GroupGrant
}

// GrantInput carries the permission flags for one grant mutation.
type GrantInput struct {
	ResourceID int64
	Write      bool
	Update     bool
	Delete     bool
}

// GroupFilter narrows and paginates group listings.
type GroupFilter struct {
	Name    string
	Blocked *bool
	Limit   int
	Offset  int
}

// CountGroupsByName reports how many groups carry the name. Used for
// the uniqueness conflict check before create and rename.
func (s *Store) CountGroupsByName(ctx context.Context, name string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM groups WHERE name = $1`, name).Scan(&count); err != nil {
		return 0, fmt.Errorf("count groups by name: %w", err)
	}
	return count, nil
}

// GetGroup fetches a group's scalar fields.
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*Group, error) {
	query := `SELECT id, name, description, blocked FROM groups WHERE id = $1`

	var g Group
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(&g.ID, &g.Name, &g.Description, &g.Blocked)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// ListGroups returns one page of groups matching the filter plus the
// total match count.
func (s *Store) ListGroups(ctx context.Context, filter GroupFilter) ([]Group, int, error) {
	where := `WHERE ($1 = '' OR lower(name) LIKE lower($1) || '%')
		  AND ($2::boolean IS NULL OR blocked = $2)`

	var blocked sql.NullBool
	if filter.Blocked != nil {
		blocked = sql.NullBool{Bool: *filter.Blocked, Valid: true}
	}

	var total int
	countQuery := `SELECT count(*) FROM groups ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, filter.Name, blocked).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}

	pageQuery := `SELECT id, name, blocked FROM groups ` + where + `
		ORDER BY name, id
		LIMIT $3 OFFSET $4`
	rows, err := s.db.QueryContext(ctx, pageQuery, filter.Name, blocked, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Blocked); err != nil {
			return nil, 0, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, total, rows.Err()
}

// GetGroupDetail fetches a group together with its member users and
// resource grants.
func (s *Store) GetGroupDetail(ctx context.Context, groupID int64) (*GroupDetail, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	detail := &GroupDetail{Group: *group}

	memberQuery := `
		SELECT u.id, u.name, u.email
		FROM groups_users gu
		JOIN users u ON u.id = gu.user_id
		WHERE gu.group_id = $1
		ORDER BY u.name, u.id
	`
	rows, err := s.db.QueryContext(ctx, memberQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		detail.Users = append(detail.Users, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grantQuery := `
		SELECT r.id, r.name, gr.write, gr.update, gr.delete
		FROM groups_resources gr
		JOIN resources r ON r.id = gr.resource_id
		WHERE gr.group_id = $1
		ORDER BY r.name
	`
	grantRows, err := s.db.QueryContext(ctx, grantQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group grants: %w", err)
	}
	defer grantRows.Close()
	for grantRows.Next() {
		var g GroupGrant
		if err := grantRows.Scan(&g.ResourceID, &g.ResourceName, &g.Write, &g.Update, &g.Delete); err != nil {
			return nil, fmt.Errorf("scan group grant: %w", err)
		}
		detail.Resources = append(detail.Resources, g)
	}

	return detail, grantRows.Err()
}

// CreateGroup inserts the group with its initial memberships and
// grants in one transaction and returns the new group id.
func (s *Store) CreateGroup(ctx context.Context, group *Group, memberIDs []int64, grants []GrantInput) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create group: %w", err)
	}
	defer tx.Rollback()

	var groupID int64
	insertGroup := `
		INSERT INTO groups (name, description, blocked, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, insertGroup, group.Name, group.Description, group.Blocked).Scan(&groupID); err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}

	if err := insertMembers(ctx, tx, groupID, memberIDs); err != nil {
		return 0, err
	}
	if err := insertGrants(ctx, tx, groupID, grants); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create group: %w", err)
	}
	return groupID, nil
}

// UpdateGroup applies the group's scalar update together with the
// partitioned association mutations in one transaction. Any failing
// statement rolls back the whole mutation.
func (s *Store) UpdateGroup(ctx context.Context, group *Group,
	addMembers, removeMembers []int64,
	addGrants, updateGrants []GrantInput, removeGrants []int64) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update group: %w", err)
	}
	defer tx.Rollback()

	for _, userID := range removeMembers {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM groups_users WHERE group_id = $1 AND user_id = $2`,
			group.ID, userID); err != nil {
			return fmt.Errorf("remove group member %d: %w", userID, err)
		}
	}
	if err := insertMembers(ctx, tx, group.ID, addMembers); err != nil {
		return err
	}

	if err := insertGrants(ctx, tx, group.ID, addGrants); err != nil {
		return err
	}
	// Grant updates run sequentially: a *sql.Tx is not safe for
	// concurrent use, and each statement must be durably applied
	// before the commit that triggers the cache rebuild.
	for _, grant := range updateGrants {
		if _, err := tx.ExecContext(ctx,
			`UPDATE groups_resources SET "write" = $1, "update" = $2, "delete" = $3
			 WHERE group_id = $4 AND resource_id = $5`,
			grant.Write, grant.Update, grant.Delete, group.ID, grant.ResourceID); err != nil {
			return fmt.Errorf("update grant for resource %d: %w", grant.ResourceID, err)
		}
	}
	for _, resourceID := range removeGrants {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM groups_resources WHERE group_id = $1 AND resource_id = $2`,
			group.ID, resourceID); err != nil {
			return fmt.Errorf("remove grant for resource %d: %w", resourceID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET name = $1, description = $2, blocked = $3, updated_at = NOW() WHERE id = $4`,
		group.Name, group.Description, group.Blocked, group.ID); err != nil {
		return fmt.Errorf("update group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update group: %w", err)
	}
	return nil
}

// DeleteGroup removes the memberships, then the grants, then the group
// row itself, all in one transaction.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete group: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM groups_users WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("delete group memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM groups_resources WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("delete group grants: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete group: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID int64, memberIDs []int64) error {
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups_users (group_id, user_id) VALUES ($1, $2)`,
			groupID, userID); err != nil {
			return fmt.Errorf("add group member %d: %w", userID, err)
		}
	}
	return nil
}

func insertGrants(ctx context.Context, tx *sql.Tx, groupID int64, grants []GrantInput) error {
	for _, grant := range grants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups_resources (group_id, resource_id, "write", "update", "delete")
			 VALUES ($1, $2, $3, $4, $5)`,
			groupID, grant.ResourceID, grant.Write, grant.Update, grant.Delete); err != nil {
			return fmt.Errorf("add grant for resource %d: %w", grant.ResourceID, err)
		}
	}
	return nil
}
