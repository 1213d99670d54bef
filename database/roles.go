package database

import (
	"context"
	"database/sql"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

func (s *Store) RoleGroup(ctx context.Context, investigationID int64, role model.Role) (*model.RoleGroup, error) {
	g := &model.RoleGroup{}
	err := s.q().QueryRowContext(ctx, `
		SELECT id, investigation_id, role, name
		FROM role_group
		WHERE investigation_id = ? AND role = ?`,
		investigationID, role,
	).Scan(&g.ID, &g.InvestigationID, &g.Role, &g.Name)
	if err != nil {
		return nil, wrap(err, "db.get_role_group")
	}
	return g, nil
}

func (s *Store) RoleGroups(ctx context.Context, investigationID int64) ([]model.RoleGroup, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id, investigation_id, role, name
		FROM role_group
		WHERE investigation_id = ?
		ORDER BY id`,
		investigationID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_role_groups")
	}
	defer rows.Close()

	groups := []model.RoleGroup{}
	for rows.Next() {
		g := model.RoleGroup{}
		if err = rows.Scan(&g.ID, &g.InvestigationID, &g.Role, &g.Name); err != nil {
			return nil, errors.Wrap(err, "db.get_role_groups.scan")
		}
		groups = append(groups, g)
	}
	return groups, errors.Wrap(rows.Err(), "db.get_role_groups")
}

// InsertRoleGroup creates g unless the investigation already has a group for its role,
// in which case g is filled from the existing row.
func (s *Store) InsertRoleGroup(ctx context.Context, g *model.RoleGroup) error {
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO role_group (investigation_id, role, name)
		VALUES (?, ?, ?)
		ON CONFLICT (investigation_id, role) DO NOTHING`,
		g.InvestigationID, g.Role, g.Name,
	)
	if err != nil {
		return errors.Wrap(err, "db.insert_role_group")
	}
	existing, err := s.RoleGroup(ctx, g.InvestigationID, g.Role)
	if err != nil {
		return err
	}
	*g = *existing
	return nil
}

func (s *Store) DeleteRoleGroup(ctx context.Context, id int64) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM role_group WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_role_group")
	}
	return checkAffected(res, "db.delete_role_group")
}

// RemoveMemberships takes the user out of every group of the investigation.
func (s *Store) RemoveMemberships(ctx context.Context, investigationID, userID int64) (int64, error) {
	res, err := s.q().ExecContext(ctx, `
		DELETE FROM role_group_member
		WHERE investigation_id = ? AND user_id = ?`,
		investigationID, userID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.delete_memberships")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "db.delete_memberships.verify")
}

func (s *Store) AddMember(ctx context.Context, g *model.RoleGroup, userID int64) error {
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO role_group_member (group_id, user_id, investigation_id)
		VALUES (?, ?, ?)`,
		g.ID, userID, g.InvestigationID,
	)
	if isUniqueViolation(err) {
		return model.Invalid("already_member", "user %d already has a role on this investigation", userID)
	}
	return wrap(err, "db.insert_member")
}

// GroupUsers lists the members holding role on the investigation.
func (s *Store) GroupUsers(ctx context.Context, investigationID int64, role model.Role) ([]model.User, error) {
	return s.queryUsers(ctx, "db.get_group_users", `
		SELECT `+userColumns+`
		FROM user u
		INNER JOIN role_group_member m ON (m.user_id = u.id)
		INNER JOIN role_group g ON (g.id = m.group_id)
		WHERE g.investigation_id = ? AND g.role = ?
		ORDER BY u.email`,
		investigationID, role,
	)
}

// UsersWithRoles lists the members holding any of roles on the investigation.
func (s *Store) UsersWithRoles(ctx context.Context, investigationID int64, roles ...model.Role) ([]model.User, error) {
	args := []any{investigationID}
	for _, r := range roles {
		args = append(args, r)
	}
	return s.queryUsers(ctx, "db.get_users_with_roles", `
		SELECT `+userColumns+`
		FROM user u
		INNER JOIN role_group_member m ON (m.user_id = u.id)
		INNER JOIN role_group g ON (g.id = m.group_id)
		WHERE g.investigation_id = ? AND g.role IN (`+placeholders(len(roles))+`)
		ORDER BY u.email`,
		args...,
	)
}

// Members lists every member of the investigation with their role, most privileged first.
func (s *Store) Members(ctx context.Context, investigationID int64) ([]model.Member, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT `+userColumns+`, g.role
		FROM user u
		INNER JOIN role_group_member m ON (m.user_id = u.id)
		INNER JOIN role_group g ON (g.id = m.group_id)
		WHERE g.investigation_id = ?
		ORDER BY CASE g.role WHEN 'O' THEN 0 WHEN 'A' THEN 1 WHEN 'E' THEN 2 ELSE 3 END, u.email`,
		investigationID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_members")
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		m := model.Member{}
		err = rows.Scan(&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.PasswordHash, &m.IsSuperuser, &m.Role)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_members.scan")
		}
		members = append(members, m)
	}
	return members, errors.Wrap(rows.Err(), "db.get_members")
}

// MemberRole returns the user's role on the investigation and false when they have none.
func (s *Store) MemberRole(ctx context.Context, investigationID, userID int64) (model.Role, bool, error) {
	var role model.Role
	err := s.q().QueryRowContext(ctx, `
		SELECT g.role
		FROM role_group_member m
		INNER JOIN role_group g ON (g.id = m.group_id)
		WHERE m.investigation_id = ? AND m.user_id = ?`,
		investigationID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "db.get_member_role")
	}
	return role, true, nil
}
