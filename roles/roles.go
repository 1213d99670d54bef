// Package roles manages who may do what on an investigation. Every investigation has one
// group per role; a user belongs to at most one of them.
package roles

import (
	"context"
	"errors"

	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/policy"
)

type Permission = policy.Permission

const (
	ViewInvestigation   = policy.ViewInvestigation
	ManageInvestigation = policy.ManageInvestigation
	AdminInvestigation  = policy.AdminInvestigation
	MasterInvestigation = policy.MasterInvestigation
)

// Grants lists the permissions each role holds.
var Grants = map[model.Role][]Permission{
	model.RoleViewer: {ViewInvestigation},
	model.RoleEditor: {ViewInvestigation, ManageInvestigation},
	model.RoleAdmin:  {ViewInvestigation, ManageInvestigation, AdminInvestigation},
	model.RoleOwner:  {ViewInvestigation, ManageInvestigation, AdminInvestigation, MasterInvestigation},
}

// ManagerRoles are the roles whose members can be assigned to responses.
var ManagerRoles = RolesWith(ManageInvestigation)

// RolesWith lists the roles holding perm, most privileged first.
func RolesWith(perm Permission) []model.Role {
	var roles []model.Role
	for _, role := range model.Roles {
		if Has(role, perm) {
			roles = append(roles, role)
		}
	}
	return roles
}

func Has(role model.Role, perm Permission) bool {
	for _, p := range Grants[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CreateAllFor makes sure the investigation has a group for every role.
func CreateAllFor(ctx context.Context, store *database.Store, inv *model.Investigation) ([]model.RoleGroup, error) {
	groups := make([]model.RoleGroup, 0, len(model.Roles))
	err := store.InTx(ctx, func(tx *database.Store) error {
		for _, role := range model.Roles {
			g := model.RoleGroup{
				InvestigationID: inv.ID,
				Role:            role,
				Name:            model.GroupName(inv.Name, role),
			}
			if err := tx.InsertRoleGroup(ctx, &g); err != nil {
				return err
			}
			groups = append(groups, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// AddUser gives the user role on the investigation, replacing any role they had.
func AddUser(ctx context.Context, store *database.Store, inv *model.Investigation, userID int64, role model.Role) error {
	if !role.Valid() {
		return model.Invalid("invalid_role", "unknown role %q", role)
	}
	return store.InTx(ctx, func(tx *database.Store) error {
		g, err := tx.RoleGroup(ctx, inv.ID, role)
		if errors.Is(err, model.ErrNotFound) {
			if _, err = CreateAllFor(ctx, tx, inv); err != nil {
				return err
			}
			g, err = tx.RoleGroup(ctx, inv.ID, role)
		}
		if err != nil {
			return err
		}

		if _, err = tx.RemoveMemberships(ctx, inv.ID, userID); err != nil {
			return err
		}
		return tx.AddMember(ctx, g, userID)
	})
}

func GetUsers(ctx context.Context, store *database.Store, investigationID int64, role model.Role) ([]model.User, error) {
	return store.GroupUsers(ctx, investigationID, role)
}

func Members(ctx context.Context, store *database.Store, investigationID int64) ([]model.Member, error) {
	return store.Members(ctx, investigationID)
}

// Assignees lists the users responses of the investigation can be assigned to.
func Assignees(ctx context.Context, store *database.Store, investigationID int64) ([]model.User, error) {
	return store.UsersWithRoles(ctx, investigationID, ManagerRoles...)
}

// RemoveUser takes away the user's role on the investigation.
func RemoveUser(ctx context.Context, store *database.Store, investigationID, userID int64) error {
	n, err := store.RemoveMemberships(ctx, investigationID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RoleOf returns the user's role on the investigation and false for non-members.
func RoleOf(ctx context.Context, store *database.Store, investigationID, userID int64) (model.Role, bool, error) {
	return store.MemberRole(ctx, investigationID, userID)
}

// ChangeRole lets actor give the user role on the investigation. Admins manage members,
// but only Owners may grant Owner or touch an existing Owner.
func ChangeRole(ctx context.Context, store *database.Store, checker *Checker, actor *model.User, inv *model.Investigation, userID int64, role model.Role) error {
	if err := checker.Require(ctx, actor, AdminInvestigation, inv.ID); err != nil {
		return err
	}
	current, member, err := RoleOf(ctx, store, inv.ID, userID)
	if err != nil {
		return err
	}
	if role == model.RoleOwner || (member && current == model.RoleOwner) {
		if err = checker.Require(ctx, actor, MasterInvestigation, inv.ID); err != nil {
			return err
		}
	}
	return AddUser(ctx, store, inv, userID, role)
}

// Revoke lets actor remove the user from the investigation, with the same Owner rule
// as ChangeRole.
func Revoke(ctx context.Context, store *database.Store, checker *Checker, actor *model.User, inv *model.Investigation, userID int64) error {
	if err := checker.Require(ctx, actor, AdminInvestigation, inv.ID); err != nil {
		return err
	}
	current, member, err := RoleOf(ctx, store, inv.ID, userID)
	if err != nil {
		return err
	}
	if !member {
		return model.ErrNotFound
	}
	if current == model.RoleOwner {
		if err = checker.Require(ctx, actor, MasterInvestigation, inv.ID); err != nil {
			return err
		}
	}
	return RemoveUser(ctx, store, inv.ID, userID)
}
