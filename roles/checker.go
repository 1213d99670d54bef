package roles

import (
	"context"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/policy"
)

// RoleLookup finds a user's role on an investigation.
type RoleLookup interface {
	MemberRole(ctx context.Context, investigationID, userID int64) (model.Role, bool, error)
}

// Checker answers permission questions for a user on an investigation.
type Checker struct {
	lookup RoleLookup
	authz  *policy.Authorizer
}

func NewChecker(lookup RoleLookup, authz *policy.Authorizer) *Checker {
	return &Checker{lookup: lookup, authz: authz}
}

// Can reports whether u holds perm on the investigation. A nil user holds nothing.
func (c *Checker) Can(ctx context.Context, u *model.User, perm Permission, investigationID int64) (bool, error) {
	if u == nil {
		return false, nil
	}
	p := policy.Principal{UserID: u.ID, Superuser: u.IsSuperuser}
	if !u.IsSuperuser {
		role, ok, err := c.lookup.MemberRole(ctx, investigationID, u.ID)
		if err != nil {
			return false, err
		}
		if ok {
			p.Rank = role.Rank()
		}
	}
	return c.authz.IsAuthorized(p, perm, investigationID)
}

// Require is Can as an error: model.ErrUnauthenticated without a user,
// model.ErrForbidden when the permission is missing.
func (c *Checker) Require(ctx context.Context, u *model.User, perm Permission, investigationID int64) error {
	if u == nil {
		return model.ErrUnauthenticated
	}
	ok, err := c.Can(ctx, u, perm, investigationID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrForbidden
	}
	return nil
}

func (c *Checker) CanView(ctx context.Context, u *model.User, investigationID int64) (bool, error) {
	return c.Can(ctx, u, ViewInvestigation, investigationID)
}

func (c *Checker) CanManage(ctx context.Context, u *model.User, investigationID int64) (bool, error) {
	return c.Can(ctx, u, ManageInvestigation, investigationID)
}

func (c *Checker) CanAdmin(ctx context.Context, u *model.User, investigationID int64) (bool, error) {
	return c.Can(ctx, u, AdminInvestigation, investigationID)
}

func (c *Checker) CanMaster(ctx context.Context, u *model.User, investigationID int64) (bool, error) {
	return c.Can(ctx, u, MasterInvestigation, investigationID)
}
