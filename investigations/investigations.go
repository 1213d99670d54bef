// Package investigations is the entry point for everything an investigation owns: its
// forms and their versions, tags, members and invitations. Every operation checks the
// actor's role first.
package investigations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
)

type Service struct {
	store   *database.Store
	checker *roles.Checker
}

func NewService(store *database.Store, checker *roles.Checker) *Service {
	return &Service{store: store, checker: checker}
}

// Create stores the investigation together with its role groups and makes the creator
// its Owner, all in one transaction. The slug defaults to one derived from the name.
func (s *Service) Create(ctx context.Context, creator *model.User, inv *model.Investigation) error {
	if creator == nil {
		return model.ErrUnauthenticated
	}
	inv.Name = strings.TrimSpace(inv.Name)
	if inv.Name == "" {
		return model.Invalid("name_required", "an investigation needs a name")
	}
	if inv.Slug == "" {
		inv.Slug = model.Slugify(inv.Name)
	}
	if inv.Slug == "" {
		return model.Invalid("invalid_slug", "cannot derive a slug from %q", inv.Name)
	}

	err := s.store.InTx(ctx, func(tx *database.Store) error {
		if err := tx.InsertInvestigation(ctx, inv); err != nil {
			return err
		}
		if _, err := roles.CreateAllFor(ctx, tx, inv); err != nil {
			return err
		}
		return roles.AddUser(ctx, tx, inv, creator.ID, model.RoleOwner)
	})
	if err != nil {
		inv.ID = 0
		return err
	}
	log.WithFields(log.Fields{"investigation": inv.ID, "owner": creator.ID}).Info("Investigation created")
	return nil
}

func (s *Service) List(ctx context.Context, u *model.User) ([]model.Investigation, error) {
	if u == nil {
		return nil, model.ErrUnauthenticated
	}
	return s.store.InvestigationsFor(ctx, u)
}

// Get loads an investigation by slug. A missing investigation is not found; an existing
// one the user cannot view is forbidden.
func (s *Service) Get(ctx context.Context, u *model.User, slug string, perm roles.Permission) (*model.Investigation, error) {
	if u == nil {
		return nil, model.ErrUnauthenticated
	}
	inv, err := s.store.InvestigationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err = s.checker.Require(ctx, u, perm, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// Update saves the editable fields of inv. The slug is kept.
func (s *Service) Update(ctx context.Context, actor *model.User, inv *model.Investigation) error {
	if err := s.checker.Require(ctx, actor, roles.AdminInvestigation, inv.ID); err != nil {
		return err
	}
	if strings.TrimSpace(inv.Name) == "" {
		return model.Invalid("name_required", "an investigation needs a name")
	}
	return s.store.UpdateInvestigation(ctx, inv)
}

func (s *Service) Delete(ctx context.Context, actor *model.User, inv *model.Investigation) error {
	if err := s.checker.Require(ctx, actor, roles.MasterInvestigation, inv.ID); err != nil {
		return err
	}
	if err := s.store.DeleteInvestigation(ctx, inv.ID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"investigation": inv.ID, "by": actor.ID}).Info("Investigation deleted")
	return nil
}

// Members lists who holds which role on the investigation.
func (s *Service) Members(ctx context.Context, actor *model.User, inv *model.Investigation) ([]model.Member, error) {
	if err := s.checker.Require(ctx, actor, roles.ViewInvestigation, inv.ID); err != nil {
		return nil, err
	}
	return roles.Members(ctx, s.store, inv.ID)
}

// Assignees lists the members responses can be assigned to.
func (s *Service) Assignees(ctx context.Context, actor *model.User, inv *model.Investigation) ([]model.User, error) {
	if err := s.checker.Require(ctx, actor, roles.ViewInvestigation, inv.ID); err != nil {
		return nil, err
	}
	return roles.Assignees(ctx, s.store, inv.ID)
}

// GroupUsers lists the members holding one role.
func (s *Service) GroupUsers(ctx context.Context, actor *model.User, inv *model.Investigation, role model.Role) ([]model.User, error) {
	if err := s.checker.Require(ctx, actor, roles.ViewInvestigation, inv.ID); err != nil {
		return nil, err
	}
	return roles.GetUsers(ctx, s.store, inv.ID, role)
}

// SetRole gives an existing user a role, by email.
func (s *Service) SetRole(ctx context.Context, actor *model.User, inv *model.Investigation, email string, role model.Role) (*model.User, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		if err = s.checker.Require(ctx, actor, roles.AdminInvestigation, inv.ID); err != nil {
			return nil, err
		}
		return nil, model.Invalid("unknown_user", "no user with email %q", email)
	}
	if err != nil {
		return nil, err
	}
	if err = roles.ChangeRole(ctx, s.store, s.checker, actor, inv, u.ID, role); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) RemoveMember(ctx context.Context, actor *model.User, inv *model.Investigation, userID int64) error {
	return roles.Revoke(ctx, s.store, s.checker, actor, inv, userID)
}

func uniqueSuffix(base string, n int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n+1)
}
