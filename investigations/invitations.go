package investigations

import (
	"context"
	"errors"
	"strings"

	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
)

// Invite asks a user to join the investigation. Unknown addresses get an account
// without a password.
func (s *Service) Invite(ctx context.Context, actor *model.User, inv *model.Investigation, email string) (*model.Invitation, error) {
	if err := s.checker.Require(ctx, actor, roles.AdminInvestigation, inv.ID); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, model.Invalid("invalid_email", "%q is not an email address", email)
	}

	invitation := &model.Invitation{InvestigationID: inv.ID}
	err := s.store.InTx(ctx, func(tx *database.Store) error {
		u, err := tx.UserByEmail(ctx, email)
		if errors.Is(err, model.ErrNotFound) {
			u = &model.User{Email: email}
			err = tx.CreateUser(ctx, u)
		}
		if err != nil {
			return err
		}

		_, member, err := roles.RoleOf(ctx, tx, inv.ID, u.ID)
		if err != nil {
			return err
		}
		if member {
			return model.Invalid("already_member", "%s is already a member", email)
		}

		invitation.UserID = u.ID
		invitation.User = u
		return tx.InsertInvitation(ctx, invitation)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"investigation": inv.ID, "user": invitation.UserID}).Info("User invited")
	return invitation, nil
}

func (s *Service) Invitations(ctx context.Context, actor *model.User, inv *model.Investigation) ([]model.Invitation, error) {
	if err := s.checker.Require(ctx, actor, roles.AdminInvestigation, inv.ID); err != nil {
		return nil, err
	}
	return s.store.Invitations(ctx, inv.ID)
}

// PendingInvitations lists the invitations u has not answered.
func (s *Service) PendingInvitations(ctx context.Context, u *model.User) ([]model.Invitation, error) {
	if u == nil {
		return nil, model.ErrUnauthenticated
	}
	return s.store.PendingInvitations(ctx, u.ID)
}

func (s *Service) DeleteInvitation(ctx context.Context, actor *model.User, id int64) error {
	if actor == nil {
		return model.ErrUnauthenticated
	}
	invitation, err := s.store.Invitation(ctx, id)
	if err != nil {
		return err
	}
	if err = s.checker.Require(ctx, actor, roles.AdminInvestigation, invitation.InvestigationID); err != nil {
		return err
	}
	return s.store.DeleteInvitation(ctx, id)
}

// AnswerInvitation lets the invited user accept or decline. Accepting makes them a
// Viewer and removes the invitation; declining is remembered.
func (s *Service) AnswerInvitation(ctx context.Context, u *model.User, id int64, accept bool) error {
	if u == nil {
		return model.ErrUnauthenticated
	}
	invitation, err := s.store.Invitation(ctx, id)
	if err != nil {
		return err
	}
	if invitation.UserID != u.ID {
		return model.ErrForbidden
	}
	if invitation.Accepted != nil {
		return model.Invalid("already_answered", "invitation %d was already answered", id)
	}

	if !accept {
		return s.store.SetInvitationAccepted(ctx, id, false)
	}
	return s.store.InTx(ctx, func(tx *database.Store) error {
		inv, err := tx.Investigation(ctx, invitation.InvestigationID)
		if err != nil {
			return err
		}
		if err = roles.AddUser(ctx, tx, inv, u.ID, model.RoleViewer); err != nil {
			return err
		}
		return tx.DeleteInvitation(ctx, id)
	})
}
