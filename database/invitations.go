package database

import (
	"context"
	"database/sql"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

func scanInvitation(row scanner, inv *model.Invitation) error {
	var accepted sql.NullBool
	inv.User = &model.User{}
	u := inv.User
	err := row.Scan(&inv.ID, &inv.UserID, &inv.InvestigationID, &accepted,
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsSuperuser)
	if err != nil {
		return err
	}
	if accepted.Valid {
		inv.Accepted = &accepted.Bool
	}
	return nil
}

const invitationSelect = `
	SELECT i.id, i.user_id, i.investigation_id, i.accepted, ` + userColumns + `
	FROM invitation i
	INNER JOIN user u ON (u.id = i.user_id)`

// InsertInvitation records an open invitation. Inviting the same user twice is a
// validation error.
func (s *Store) InsertInvitation(ctx context.Context, inv *model.Invitation) error {
	err := s.q().QueryRowContext(ctx, `
		INSERT INTO invitation (user_id, investigation_id, accepted)
		VALUES (?, ?, NULL)
		RETURNING id`,
		inv.UserID, inv.InvestigationID,
	).Scan(&inv.ID)
	if isUniqueViolation(err) {
		return model.Invalid("duplicate_invitation", "user %d is already invited", inv.UserID)
	}
	return wrap(err, "db.insert_invitation")
}

func (s *Store) Invitation(ctx context.Context, id int64) (*model.Invitation, error) {
	inv := &model.Invitation{}
	err := scanInvitation(s.q().QueryRowContext(ctx, invitationSelect+` WHERE i.id = ?`, id), inv)
	if err != nil {
		return nil, wrap(err, "db.get_invitation")
	}
	return inv, nil
}

func (s *Store) queryInvitations(ctx context.Context, code, where string, args ...any) ([]model.Invitation, error) {
	rows, err := s.q().QueryContext(ctx, invitationSelect+where+` ORDER BY i.id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, code)
	}
	defer rows.Close()

	invitations := []model.Invitation{}
	for rows.Next() {
		inv := model.Invitation{}
		if err = scanInvitation(rows, &inv); err != nil {
			return nil, errors.Wrap(err, code+".scan")
		}
		invitations = append(invitations, inv)
	}
	return invitations, errors.Wrap(rows.Err(), code)
}

// Invitations lists the invitations of an investigation that were not declined.
func (s *Store) Invitations(ctx context.Context, investigationID int64) ([]model.Invitation, error) {
	return s.queryInvitations(ctx, "db.get_invitations", `
		WHERE i.investigation_id = ? AND (i.accepted IS NULL OR i.accepted)`,
		investigationID,
	)
}

// PendingInvitations lists the invitations a user has not answered yet.
func (s *Store) PendingInvitations(ctx context.Context, userID int64) ([]model.Invitation, error) {
	return s.queryInvitations(ctx, "db.get_pending_invitations", `
		WHERE i.user_id = ? AND i.accepted IS NULL`,
		userID,
	)
}

func (s *Store) SetInvitationAccepted(ctx context.Context, id int64, accepted bool) error {
	res, err := s.q().ExecContext(ctx, `UPDATE invitation SET accepted = ? WHERE id = ?`, accepted, id)
	if err != nil {
		return errors.Wrap(err, "db.update_invitation")
	}
	return checkAffected(res, "db.update_invitation")
}

func (s *Store) DeleteInvitation(ctx context.Context, id int64) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM invitation WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_invitation")
	}
	return checkAffected(res, "db.delete_invitation")
}
