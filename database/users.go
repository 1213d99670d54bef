package database

import (
	"context"
	"strings"
	"time"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.password_hash, u.is_superuser`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *model.User) error {
	return row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsSuperuser)
}

// CreateUser inserts u and sets its ID. Emails are stored lower case.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := s.q().QueryRowContext(ctx, `
		INSERT INTO user (email, first_name, last_name, password_hash, is_superuser)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsSuperuser,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return model.Invalid("duplicate_email", "a user with email %s already exists", u.Email)
	}
	return wrap(err, "db.insert_user")
}

func (s *Store) User(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := scanUser(s.q().QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM user u WHERE u.id = ?`, id), u)
	if err != nil {
		return nil, wrap(err, "db.get_user")
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := scanUser(s.q().QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM user u WHERE u.email = ?`,
		strings.ToLower(strings.TrimSpace(email))), u)
	if err != nil {
		return nil, wrap(err, "db.get_user_by_email")
	}
	return u, nil
}

// StoreToken records an issued token pair for later refresh.
func (s *Store) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := s.q().ExecContext(ctx, `
		INSERT INTO token (username, token_id, refresh_token_id, expiration)
		VALUES (?, ?, ?, ?)`,
		username, tokenID, refreshTokenID, utc(expiration),
	)
	return wrap(err, "db.insert_token")
}

// ConsumeToken deletes a stored token pair and returns its expiration. Refresh tokens are
// single use.
func (s *Store) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) (time.Time, error) {
	var expiration time.Time
	err := s.q().QueryRowContext(ctx, `
		SELECT expiration FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		username, tokenID, refreshTokenID,
	).Scan(&expiration)
	if err != nil {
		return time.Time{}, wrap(err, "db.consume_token")
	}

	_, err = s.q().ExecContext(ctx, `
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?`,
		username, tokenID, refreshTokenID,
	)
	return expiration, wrap(err, "db.consume_token.delete")
}

func (s *Store) queryUsers(ctx context.Context, code, query string, args ...any) ([]model.User, error) {
	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, code)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u := model.User{}
		if err = scanUser(rows, &u); err != nil {
			return nil, errors.Wrap(err, code+".scan")
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), code)
}
