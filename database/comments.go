package database

import (
	"context"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

func (s *Store) InsertComment(ctx context.Context, c *model.Comment) error {
	c.Date = utc(c.Date)
	err := s.q().QueryRowContext(ctx, `
		INSERT INTO comment (author_id, date, form_response_id, text, archived)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		c.AuthorID, c.Date, c.FormResponseID, c.Text, c.Archived,
	).Scan(&c.ID)
	return wrap(err, "db.insert_comment")
}

func (s *Store) Comment(ctx context.Context, id int64) (*model.Comment, error) {
	c := &model.Comment{}
	err := s.q().QueryRowContext(ctx, `
		SELECT id, author_id, date, form_response_id, text, archived
		FROM comment WHERE id = ?`, id,
	).Scan(&c.ID, &c.AuthorID, &c.Date, &c.FormResponseID, &c.Text, &c.Archived)
	if err != nil {
		return nil, wrap(err, "db.get_comment")
	}
	c.Date = c.Date.UTC()
	return c, nil
}

func (s *Store) ArchiveComment(ctx context.Context, id int64) error {
	res, err := s.q().ExecContext(ctx, `UPDATE comment SET archived = 1 WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.archive_comment")
	}
	return checkAffected(res, "db.archive_comment")
}

// Comments lists the comments on a response, oldest first, with their authors.
func (s *Store) Comments(ctx context.Context, responseID int64, includeArchived bool) ([]model.Comment, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT c.id, c.author_id, c.date, c.form_response_id, c.text, c.archived, `+userColumns+`
		FROM comment c
		INNER JOIN user u ON (u.id = c.author_id)
		WHERE c.form_response_id = ? AND (? OR NOT c.archived)
		ORDER BY c.date, c.id`,
		responseID, includeArchived,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_comments")
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c := model.Comment{Author: &model.User{}}
		a := c.Author
		err = rows.Scan(&c.ID, &c.AuthorID, &c.Date, &c.FormResponseID, &c.Text, &c.Archived,
			&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.IsSuperuser)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_comments.scan")
		}
		c.Date = c.Date.UTC()
		comments = append(comments, c)
	}
	return comments, errors.Wrap(rows.Err(), "db.get_comments")
}
