package database

import (
	"context"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

func (s *Store) queryTags(ctx context.Context, code, query string, args ...any) ([]model.Tag, error) {
	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, code)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		t := model.Tag{}
		if err = rows.Scan(&t.ID, &t.Name, &t.Slug, &t.InvestigationID); err != nil {
			return nil, errors.Wrap(err, code+".scan")
		}
		tags = append(tags, t)
	}
	return tags, errors.Wrap(rows.Err(), code)
}

func (s *Store) Tags(ctx context.Context, investigationID int64) ([]model.Tag, error) {
	return s.queryTags(ctx, "db.get_tags", `
		SELECT id, name, slug, investigation_id
		FROM tag
		WHERE investigation_id = ?
		ORDER BY name, id`,
		investigationID,
	)
}

func (s *Store) Tag(ctx context.Context, id int64) (*model.Tag, error) {
	t := &model.Tag{}
	err := s.q().QueryRowContext(ctx, `
		SELECT id, name, slug, investigation_id FROM tag WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.InvestigationID)
	if err != nil {
		return nil, wrap(err, "db.get_tag")
	}
	return t, nil
}

// TagBySlug finds a tag of the investigation.
func (s *Store) TagBySlug(ctx context.Context, investigationID int64, slug string) (*model.Tag, error) {
	t := &model.Tag{}
	err := s.q().QueryRowContext(ctx, `
		SELECT id, name, slug, investigation_id FROM tag WHERE investigation_id = ? AND slug = ?`,
		investigationID, slug,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.InvestigationID)
	if err != nil {
		return nil, wrap(err, "db.get_tag_by_slug")
	}
	return t, nil
}

// SlugTaken reports whether any tag already uses slug.
func (s *Store) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.q().QueryRowContext(ctx, `SELECT COUNT(*) FROM tag WHERE slug = ?`, slug).Scan(&n)
	return n > 0, wrap(err, "db.tag_slug_taken")
}

func (s *Store) InsertTag(ctx context.Context, t *model.Tag) error {
	err := s.q().QueryRowContext(ctx, `
		INSERT INTO tag (name, slug, investigation_id)
		VALUES (?, ?, ?)
		RETURNING id`,
		t.Name, t.Slug, t.InvestigationID,
	).Scan(&t.ID)
	if isUniqueViolation(err) {
		return model.Invalid("duplicate_slug", "a tag with slug %q already exists", t.Slug)
	}
	return wrap(err, "db.insert_tag")
}

// RenameTag changes the display name; the slug stays.
func (s *Store) RenameTag(ctx context.Context, id int64, name string) error {
	res, err := s.q().ExecContext(ctx, `UPDATE tag SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return errors.Wrap(err, "db.update_tag")
	}
	return checkAffected(res, "db.update_tag")
}

func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM tag WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_tag")
	}
	return checkAffected(res, "db.delete_tag")
}
