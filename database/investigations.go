package database

import (
	"context"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

const investigationColumns = `i.id, i.name, i.slug, i.status, i.short_description, i.category,
	i.research_questions, i.text, i.methodology, i.faq, i.color, i.data_privacy_url`

func scanInvestigation(row scanner, inv *model.Investigation) error {
	return row.Scan(&inv.ID, &inv.Name, &inv.Slug, &inv.Status, &inv.ShortDescription, &inv.Category,
		&inv.ResearchQuestions, &inv.Text, &inv.Methodology, &inv.FAQ, &inv.Color, &inv.DataPrivacyURL)
}

// InsertInvestigation stores inv and sets its ID. A taken slug is a validation error.
func (s *Store) InsertInvestigation(ctx context.Context, inv *model.Investigation) error {
	if inv.Status == "" {
		inv.Status = model.InvestigationDraft
	}
	err := s.q().QueryRowContext(ctx, `
		INSERT INTO investigation (name, slug, status, short_description, category,
			research_questions, text, methodology, faq, color, data_privacy_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		inv.Name, inv.Slug, inv.Status, inv.ShortDescription, inv.Category,
		inv.ResearchQuestions, inv.Text, inv.Methodology, inv.FAQ, inv.Color, inv.DataPrivacyURL,
	).Scan(&inv.ID)
	if isUniqueViolation(err) {
		return model.Invalid("duplicate_slug", "an investigation with slug %q already exists", inv.Slug)
	}
	return wrap(err, "db.insert_investigation")
}

func (s *Store) Investigation(ctx context.Context, id int64) (*model.Investigation, error) {
	inv := &model.Investigation{}
	err := scanInvestigation(s.q().QueryRowContext(ctx, `
		SELECT `+investigationColumns+` FROM investigation i WHERE i.id = ?`, id), inv)
	if err != nil {
		return nil, wrap(err, "db.get_investigation")
	}
	return inv, nil
}

func (s *Store) InvestigationBySlug(ctx context.Context, slug string) (*model.Investigation, error) {
	inv := &model.Investigation{}
	err := scanInvestigation(s.q().QueryRowContext(ctx, `
		SELECT `+investigationColumns+` FROM investigation i WHERE i.slug = ?`, slug), inv)
	if err != nil {
		return nil, wrap(err, "db.get_investigation_by_slug")
	}
	return inv, nil
}

// InvestigationsFor lists the investigations u is a member of; superusers see all of them.
func (s *Store) InvestigationsFor(ctx context.Context, u *model.User) ([]model.Investigation, error) {
	query := `SELECT ` + investigationColumns + ` FROM investigation i`
	args := []any{}
	if !u.IsSuperuser {
		query += `
		INNER JOIN role_group_member m ON (m.investigation_id = i.id)
		WHERE m.user_id = ?`
		args = append(args, u.ID)
	}
	query += ` ORDER BY i.name, i.id`

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_investigations")
	}
	defer rows.Close()

	invs := []model.Investigation{}
	for rows.Next() {
		inv := model.Investigation{}
		if err = scanInvestigation(rows, &inv); err != nil {
			return nil, errors.Wrap(err, "db.get_investigations.scan")
		}
		invs = append(invs, inv)
	}
	return invs, errors.Wrap(rows.Err(), "db.get_investigations")
}

// UpdateInvestigation saves every field but the slug, which never changes.
func (s *Store) UpdateInvestigation(ctx context.Context, inv *model.Investigation) error {
	res, err := s.q().ExecContext(ctx, `
		UPDATE investigation
		SET
			name = ?,
			status = ?,
			short_description = ?,
			category = ?,
			research_questions = ?,
			text = ?,
			methodology = ?,
			faq = ?,
			color = ?,
			data_privacy_url = ?
		WHERE id = ?`,
		inv.Name, inv.Status, inv.ShortDescription, inv.Category, inv.ResearchQuestions,
		inv.Text, inv.Methodology, inv.FAQ, inv.Color, inv.DataPrivacyURL,
		inv.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_investigation")
	}
	return checkAffected(res, "db.update_investigation")
}

// DeleteInvestigation removes the investigation; its groups, forms, responses and tags
// go with it.
func (s *Store) DeleteInvestigation(ctx context.Context, id int64) error {
	res, err := s.q().ExecContext(ctx, `DELETE FROM investigation WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "db.delete_investigation")
	}
	return checkAffected(res, "db.delete_investigation")
}
