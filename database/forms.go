package database

import (
	"context"
	"database/sql"

	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

const formColumns = `f.id, f.name, f.slug, f.status, f.investigation_id`

func scanForm(row scanner, f *model.Form) error {
	return row.Scan(&f.ID, &f.Name, &f.Slug, &f.Status, &f.InvestigationID)
}

func (s *Store) InsertForm(ctx context.Context, f *model.Form) error {
	if f.Status == "" {
		f.Status = model.FormDraft
	}
	err := s.q().QueryRowContext(ctx, `
		INSERT INTO form (name, slug, status, investigation_id)
		VALUES (?, ?, ?, ?)
		RETURNING id`,
		f.Name, f.Slug, f.Status, f.InvestigationID,
	).Scan(&f.ID)
	if isUniqueViolation(err) {
		return model.Invalid("duplicate_slug", "a form with slug %q already exists", f.Slug)
	}
	return wrap(err, "db.insert_form")
}

func (s *Store) Form(ctx context.Context, id int64) (*model.Form, error) {
	f := &model.Form{}
	err := scanForm(s.q().QueryRowContext(ctx, `
		SELECT `+formColumns+` FROM form f WHERE f.id = ?`, id), f)
	if err != nil {
		return nil, wrap(err, "db.get_form")
	}
	return f, nil
}

func (s *Store) FormBySlug(ctx context.Context, slug string) (*model.Form, error) {
	f := &model.Form{}
	err := scanForm(s.q().QueryRowContext(ctx, `
		SELECT `+formColumns+` FROM form f WHERE f.slug = ?`, slug), f)
	if err != nil {
		return nil, wrap(err, "db.get_form_by_slug")
	}
	return f, nil
}

func (s *Store) Forms(ctx context.Context, investigationID int64) ([]model.Form, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT `+formColumns+` FROM form f
		WHERE f.investigation_id = ?
		ORDER BY f.name, f.id`,
		investigationID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_forms")
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		f := model.Form{}
		if err = scanForm(rows, &f); err != nil {
			return nil, errors.Wrap(err, "db.get_forms.scan")
		}
		forms = append(forms, f)
	}
	return forms, errors.Wrap(rows.Err(), "db.get_forms")
}

const schemaColumns = `form_json, ui_schema_json, priority_fields, email_template, email_template_html, redirect_url_template`

func scanSchema(fs *model.FormSchema) (dest []any, finish func() error) {
	var formJSON, uiJSON, priority string
	dest = []any{&formJSON, &uiJSON, &priority, &fs.EmailTemplate, &fs.EmailTemplateHTML, &fs.RedirectURLTemplate}
	finish = func() error {
		fs.FormJSON = json.RawMessage(formJSON)
		fs.UISchemaJSON = json.RawMessage(uiJSON)
		fs.PriorityFields = nil
		if priority != "" {
			return json.Unmarshal([]byte(priority), &fs.PriorityFields)
		}
		return nil
	}
	return
}

func schemaArgs(fs *model.FormSchema) ([]any, error) {
	priority := fs.PriorityFields
	if priority == nil {
		priority = []string{}
	}
	priorityJSON, err := marshalText(priority)
	if err != nil {
		return nil, err
	}
	return []any{
		rawOrDefault(fs.FormJSON, "[]"),
		rawOrDefault(fs.UISchemaJSON, "{}"),
		priorityJSON,
		fs.EmailTemplate,
		fs.EmailTemplateHTML,
		fs.RedirectURLTemplate,
	}, nil
}

func scanInstance(row scanner, fi *model.FormInstance) error {
	dest, finish := scanSchema(&fi.FormSchema)
	if err := row.Scan(append([]any{&fi.ID, &fi.FormID, &fi.Version}, dest...)...); err != nil {
		return err
	}
	return finish()
}

func (s *Store) Instance(ctx context.Context, id int64) (*model.FormInstance, error) {
	fi := &model.FormInstance{}
	err := scanInstance(s.q().QueryRowContext(ctx, `
		SELECT id, form_id, version, `+schemaColumns+`
		FROM form_instance WHERE id = ?`, id), fi)
	if err != nil {
		return nil, wrap(err, "db.get_form_instance")
	}
	return fi, nil
}

// LatestInstance returns the highest version of the form, or nil when the form has none.
func (s *Store) LatestInstance(ctx context.Context, formID int64) (*model.FormInstance, error) {
	fi := &model.FormInstance{}
	err := scanInstance(s.q().QueryRowContext(ctx, `
		SELECT id, form_id, version, `+schemaColumns+`
		FROM form_instance
		WHERE form_id = ?
		ORDER BY version DESC
		LIMIT 1`, formID), fi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.get_latest_instance")
	}
	return fi, nil
}

// Instances lists every version of the form, oldest first.
func (s *Store) Instances(ctx context.Context, formID int64) ([]model.FormInstance, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id, form_id, version, `+schemaColumns+`
		FROM form_instance
		WHERE form_id = ?
		ORDER BY version`,
		formID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_instances")
	}
	defer rows.Close()

	instances := []model.FormInstance{}
	for rows.Next() {
		fi := model.FormInstance{}
		if err = scanInstance(rows, &fi); err != nil {
			return nil, errors.Wrap(err, "db.get_instances.scan")
		}
		instances = append(instances, fi)
	}
	return instances, errors.Wrap(rows.Err(), "db.get_instances")
}

const maxVersionAttempts = 3

// CreateInstance stores fi as the next version of its form, starting at 0. Versions are
// assigned inside a transaction; a concurrent writer taking the same number trips the
// unique (form_id, version) constraint and the assignment is retried.
func (s *Store) CreateInstance(ctx context.Context, fi *model.FormInstance) error {
	args, err := schemaArgs(&fi.FormSchema)
	if err != nil {
		return errors.Wrap(err, "db.insert_instance.encode")
	}

	for attempt := 1; ; attempt++ {
		err = s.InTx(ctx, func(tx *Store) error {
			var version int
			err := tx.q().QueryRowContext(ctx, `
				SELECT COALESCE(MAX(version) + 1, 0) FROM form_instance WHERE form_id = ?`,
				fi.FormID,
			).Scan(&version)
			if err != nil {
				return errors.Wrap(err, "db.insert_instance.next_version")
			}

			err = tx.q().QueryRowContext(ctx, `
				INSERT INTO form_instance (form_id, version, `+schemaColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING id`,
				append([]any{fi.FormID, version}, args...)...,
			).Scan(&fi.ID)
			if err != nil {
				return err
			}
			fi.Version = version
			return nil
		})
		if !isUniqueViolation(err) || s.tx != nil || attempt == maxVersionAttempts {
			break
		}
		log.Debugf("db.insert_instance: version conflict on form %d, retrying", fi.FormID)
	}
	if isUniqueViolation(err) {
		return model.Invalid("version_conflict", "could not assign a version to form %d", fi.FormID)
	}
	return wrap(err, "db.insert_instance")
}

func scanTemplate(row scanner, t *model.FormInstanceTemplate) error {
	dest, finish := scanSchema(&t.FormSchema)
	if err := row.Scan(append([]any{&t.ID, &t.Name, &t.Description}, dest...)...); err != nil {
		return err
	}
	return finish()
}

func (s *Store) Templates(ctx context.Context) ([]model.FormInstanceTemplate, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT id, name, description, `+schemaColumns+`
		FROM form_instance_template
		ORDER BY name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_templates")
	}
	defer rows.Close()

	templates := []model.FormInstanceTemplate{}
	for rows.Next() {
		t := model.FormInstanceTemplate{}
		if err = scanTemplate(rows, &t); err != nil {
			return nil, errors.Wrap(err, "db.get_templates.scan")
		}
		templates = append(templates, t)
	}
	return templates, errors.Wrap(rows.Err(), "db.get_templates")
}

func (s *Store) Template(ctx context.Context, id int64) (*model.FormInstanceTemplate, error) {
	t := &model.FormInstanceTemplate{}
	err := scanTemplate(s.q().QueryRowContext(ctx, `
		SELECT id, name, description, `+schemaColumns+`
		FROM form_instance_template WHERE id = ?`, id), t)
	if err != nil {
		return nil, wrap(err, "db.get_template")
	}
	return t, nil
}

func (s *Store) InsertTemplate(ctx context.Context, t *model.FormInstanceTemplate) error {
	args, err := schemaArgs(&t.FormSchema)
	if err != nil {
		return errors.Wrap(err, "db.insert_template.encode")
	}
	err = s.q().QueryRowContext(ctx, `
		INSERT INTO form_instance_template (name, description, `+schemaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		append([]any{t.Name, t.Description}, args...)...,
	).Scan(&t.ID)
	return wrap(err, "db.insert_template")
}
