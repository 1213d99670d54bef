package investigations

import (
	"context"
	"strings"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/schema"
)

func (s *Service) Forms(ctx context.Context, actor *model.User, inv *model.Investigation) ([]model.Form, error) {
	if err := s.checker.Require(ctx, actor, roles.ViewInvestigation, inv.ID); err != nil {
		return nil, err
	}
	return s.store.Forms(ctx, inv.ID)
}

// Form loads a form of the investigation by slug; a form of another investigation is
// not found.
func (s *Service) Form(ctx context.Context, inv *model.Investigation, slug string) (*model.Form, error) {
	f, err := s.store.FormBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if f.InvestigationID != inv.ID {
		return nil, model.ErrNotFound
	}
	return f, nil
}

func (s *Service) CreateForm(ctx context.Context, actor *model.User, inv *model.Investigation, f *model.Form) error {
	if err := s.checker.Require(ctx, actor, roles.AdminInvestigation, inv.ID); err != nil {
		return err
	}
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return model.Invalid("name_required", "a form needs a name")
	}
	if f.Slug == "" {
		f.Slug = model.Slugify(f.Name)
	}
	f.InvestigationID = inv.ID
	return s.store.InsertForm(ctx, f)
}

// Instances lists every version of a form, oldest first.
func (s *Service) Instances(ctx context.Context, actor *model.User, f *model.Form) ([]model.FormInstance, error) {
	if err := s.checker.Require(ctx, actor, roles.ViewInvestigation, f.InvestigationID); err != nil {
		return nil, err
	}
	return s.store.Instances(ctx, f.ID)
}

// CreateInstance publishes a new version of the form. Its definition must parse.
func (s *Service) CreateInstance(ctx context.Context, actor *model.User, f *model.Form, fi *model.FormInstance) error {
	if err := s.checker.Require(ctx, actor, roles.AdminInvestigation, f.InvestigationID); err != nil {
		return err
	}
	if _, err := schema.Parse(fi.FormJSON, fi.UISchemaJSON, fi.PriorityFields); err != nil {
		return model.Invalid("invalid_schema", "%s", err)
	}
	fi.FormID = f.ID
	return s.store.CreateInstance(ctx, fi)
}

// CreateInstanceFromTemplate publishes a new version copied from a template.
func (s *Service) CreateInstanceFromTemplate(ctx context.Context, actor *model.User, f *model.Form, templateID int64) (*model.FormInstance, error) {
	t, err := s.store.Template(ctx, templateID)
	if err != nil {
		return nil, err
	}
	fi := &model.FormInstance{FormSchema: t.FormSchema}
	if err = s.CreateInstance(ctx, actor, f, fi); err != nil {
		return nil, err
	}
	return fi, nil
}

// CreateTemplate stores a reusable form definition. Only superusers manage templates.
func (s *Service) CreateTemplate(ctx context.Context, actor *model.User, t *model.FormInstanceTemplate) error {
	if actor == nil {
		return model.ErrUnauthenticated
	}
	if !actor.IsSuperuser {
		return model.ErrForbidden
	}
	if strings.TrimSpace(t.Name) == "" {
		return model.Invalid("name_required", "a template needs a name")
	}
	if _, err := schema.Parse(t.FormJSON, t.UISchemaJSON, t.PriorityFields); err != nil {
		return model.Invalid("invalid_schema", "%s", err)
	}
	return s.store.InsertTemplate(ctx, t)
}
