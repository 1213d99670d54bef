package investigations

import (
	"context"
	"strings"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
)

const maxSlugAttempts = 100

func (s *Service) Tags(ctx context.Context, actor *model.User, inv *model.Investigation) ([]model.Tag, error) {
	if err := s.checker.Require(ctx, actor, roles.ViewInvestigation, inv.ID); err != nil {
		return nil, err
	}
	return s.store.Tags(ctx, inv.ID)
}

// CreateTag adds a tag to the investigation. Its slug is derived from the name and
// numbered when already taken.
func (s *Service) CreateTag(ctx context.Context, actor *model.User, inv *model.Investigation, name string) (*model.Tag, error) {
	if err := s.checker.Require(ctx, actor, roles.ManageInvestigation, inv.ID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	base := model.Slugify(name)
	if base == "" {
		return nil, model.Invalid("name_required", "a tag needs a name")
	}

	t := &model.Tag{Name: name, InvestigationID: inv.ID}
	for n := 0; n < maxSlugAttempts; n++ {
		t.Slug = uniqueSuffix(base, n)
		taken, err := s.store.SlugTaken(ctx, t.Slug)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		if err = s.store.InsertTag(ctx, t); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, model.Invalid("duplicate_slug", "no free slug for tag %q", name)
}

// tag loads a tag and checks the actor may manage its investigation.
func (s *Service) tag(ctx context.Context, actor *model.User, id int64) (*model.Tag, error) {
	if actor == nil {
		return nil, model.ErrUnauthenticated
	}
	t, err := s.store.Tag(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.checker.Require(ctx, actor, roles.ManageInvestigation, t.InvestigationID); err != nil {
		return nil, err
	}
	return t, nil
}

// RenameTag changes the name of a tag; its slug stays.
func (s *Service) RenameTag(ctx context.Context, actor *model.User, id int64, name string) (*model.Tag, error) {
	t, err := s.tag(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Invalid("name_required", "a tag needs a name")
	}
	if err = s.store.RenameTag(ctx, t.ID, name); err != nil {
		return nil, err
	}
	t.Name = name
	return t, nil
}

func (s *Service) DeleteTag(ctx context.Context, actor *model.User, id int64) error {
	t, err := s.tag(ctx, actor, id)
	if err != nil {
		return err
	}
	return s.store.DeleteTag(ctx, t.ID)
}
