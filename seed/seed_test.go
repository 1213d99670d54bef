package seed_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/seed"
	"github.com/mbolis/newsroom-forms/testutil"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRun(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()

	s := seed.New(store, rand.New(rand.NewSource(1)), now)
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	food, err := store.InvestigationBySlug(ctx, seed.FoodSlug)
	if err != nil {
		t.Fatalf("food investigation: %v", err)
	}
	bananas, err := store.FormBySlug(ctx, "banana-consumption")
	if err != nil || bananas.InvestigationID != food.ID {
		t.Fatalf("banana form = %+v, %v", bananas, err)
	}

	counts, err := store.CountByStatus(ctx, bananas.ID)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 40 {
		t.Fatalf("got %d banana responses, want 40", total)
	}

	groups, _ := store.RoleGroups(ctx, food.ID)
	if len(groups) != 4 {
		t.Fatalf("food has %d role groups", len(groups))
	}

	travel, err := store.InvestigationBySlug(ctx, seed.TravelSlug)
	if err != nil {
		t.Fatalf("travel investigation: %v", err)
	}
	forms, _ := store.Forms(ctx, travel.ID)
	if len(forms) != 1 {
		t.Fatalf("travel forms = %+v", forms)
	}
	versions, _ := store.Instances(ctx, forms[0].ID)
	if len(versions) != 2 {
		t.Fatalf("travel has %d versions", len(versions))
	}
	for _, fi := range versions {
		if _, err = fi.Definition(); err != nil {
			t.Fatalf("version %d does not parse: %v", fi.Version, err)
		}
	}
	responses, _, _ := store.Responses(ctx, forms[0].ID, model.ResponseFilter{})
	if len(responses) != 40 {
		t.Fatalf("got %d travel responses", len(responses))
	}
	for _, r := range responses {
		if r.SubmissionDate.After(now) || r.SubmissionDate.Before(now.AddDate(0, 0, -60)) {
			t.Fatalf("submission date %v out of range", r.SubmissionDate)
		}
	}
}

func TestRunKeepsExisting(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()

	if err := seed.New(store, rand.New(rand.NewSource(1)), now).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	first, _ := store.InvestigationBySlug(ctx, seed.FoodSlug)

	if err := seed.New(store, rand.New(rand.NewSource(2)), now).Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	kept, _ := store.InvestigationBySlug(ctx, seed.FoodSlug)
	if kept.ID != first.ID {
		t.Fatalf("investigation recreated without Recreate")
	}

	s := seed.New(store, rand.New(rand.NewSource(3)), now)
	s.Recreate = true
	if err := s.Run(ctx); err != nil {
		t.Fatalf("recreating Run: %v", err)
	}
	recreated, _ := store.InvestigationBySlug(ctx, seed.FoodSlug)
	if recreated.ID == first.ID {
		t.Fatalf("investigation not recreated")
	}
}
