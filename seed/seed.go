// Package seed fills an empty database with two demo investigations and their
// responses.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
)

const (
	FoodSlug   = "food-investigation"
	TravelSlug = "international-travel"
)

var statuses = []model.ResponseStatus{model.StatusSubmitted, model.StatusVerified, model.StatusInvalid}

var countries = []string{"Argentina", "Australia", "Canada", "Chile", "China", "Ghana", "India",
	"Japan", "Kenya", "Mexico", "Morocco", "Peru", "Thailand", "United States", "Vietnam"}

const foodFormJSON = `[{
	"schema": {
		"title": "Banana consumption",
		"slug": "banana-consumption",
		"type": "object",
		"properties": {
			"banana_consumption": {"type": "number"},
			"email": {"type": "string", "format": "email"}
		}
	},
	"conditions": {},
	"final": true
}]`

const travelFormJSON = `[{
	"schema": {
		"title": "Did you ever travel outside of your home country?",
		"slug": "travel-outside-europe",
		"type": "object",
		"properties": {
			"traveled_outside": {"type": "boolean", "enumNames": ["Yes", "No"]}
		}
	},
	"conditions": {}
}, {
	"schema": {
		"title": "Where to?",
		"slug": "where-to",
		"type": "object",
		"properties": {
			"farthest_destination": {"type": "string"},
			"email": {"type": "string", "format": "email"}%s
		}
	},
	"conditions": {"traveled_outside": {"equal": true}},
	"final": true
}, {
	"schema": {
		"title": "Would you like to?",
		"slug": "would-like-to-travel",
		"type": "object",
		"properties": {
			"like_to_travel": {"type": "boolean"},
			"email": {"type": "string", "format": "email"}
		}
	},
	"conditions": {"traveled_outside": {"equal": false}},
	"final": true
}]`

const travelUIJSON = `{
	"travel-outside-europe": {"traveled_outside": {"ui:title": "Have you been abroad?", "ui:widget": "radio"}},
	"where-to": {
		"farthest_destination": {"ui:title": "What is the farthest you have been?"}%s
	},
	"would-like-to-travel": {"like_to_travel": {"ui:title": "Would you like to travel?"}}
}`

type Seeder struct {
	store *database.Store
	rnd   *rand.Rand
	now   time.Time

	// Recreate drops demo investigations left by an earlier run instead of keeping them.
	Recreate bool
}

func New(store *database.Store, rnd *rand.Rand, now time.Time) *Seeder {
	return &Seeder{store: store, rnd: rnd, now: now}
}

// Run creates the demo investigations that do not exist yet.
func (s *Seeder) Run(ctx context.Context) error {
	parts := []struct {
		slug   string
		create func(context.Context, *database.Store) error
	}{
		{FoodSlug, s.food},
		{TravelSlug, s.travel},
	}

	for _, p := range parts {
		existing, err := s.store.InvestigationBySlug(ctx, p.slug)
		switch {
		case errors.Is(err, model.ErrNotFound):
		case err != nil:
			return err
		case !s.Recreate:
			log.Warnf("Investigation %q already exists, not recreating it", p.slug)
			continue
		default:
			if err = s.store.DeleteInvestigation(ctx, existing.ID); err != nil {
				return err
			}
			log.Infof("Deleted investigation %q", p.slug)
		}

		if err = s.store.InTx(ctx, func(tx *database.Store) error { return p.create(ctx, tx) }); err != nil {
			return err
		}
		log.Infof("Created investigation %q with responses", p.slug)
	}
	return nil
}

func (s *Seeder) investigation(ctx context.Context, tx *database.Store, name string, tagNames ...string) (*model.Investigation, []model.Tag, error) {
	inv := &model.Investigation{Name: name, Slug: model.Slugify(name), Status: model.InvestigationPublished}
	if err := tx.InsertInvestigation(ctx, inv); err != nil {
		return nil, nil, err
	}
	if _, err := roles.CreateAllFor(ctx, tx, inv); err != nil {
		return nil, nil, err
	}

	tags := make([]model.Tag, 0, len(tagNames))
	for _, name := range tagNames {
		t := model.Tag{Name: name, Slug: fmt.Sprintf("%s-%s", inv.Slug, model.Slugify(name)), InvestigationID: inv.ID}
		if err := tx.InsertTag(ctx, &t); err != nil {
			return nil, nil, err
		}
		tags = append(tags, t)
	}
	return inv, tags, nil
}

func (s *Seeder) form(ctx context.Context, tx *database.Store, inv *model.Investigation, name string) (*model.Form, error) {
	f := &model.Form{Name: name, Slug: model.Slugify(name), Status: model.FormPublished, InvestigationID: inv.ID}
	return f, tx.InsertForm(ctx, f)
}

// respond stores a response submitted at a random time in [from, to) with a random
// status and picks tags at random.
func (s *Seeder) respond(ctx context.Context, tx *database.Store, fi *model.FormInstance, payload map[string]any, from, to time.Time, tags []model.Tag, nTags int) error {
	r := &model.FormResponse{
		FormInstanceID: fi.ID,
		JSON:           payload,
		Status:         statuses[s.rnd.Intn(len(statuses))],
		SubmissionDate: from.Add(time.Duration(s.rnd.Int63n(int64(to.Sub(from))))),
	}
	if err := tx.InsertResponse(ctx, r); err != nil {
		return err
	}

	ids := make([]int64, nTags)
	for i := range ids {
		ids[i] = tags[s.rnd.Intn(len(tags))].ID
	}
	return tx.ReplaceTags(ctx, r.ID, ids)
}

func (s *Seeder) email() string {
	return fmt.Sprintf("participant%04d@example.com", s.rnd.Intn(10000))
}

func (s *Seeder) food(ctx context.Context, tx *database.Store) error {
	inv, tags, err := s.investigation(ctx, tx, "Food Investigation", "yellow", "fruit", "tropical", "plantain")
	if err != nil {
		return err
	}
	f, err := s.form(ctx, tx, inv, "Banana consumption")
	if err != nil {
		return err
	}
	fi := &model.FormInstance{FormID: f.ID}
	fi.FormJSON = json.RawMessage(foodFormJSON)
	fi.PriorityFields = []string{"email"}
	if err = tx.CreateInstance(ctx, fi); err != nil {
		return err
	}

	monthAgo := s.now.AddDate(0, 0, -30)
	for i := 0; i < 40; i++ {
		payload := map[string]any{
			"email":              s.email(),
			"banana_consumption": float64(s.rnd.Intn(13)),
		}
		if err = s.respond(ctx, tx, fi, payload, monthAgo, s.now, tags, 2); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) travel(ctx context.Context, tx *database.Store) error {
	inv, tags, err := s.investigation(ctx, tx, "International Travel",
		"europe", "south america", "north america", "africa", "asia", "australia")
	if err != nil {
		return err
	}
	f, err := s.form(ctx, tx, inv, "Travel outside of your home country")
	if err != nil {
		return err
	}

	first := &model.FormInstance{FormID: f.ID}
	first.FormJSON = json.RawMessage(fmt.Sprintf(travelFormJSON, ""))
	first.UISchemaJSON = json.RawMessage(fmt.Sprintf(travelUIJSON, ""))
	if err = tx.CreateInstance(ctx, first); err != nil {
		return err
	}

	// A question was forgotten; later participants answered a second version.
	second := &model.FormInstance{FormID: f.ID}
	second.FormJSON = json.RawMessage(fmt.Sprintf(travelFormJSON, `,
			"liked-it": {"type": "boolean"}`))
	second.UISchemaJSON = json.RawMessage(fmt.Sprintf(travelUIJSON, `,
		"liked-it": {"ui:title": "Did you like it?"}`))
	if err = tx.CreateInstance(ctx, second); err != nil {
		return err
	}

	monthAgo := s.now.AddDate(0, 0, -30)
	twoMonthsAgo := s.now.AddDate(0, 0, -60)

	batches := []struct {
		fi       *model.FormInstance
		from, to time.Time
		abroad   bool
		nTags    int
	}{
		{first, twoMonthsAgo, monthAgo, false, 2},
		{first, twoMonthsAgo, monthAgo, true, 3},
		{second, monthAgo, s.now, false, 2},
		{second, monthAgo, s.now, true, 1},
	}
	for _, b := range batches {
		for i := 0; i < 10; i++ {
			payload := map[string]any{"email": s.email(), "traveled_outside": b.abroad}
			if b.abroad {
				payload["farthest_destination"] = countries[s.rnd.Intn(len(countries))]
				if b.fi == second {
					payload["liked-it"] = s.rnd.Intn(2) == 0
				}
			} else {
				payload["like_to_travel"] = s.rnd.Intn(2) == 0
			}
			if err = s.respond(ctx, tx, b.fi, payload, b.from, b.to, tags, b.nTags); err != nil {
				return err
			}
		}
	}
	return nil
}
