package triage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/testutil"
	"github.com/mbolis/newsroom-forms/triage"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTransitionStampsOnlyOnChange(t *testing.T) {
	r := &model.FormResponse{Status: model.StatusSubmitted}

	if triage.Transition(r, model.StatusSubmitted, t0) {
		t.Fatalf("same status reported a change")
	}
	if r.LastStatusChangedDate != nil {
		t.Fatalf("date stamped without a change")
	}

	if !triage.Transition(r, model.StatusInvalid, t0) {
		t.Fatalf("change not reported")
	}
	if !r.LastStatusChangedDate.Equal(t0) {
		t.Fatalf("date = %v", r.LastStatusChangedDate)
	}

	// any status may follow any other
	later := t0.Add(time.Hour)
	if !triage.Transition(r, model.StatusVerified, later) || !r.LastStatusChangedDate.Equal(later) {
		t.Fatalf("trash to verified not applied")
	}
}

func TestBucketStatus(t *testing.T) {
	tests := []struct {
		bucket string
		want   model.ResponseStatus
	}{
		{"inbox", model.StatusSubmitted},
		{"verified", model.StatusVerified},
		{"trash", model.StatusInvalid},
	}
	for _, tt := range tests {
		got, err := triage.BucketStatus(tt.bucket)
		if err != nil || got != tt.want {
			t.Errorf("BucketStatus(%q) = %q, %v", tt.bucket, got, err)
		}
		if triage.BucketOf(got) != tt.bucket {
			t.Errorf("BucketOf(%q) = %q", got, triage.BucketOf(got))
		}
	}

	if _, err := triage.BucketStatus("archive"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown bucket = %v", err)
	}
}

func TestSetStatusMovesBetweenBuckets(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	f := testutil.Form(t, store, testutil.Investigation(t, store))
	fi := testutil.Instance(t, store, f, testutil.SimpleFormJSON)
	older := testutil.Response(t, store, fi, map[string]any{"name": "a"}, t0)
	newer := testutil.Response(t, store, fi, map[string]any{"name": "b"}, t0.Add(time.Hour))

	svc := triage.NewService(store).WithClock(clock(t0.Add(2 * time.Hour)))

	r, err := svc.LoadResponse(ctx, f.ID, older.ID)
	if err != nil {
		t.Fatalf("LoadResponse: %v", err)
	}
	if err = svc.SetStatus(ctx, r, model.StatusVerified); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	inbox, err := svc.List(ctx, f.ID, triage.BucketInbox, model.ResponseFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(inbox) != 1 || inbox[0].ID != newer.ID {
		t.Fatalf("inbox = %+v", inbox)
	}
	verified, _ := svc.List(ctx, f.ID, triage.BucketVerified, model.ResponseFilter{})
	if len(verified) != 1 || verified[0].ID != older.ID {
		t.Fatalf("verified = %+v", verified)
	}

	if err = svc.SetStatus(ctx, r, "X"); err == nil {
		t.Fatalf("invalid status accepted")
	}
}

func TestLoadResponseOfAnotherForm(t *testing.T) {
	store := testutil.OpenStore(t)
	inv := testutil.Investigation(t, store)
	f := testutil.Form(t, store, inv)
	other := testutil.Form(t, store, inv)
	fi := testutil.Instance(t, store, f, testutil.SimpleFormJSON)
	r := testutil.Response(t, store, fi, nil, t0)

	_, err := triage.NewService(store).LoadResponse(context.Background(), other.ID, r.ID)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetTagsSkipsForeignTags(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	foreign := testutil.Tag(t, store, testutil.Investigation(t, store), "Elsewhere")
	own := testutil.Tag(t, store, inv, "Ripe")
	f := testutil.Form(t, store, inv)
	r := testutil.Response(t, store, testutil.Instance(t, store, f, testutil.SimpleFormJSON), nil, t0)

	svc := triage.NewService(store)
	if err := svc.SetTags(ctx, r, inv.ID, []int64{own.ID, foreign.ID}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if len(r.Tags) != 1 || r.Tags[0].ID != own.ID {
		t.Fatalf("tags = %+v", r.Tags)
	}

	if err := svc.SetTags(ctx, r, inv.ID, nil); err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if len(r.Tags) != 0 {
		t.Fatalf("tags not cleared: %+v", r.Tags)
	}
}

func TestSetAssigneesOnlyManagers(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	editor := testutil.User(t, store)
	viewer := testutil.User(t, store)
	stranger := testutil.User(t, store)
	testutil.Member(t, store, inv, editor, model.RoleEditor)
	testutil.Member(t, store, inv, viewer, model.RoleViewer)
	f := testutil.Form(t, store, inv)
	r := testutil.Response(t, store, testutil.Instance(t, store, f, testutil.SimpleFormJSON), nil, t0)

	svc := triage.NewService(store)
	err := svc.SetAssignees(ctx, r, inv.ID, []int64{editor.ID, viewer.ID, stranger.ID})
	if err != nil {
		t.Fatalf("SetAssignees: %v", err)
	}
	if len(r.Assignees) != 1 || r.Assignees[0].ID != editor.ID {
		t.Fatalf("assignees = %+v", r.Assignees)
	}
}

func TestBatch(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	editor := testutil.User(t, store)
	testutil.Member(t, store, inv, editor, model.RoleEditor)
	viewer := testutil.User(t, store)
	testutil.Member(t, store, inv, viewer, model.RoleViewer)
	tag := testutil.Tag(t, store, inv, "Checked")
	foreignTag := testutil.Tag(t, store, testutil.Investigation(t, store), "Elsewhere")

	f := testutil.Form(t, store, inv)
	fi := testutil.Instance(t, store, f, testutil.SimpleFormJSON)
	a := testutil.Response(t, store, fi, nil, t0)
	b := testutil.Response(t, store, fi, nil, t0)

	otherForm := testutil.Form(t, store, inv)
	outsider := testutil.Response(t, store, testutil.Instance(t, store, otherForm, testutil.SimpleFormJSON), nil, t0)

	svc := triage.NewService(store).WithClock(clock(t0.Add(time.Hour)))
	ids := []int64{a.ID, b.ID, outsider.ID}

	tests := []struct {
		action triage.BatchAction
		want   int64
	}{
		{triage.BatchAction{Action: triage.ActionMarkVerified}, 2},
		{triage.BatchAction{Action: triage.ActionMarkVerified}, 2},
		{triage.BatchAction{Action: triage.ActionTag, TagID: tag.ID}, 2},
		{triage.BatchAction{Action: triage.ActionAssignee, UserID: editor.ID}, 2},
		{triage.BatchAction{Action: triage.ActionTag, TagID: foreignTag.ID}, 0},
		{triage.BatchAction{Action: triage.ActionAssignee, UserID: viewer.ID}, 0},
		{triage.BatchAction{Action: triage.ActionAssignee}, 0},
		{triage.BatchAction{Action: triage.ActionClearTags}, 2},
		{triage.BatchAction{Action: triage.ActionClearAssignees}, 2},
		{triage.BatchAction{Action: triage.ActionMarkInvalid}, 2},
	}
	for _, tt := range tests {
		n, err := svc.Batch(ctx, f.ID, ids, tt.action)
		if err != nil {
			t.Fatalf("%s: %v", tt.action.Action, err)
		}
		if n != tt.want {
			t.Fatalf("%s changed %d rows, want %d", tt.action.Action, n, tt.want)
		}
	}

	untouched, err := store.Response(ctx, outsider.ID)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if untouched.Status != model.StatusSubmitted {
		t.Fatalf("response of another form changed to %s", untouched.Status)
	}

	var ve *model.ValidationError
	if _, err = svc.Batch(ctx, f.ID, ids, triage.BatchAction{Action: "delete"}); !errors.As(err, &ve) {
		t.Fatalf("unknown action = %v", err)
	}
	if n, err := svc.Batch(ctx, f.ID, nil, triage.BatchAction{Action: triage.ActionClearTags}); err != nil || n != 0 {
		t.Fatalf("empty batch = %d, %v", n, err)
	}
}

func TestComments(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	author := testutil.User(t, store)
	other := testutil.User(t, store)
	f := testutil.Form(t, store, inv)
	fi := testutil.Instance(t, store, f, testutil.SimpleFormJSON)
	r := testutil.Response(t, store, fi, nil, t0)
	r2 := testutil.Response(t, store, fi, nil, t0)

	svc := triage.NewService(store).WithClock(clock(t0))
	c, err := svc.AddComment(ctx, author, r, "  call back tomorrow ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.Text != "call back tomorrow" || !c.Date.Equal(t0) {
		t.Fatalf("comment = %+v", c)
	}
	if _, err = svc.AddComment(ctx, author, r, " "); err == nil {
		t.Fatalf("empty comment accepted")
	}

	if err = svc.ArchiveComment(ctx, other, r, c.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("archive by another user = %v", err)
	}
	if err = svc.ArchiveComment(ctx, author, r2, c.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("archive through another response = %v", err)
	}

	visible, _ := svc.VisibleComments(ctx, r)
	if len(visible) != 1 || visible[0].Author.ID != author.ID {
		t.Fatalf("visible = %+v", visible)
	}
	if err = svc.ArchiveComment(ctx, author, r, c.ID); err != nil {
		t.Fatalf("ArchiveComment: %v", err)
	}
	visible, _ = svc.VisibleComments(ctx, r)
	if len(visible) != 0 {
		t.Fatalf("archived comment still visible")
	}
}

func TestEditJSONField(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	f := testutil.Form(t, store, testutil.Investigation(t, store))
	fi := testutil.Instance(t, store, f, testutil.SimpleFormJSON)
	created := testutil.Response(t, store, fi, map[string]any{"name": "Anna", "email": "anna@example.com"}, t0)

	svc := triage.NewService(store)
	r, err := svc.LoadResponse(ctx, f.ID, created.ID)
	if err != nil {
		t.Fatalf("LoadResponse: %v", err)
	}

	var ve *model.ValidationError
	if err = svc.EditJSONField(ctx, r, "email", "not an email"); !errors.As(err, &ve) || ve.Reason != "invalid_value" {
		t.Fatalf("invalid email = %v", err)
	}
	if err = svc.EditJSONField(ctx, r, "phone", "123"); !errors.As(err, &ve) || ve.Reason != "unknown_field" {
		t.Fatalf("unknown field = %v", err)
	}
	if r.JSON["email"] != "anna@example.com" {
		t.Fatalf("payload changed on error: %v", r.JSON)
	}

	if err = svc.EditJSONField(ctx, r, "email", "anna@example.org"); err != nil {
		t.Fatalf("EditJSONField: %v", err)
	}
	stored, _ := store.Response(ctx, r.ID)
	if stored.JSON["email"] != "anna@example.org" || stored.JSON["name"] != "Anna" {
		t.Fatalf("stored payload = %v", stored.JSON)
	}
}

func TestCountsAndStats(t *testing.T) {
	store := testutil.OpenStore(t)
	ctx := context.Background()
	inv := testutil.Investigation(t, store)
	f := testutil.Form(t, store, inv)
	fi := testutil.Instance(t, store, f, testutil.SimpleFormJSON)
	testutil.Response(t, store, fi, nil, t0.Add(-48*time.Hour))
	testutil.Response(t, store, fi, nil, t0.Add(-time.Hour))
	trashed := testutil.Response(t, store, fi, nil, t0.Add(-2*time.Hour))

	svc := triage.NewService(store).WithClock(clock(t0))
	r, _ := svc.LoadResponse(ctx, f.ID, trashed.ID)
	if err := svc.SetStatus(ctx, r, model.StatusInvalid); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	counts, err := svc.CountByBucket(ctx, f.ID)
	if err != nil {
		t.Fatalf("CountByBucket: %v", err)
	}
	if counts["inbox"] != 2 || counts["trash"] != 1 || counts["verified"] != 0 {
		t.Fatalf("counts = %v", counts)
	}

	stats, err := svc.SubmissionStats(ctx, inv.ID)
	if err != nil {
		t.Fatalf("SubmissionStats: %v", err)
	}
	want := model.SubmissionStats{Total: 3, Yesterday: 2, ToVerify: 2}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}

	days, _ := svc.SubmissionsByDate(ctx, f.ID)
	if len(days) != 2 || days[0].Date != "2024-02-28" || days[1].Count != 2 {
		t.Fatalf("days = %+v", days)
	}
}
