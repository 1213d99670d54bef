// Package triage moves responses through their review workflow: status buckets, tags,
// assignees, comments and corrections.
package triage

import (
	"context"
	"strings"
	"time"

	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/schema"
	"github.com/pkg/errors"
)

const (
	BucketInbox    = "inbox"
	BucketVerified = "verified"
	BucketTrash    = "trash"
)

var buckets = map[string]model.ResponseStatus{
	BucketInbox:    model.StatusSubmitted,
	BucketVerified: model.StatusVerified,
	BucketTrash:    model.StatusInvalid,
}

// BucketStatus maps a bucket name to the status of the responses it holds.
func BucketStatus(bucket string) (model.ResponseStatus, error) {
	status, ok := buckets[bucket]
	if !ok {
		return "", model.ErrNotFound
	}
	return status, nil
}

// BucketOf is the inverse of BucketStatus.
func BucketOf(status model.ResponseStatus) string {
	for name, s := range buckets {
		if s == status {
			return name
		}
	}
	return ""
}

// Transition sets the response status. The change date is stamped only when the status
// actually changes, which reports true.
func Transition(r *model.FormResponse, status model.ResponseStatus, now time.Time) bool {
	if r.Status == status {
		return false
	}
	r.Status = status
	now = now.UTC()
	r.LastStatusChangedDate = &now
	return true
}

type Service struct {
	store *database.Store
	now   func() time.Time
}

func NewService(store *database.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{store: s.store, now: now}
}

// LoadResponse fetches a response, reporting model.ErrNotFound unless it was submitted to
// the given form.
func (s *Service) LoadResponse(ctx context.Context, formID, responseID int64) (*model.FormResponse, error) {
	r, err := s.store.Response(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if r.FormID != formID {
		return nil, model.ErrNotFound
	}
	return r, nil
}

// List returns the form's responses in one bucket, most recently moved first.
func (s *Service) List(ctx context.Context, formID int64, bucket string, f model.ResponseFilter) ([]model.FormResponse, error) {
	status, err := BucketStatus(bucket)
	if err != nil {
		return nil, err
	}
	f.Status = status
	responses, warnings, err := s.store.Responses(ctx, formID, f)
	for _, w := range warnings {
		log.WithFields(log.Fields{"form": formID, "error": w}).Warn("Skipping unreadable response")
	}
	return responses, err
}

func (s *Service) SetStatus(ctx context.Context, r *model.FormResponse, status model.ResponseStatus) error {
	if !status.Valid() {
		return model.Invalid("invalid_status", "unknown status %q", status)
	}
	if !Transition(r, status, s.now()) {
		return nil
	}
	return s.store.SaveResponse(ctx, r)
}

// SetTags replaces the response's tags. Tags of other investigations are ignored.
func (s *Service) SetTags(ctx context.Context, r *model.FormResponse, investigationID int64, tagIDs []int64) error {
	tags, err := s.store.Tags(ctx, investigationID)
	if err != nil {
		return err
	}
	own := make(map[int64]bool, len(tags))
	for _, t := range tags {
		own[t.ID] = true
	}
	keep := make([]int64, 0, len(tagIDs))
	for _, id := range tagIDs {
		if own[id] {
			keep = append(keep, id)
		}
	}

	if err = s.store.ReplaceTags(ctx, r.ID, keep); err != nil {
		return err
	}
	r.Tags, err = s.store.ResponseTags(ctx, r.ID)
	return err
}

// SetAssignees replaces the response's assignees. Users who cannot manage the
// investigation are ignored.
func (s *Service) SetAssignees(ctx context.Context, r *model.FormResponse, investigationID int64, userIDs []int64) error {
	managers, err := roles.Assignees(ctx, s.store, investigationID)
	if err != nil {
		return err
	}
	allowed := make(map[int64]bool, len(managers))
	for _, u := range managers {
		allowed[u.ID] = true
	}
	keep := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		if allowed[id] {
			keep = append(keep, id)
		}
	}

	if err = s.store.ReplaceAssignees(ctx, r.ID, keep); err != nil {
		return err
	}
	r.Assignees, err = s.store.ResponseAssignees(ctx, r.ID)
	return err
}

const (
	ActionMarkInvalid    = "mark_invalid"
	ActionMarkVerified   = "mark_verified"
	ActionTag            = "tag"
	ActionClearTags      = "clear_tags"
	ActionAssignee       = "assignee"
	ActionClearAssignees = "clear_assignees"
)

// BatchAction is one edit applied to many responses. TagID and UserID are read by the
// tag and assignee actions.
type BatchAction struct {
	Action string
	TagID  int64
	UserID int64
}

// Batch applies the action to the responses among ids that belong to the form and
// returns how many rows changed. Other ids are skipped, and so are tags of other
// investigations and users who cannot manage the form's investigation.
func (s *Service) Batch(ctx context.Context, formID int64, ids []int64, a BatchAction) (int64, error) {
	run, ok := batchActions[a.Action]
	if !ok {
		return 0, model.Invalid("invalid_action", "unknown batch action %q", a.Action)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := run(ctx, s, formID, ids, a)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"form": formID, "action": a.Action, "changed": n}).Debug("Batch edit")
	return n, nil
}

type batchFunc func(ctx context.Context, s *Service, formID int64, ids []int64, a BatchAction) (int64, error)

var batchActions = map[string]batchFunc{
	ActionMarkInvalid: func(ctx context.Context, s *Service, formID int64, ids []int64, _ BatchAction) (int64, error) {
		return s.store.BatchSetStatus(ctx, formID, ids, model.StatusInvalid, s.now())
	},
	ActionMarkVerified: func(ctx context.Context, s *Service, formID int64, ids []int64, _ BatchAction) (int64, error) {
		return s.store.BatchSetStatus(ctx, formID, ids, model.StatusVerified, s.now())
	},
	ActionTag: func(ctx context.Context, s *Service, formID int64, ids []int64, a BatchAction) (int64, error) {
		return s.store.BatchAddTag(ctx, formID, ids, a.TagID)
	},
	ActionClearTags: func(ctx context.Context, s *Service, formID int64, ids []int64, _ BatchAction) (int64, error) {
		return s.store.BatchClearTags(ctx, formID, ids)
	},
	ActionAssignee: func(ctx context.Context, s *Service, formID int64, ids []int64, a BatchAction) (int64, error) {
		return s.store.BatchAddAssignee(ctx, formID, ids, a.UserID)
	},
	ActionClearAssignees: func(ctx context.Context, s *Service, formID int64, ids []int64, _ BatchAction) (int64, error) {
		return s.store.BatchClearAssignees(ctx, formID, ids)
	},
}

func (s *Service) AddComment(ctx context.Context, author *model.User, r *model.FormResponse, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.Invalid("empty_comment", "comment text is required")
	}
	c := &model.Comment{
		AuthorID:       author.ID,
		Author:         author,
		Date:           s.now(),
		FormResponseID: r.ID,
		Text:           text,
	}
	if err := s.store.InsertComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ArchiveComment hides a comment on the response. Only its author may do so.
func (s *Service) ArchiveComment(ctx context.Context, u *model.User, r *model.FormResponse, commentID int64) error {
	c, err := s.store.Comment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.FormResponseID != r.ID {
		return model.ErrNotFound
	}
	if u == nil || c.AuthorID != u.ID {
		return model.ErrForbidden
	}
	return s.store.ArchiveComment(ctx, c.ID)
}

func (s *Service) VisibleComments(ctx context.Context, r *model.FormResponse) ([]model.Comment, error) {
	return s.store.Comments(ctx, r.ID, false)
}

// EditJSONField corrects one field of a submission after validating the new value
// against the form version the response was submitted to. The response is left untouched
// when validation fails.
func (s *Service) EditJSONField(ctx context.Context, r *model.FormResponse, name string, value any) error {
	if r.FormInstance == nil {
		return errors.New("form version not loaded")
	}
	def, err := r.FormInstance.Definition()
	if err != nil {
		return &model.IntegrityWarning{ResponseID: r.ID, Err: err}
	}
	if err = def.ValidateField(name, value); err != nil {
		var fe *schema.FieldError
		if errors.As(err, &fe) {
			return model.Invalid(fe.Reason, "%s", fe.Error())
		}
		return err
	}

	payload := make(map[string]any, len(r.JSON)+1)
	for k, v := range r.JSON {
		payload[k] = v
	}
	payload[name] = value

	edited := *r
	edited.JSON = payload
	if err = s.store.SaveResponse(ctx, &edited); err != nil {
		return err
	}
	r.JSON = payload
	return nil
}

// CountByBucket counts the form's responses per bucket name.
func (s *Service) CountByBucket(ctx context.Context, formID int64) (map[string]int, error) {
	byStatus, err := s.store.CountByStatus(ctx, formID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(buckets))
	for name, status := range buckets {
		counts[name] = byStatus[status]
	}
	return counts, nil
}

func (s *Service) SubmissionsByDate(ctx context.Context, formID int64) ([]model.DateCount, error) {
	return s.store.SubmissionsByDate(ctx, formID)
}

// SubmissionStats summarises the investigation; "yesterday" means the last 24 hours.
func (s *Service) SubmissionStats(ctx context.Context, investigationID int64) (model.SubmissionStats, error) {
	return s.store.SubmissionStats(ctx, investigationID, s.now().Add(-24*time.Hour))
}
