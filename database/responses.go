package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/pkg/errors"
)

const responseColumns = `r.id, r.form_instance_id, r.json, r.status, r.token, r.submission_date,
	r.last_status_changed_date, fi.form_id`

const responseFrom = `
	FROM form_response r
	INNER JOIN form_instance fi ON (fi.id = r.form_instance_id)`

// bucketOrder puts the most recently moved or submitted responses first.
const bucketOrder = `
	ORDER BY julianday(COALESCE(r.last_status_changed_date, r.submission_date)) DESC, r.id ASC`

func scanResponse(row scanner, r *model.FormResponse) error {
	var payload string
	var changed sql.NullTime
	err := row.Scan(&r.ID, &r.FormInstanceID, &payload, &r.Status, &r.Token, &r.SubmissionDate,
		&changed, &r.FormID)
	if err != nil {
		return err
	}
	r.SubmissionDate = r.SubmissionDate.UTC()
	r.LastStatusChangedDate = timePtr(changed)
	r.JSON = map[string]any{}
	if payload != "" {
		if err = json.Unmarshal([]byte(payload), &r.JSON); err != nil {
			return &model.IntegrityWarning{ResponseID: r.ID, Err: err}
		}
	}
	return nil
}

// InsertResponse stores r with a fresh edit token. The submission date defaults to now.
func (s *Store) InsertResponse(ctx context.Context, r *model.FormResponse) error {
	if r.Status == "" {
		r.Status = model.StatusSubmitted
	}
	if r.Token == "" {
		r.Token = uuid.NewString()
	}
	if r.SubmissionDate.IsZero() {
		r.SubmissionDate = time.Now()
	}
	r.SubmissionDate = utc(r.SubmissionDate)
	if r.JSON == nil {
		r.JSON = map[string]any{}
	}
	payload, err := marshalText(r.JSON)
	if err != nil {
		return errors.Wrap(err, "db.insert_response.encode")
	}

	err = s.q().QueryRowContext(ctx, `
		INSERT INTO form_response (form_instance_id, json, status, token, submission_date, last_status_changed_date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		r.FormInstanceID, payload, r.Status, r.Token, r.SubmissionDate, nullTime(r.LastStatusChangedDate),
	).Scan(&r.ID)
	return wrap(err, "db.insert_response")
}

// Response loads a response with its pinned form version, tags and assignees.
func (s *Store) Response(ctx context.Context, id int64) (*model.FormResponse, error) {
	r := &model.FormResponse{}
	err := scanResponse(s.q().QueryRowContext(ctx, `
		SELECT `+responseColumns+responseFrom+`
		WHERE r.id = ?`, id), r)
	if err != nil {
		return nil, wrap(err, "db.get_response")
	}

	if r.FormInstance, err = s.Instance(ctx, r.FormInstanceID); err != nil {
		return nil, err
	}
	if r.Tags, err = s.ResponseTags(ctx, r.ID); err != nil {
		return nil, err
	}
	if r.Assignees, err = s.ResponseAssignees(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func filterSQL(formID int64, f model.ResponseFilter) (string, []any) {
	where := []string{"fi.form_id = ?"}
	args := []any{formID}

	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.Has != "" {
		where = append(where, `COALESCE(json_extract(r.json, ?), '') <> ''`)
		args = append(args, jsonPath(f.Has))
	}
	if f.Tag != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM response_tag rt
			INNER JOIN tag t ON (t.id = rt.tag_id)
			WHERE rt.response_id = r.id AND t.slug = ?)`)
		args = append(args, f.Tag)
	}
	if f.AssigneeEmail != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM response_assignee ra
			INNER JOIN user u ON (u.id = ra.user_id)
			WHERE ra.response_id = r.id AND u.email = ?)`)
		args = append(args, strings.ToLower(f.AssigneeEmail))
	}
	if f.Email != "" {
		where = append(where, `json_extract(r.json, '$.email') LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, escapeLike(f.Email))
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// jsonPath addresses a top-level key of the payload, whatever characters it contains.
func jsonPath(key string) string {
	key = strings.ReplaceAll(key, `\`, `\\`)
	key = strings.ReplaceAll(key, `"`, `\"`)
	return `$."` + key + `"`
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Responses lists the form's responses matching f, in bucket order, with tags and
// assignees loaded. Responses whose payload cannot be decoded are returned in warnings.
func (s *Store) Responses(ctx context.Context, formID int64, f model.ResponseFilter) (responses []model.FormResponse, warnings []error, err error) {
	where, args := filterSQL(formID, f)
	rows, err := s.q().QueryContext(ctx, `SELECT `+responseColumns+responseFrom+where+bucketOrder, args...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "db.get_responses")
	}
	defer rows.Close()

	responses = []model.FormResponse{}
	index := map[int64]int{}
	for rows.Next() {
		r := model.FormResponse{}
		if err = scanResponse(rows, &r); err != nil {
			var warning *model.IntegrityWarning
			if errors.As(err, &warning) {
				warnings = append(warnings, warning)
				continue
			}
			return nil, nil, errors.Wrap(err, "db.get_responses.scan")
		}
		r.Tags = []model.Tag{}
		r.Assignees = []model.User{}
		index[r.ID] = len(responses)
		responses = append(responses, r)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "db.get_responses")
	}
	rows.Close()

	if err = s.loadFormTags(ctx, formID, responses, index); err != nil {
		return nil, nil, err
	}
	if err = s.loadFormAssignees(ctx, formID, responses, index); err != nil {
		return nil, nil, err
	}
	return responses, warnings, nil
}

func (s *Store) loadFormTags(ctx context.Context, formID int64, responses []model.FormResponse, index map[int64]int) error {
	rows, err := s.q().QueryContext(ctx, `
		SELECT rt.response_id, t.id, t.name, t.slug, t.investigation_id
		FROM response_tag rt
		INNER JOIN tag t ON (t.id = rt.tag_id)
		INNER JOIN form_response r ON (r.id = rt.response_id)
		INNER JOIN form_instance fi ON (fi.id = r.form_instance_id)
		WHERE fi.form_id = ?
		ORDER BY t.name`,
		formID,
	)
	if err != nil {
		return errors.Wrap(err, "db.get_responses.tags")
	}
	defer rows.Close()

	for rows.Next() {
		var responseID int64
		t := model.Tag{}
		if err = rows.Scan(&responseID, &t.ID, &t.Name, &t.Slug, &t.InvestigationID); err != nil {
			return errors.Wrap(err, "db.get_responses.tags.scan")
		}
		if i, ok := index[responseID]; ok {
			responses[i].Tags = append(responses[i].Tags, t)
		}
	}
	return errors.Wrap(rows.Err(), "db.get_responses.tags")
}

func (s *Store) loadFormAssignees(ctx context.Context, formID int64, responses []model.FormResponse, index map[int64]int) error {
	rows, err := s.q().QueryContext(ctx, `
		SELECT ra.response_id, `+userColumns+`
		FROM response_assignee ra
		INNER JOIN user u ON (u.id = ra.user_id)
		INNER JOIN form_response r ON (r.id = ra.response_id)
		INNER JOIN form_instance fi ON (fi.id = r.form_instance_id)
		WHERE fi.form_id = ?
		ORDER BY u.email`,
		formID,
	)
	if err != nil {
		return errors.Wrap(err, "db.get_responses.assignees")
	}
	defer rows.Close()

	for rows.Next() {
		var responseID int64
		u := model.User{}
		err = rows.Scan(&responseID, &u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsSuperuser)
		if err != nil {
			return errors.Wrap(err, "db.get_responses.assignees.scan")
		}
		if i, ok := index[responseID]; ok {
			responses[i].Assignees = append(responses[i].Assignees, u)
		}
	}
	return errors.Wrap(rows.Err(), "db.get_responses.assignees")
}

// SaveResponse writes back the payload, status and status change date of r.
func (s *Store) SaveResponse(ctx context.Context, r *model.FormResponse) error {
	payload, err := marshalText(r.JSON)
	if err != nil {
		return errors.Wrap(err, "db.update_response.encode")
	}
	res, err := s.q().ExecContext(ctx, `
		UPDATE form_response
		SET
			json = ?,
			status = ?,
			last_status_changed_date = ?
		WHERE id = ?`,
		payload, r.Status, nullTime(r.LastStatusChangedDate), r.ID,
	)
	if err != nil {
		return errors.Wrap(err, "db.update_response")
	}
	return checkAffected(res, "db.update_response")
}

func (s *Store) ResponseTags(ctx context.Context, responseID int64) ([]model.Tag, error) {
	return s.queryTags(ctx, "db.get_response_tags", `
		SELECT t.id, t.name, t.slug, t.investigation_id
		FROM tag t
		INNER JOIN response_tag rt ON (rt.tag_id = t.id)
		WHERE rt.response_id = ?
		ORDER BY t.name`,
		responseID,
	)
}

func (s *Store) ResponseAssignees(ctx context.Context, responseID int64) ([]model.User, error) {
	return s.queryUsers(ctx, "db.get_response_assignees", `
		SELECT `+userColumns+`
		FROM user u
		INNER JOIN response_assignee ra ON (ra.user_id = u.id)
		WHERE ra.response_id = ?
		ORDER BY u.email`,
		responseID,
	)
}

// ReplaceTags sets the response's tags to tagIDs.
func (s *Store) ReplaceTags(ctx context.Context, responseID int64, tagIDs []int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		_, err := tx.q().ExecContext(ctx, `DELETE FROM response_tag WHERE response_id = ?`, responseID)
		if err != nil {
			return errors.Wrap(err, "db.replace_tags.delete")
		}
		for _, id := range tagIDs {
			_, err = tx.q().ExecContext(ctx, `
				INSERT OR IGNORE INTO response_tag (response_id, tag_id) VALUES (?, ?)`,
				responseID, id,
			)
			if err != nil {
				return errors.Wrap(err, "db.replace_tags.insert")
			}
		}
		return nil
	})
}

// ReplaceAssignees sets the response's assignees to userIDs.
func (s *Store) ReplaceAssignees(ctx context.Context, responseID int64, userIDs []int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		_, err := tx.q().ExecContext(ctx, `DELETE FROM response_assignee WHERE response_id = ?`, responseID)
		if err != nil {
			return errors.Wrap(err, "db.replace_assignees.delete")
		}
		for _, id := range userIDs {
			_, err = tx.q().ExecContext(ctx, `
				INSERT OR IGNORE INTO response_assignee (response_id, user_id) VALUES (?, ?)`,
				responseID, id,
			)
			if err != nil {
				return errors.Wrap(err, "db.replace_assignees.insert")
			}
		}
		return nil
	})
}

// scopedIDs selects which of ids belong to the form; batch statements embed it so that
// filtering and updating happen in one query.
func scopedIDs(formID int64, ids []int64) (string, []any) {
	return `
		SELECT r.id FROM form_response r
		INNER JOIN form_instance fi ON (fi.id = r.form_instance_id)
		WHERE fi.form_id = ? AND r.id IN (` + placeholders(len(ids)) + `)`,
		append([]any{formID}, int64Args(ids)...)
}

// BatchSetStatus moves the responses of the form among ids to status. Only responses
// whose status actually changes get a new change date.
func (s *Store) BatchSetStatus(ctx context.Context, formID int64, ids []int64, status model.ResponseStatus, now time.Time) (int64, error) {
	scope, scopeArgs := scopedIDs(formID, ids)
	res, err := s.q().ExecContext(ctx, `
		UPDATE form_response
		SET
			last_status_changed_date = CASE WHEN status <> ? THEN ? ELSE last_status_changed_date END,
			status = ?
		WHERE id IN (`+scope+`)`,
		append([]any{status, utc(now), status}, scopeArgs...)...,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.batch_status")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "db.batch_status.verify")
}

// BatchAddTag tags the responses of the form among ids. A tag of another investigation
// matches nothing.
func (s *Store) BatchAddTag(ctx context.Context, formID int64, ids []int64, tagID int64) (int64, error) {
	scope, scopeArgs := scopedIDs(formID, ids)
	res, err := s.q().ExecContext(ctx, `
		INSERT OR IGNORE INTO response_tag (response_id, tag_id)
		SELECT x.id, t.id
		FROM (`+scope+`) x
		INNER JOIN form f ON (f.id = ?)
		INNER JOIN tag t ON (t.investigation_id = f.investigation_id)
		WHERE t.id = ?`,
		append(scopeArgs, formID, tagID)...,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.batch_tag")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "db.batch_tag.verify")
}

func (s *Store) BatchClearTags(ctx context.Context, formID int64, ids []int64) (int64, error) {
	scope, scopeArgs := scopedIDs(formID, ids)
	res, err := s.q().ExecContext(ctx, `
		DELETE FROM response_tag WHERE response_id IN (`+scope+`)`,
		scopeArgs...,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.batch_clear_tags")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "db.batch_clear_tags.verify")
}

// BatchAddAssignee assigns the user to the responses of the form among ids, provided the
// user is an Owner, Admin or Editor of the form's investigation.
func (s *Store) BatchAddAssignee(ctx context.Context, formID int64, ids []int64, userID int64) (int64, error) {
	scope, scopeArgs := scopedIDs(formID, ids)
	res, err := s.q().ExecContext(ctx, `
		INSERT OR IGNORE INTO response_assignee (response_id, user_id)
		SELECT x.id, m.user_id
		FROM (`+scope+`) x
		INNER JOIN form f ON (f.id = ?)
		INNER JOIN role_group_member m ON (m.investigation_id = f.investigation_id)
		INNER JOIN role_group g ON (g.id = m.group_id)
		WHERE m.user_id = ? AND g.role IN ('O', 'A', 'E')`,
		append(scopeArgs, formID, userID)...,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.batch_assignee")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "db.batch_assignee.verify")
}

func (s *Store) BatchClearAssignees(ctx context.Context, formID int64, ids []int64) (int64, error) {
	scope, scopeArgs := scopedIDs(formID, ids)
	res, err := s.q().ExecContext(ctx, `
		DELETE FROM response_assignee WHERE response_id IN (`+scope+`)`,
		scopeArgs...,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.batch_clear_assignees")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "db.batch_clear_assignees.verify")
}

// CountByStatus counts the form's responses per status; every status is present.
func (s *Store) CountByStatus(ctx context.Context, formID int64) (map[model.ResponseStatus]int, error) {
	counts := map[model.ResponseStatus]int{
		model.StatusSubmitted: 0,
		model.StatusVerified:  0,
		model.StatusInvalid:   0,
	}
	rows, err := s.q().QueryContext(ctx, `
		SELECT r.status, COUNT(*)`+responseFrom+`
		WHERE fi.form_id = ?
		GROUP BY r.status`,
		formID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.count_by_status")
	}
	defer rows.Close()

	for rows.Next() {
		var status model.ResponseStatus
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "db.count_by_status.scan")
		}
		counts[status] = n
	}
	return counts, errors.Wrap(rows.Err(), "db.count_by_status")
}

// SubmissionsByDate counts the form's responses per UTC submission day, oldest first.
func (s *Store) SubmissionsByDate(ctx context.Context, formID int64) ([]model.DateCount, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT date(r.submission_date) AS day, COUNT(*)`+responseFrom+`
		WHERE fi.form_id = ?
		GROUP BY day
		ORDER BY day`,
		formID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.submissions_by_date")
	}
	defer rows.Close()

	counts := []model.DateCount{}
	for rows.Next() {
		c := model.DateCount{}
		if err = rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, errors.Wrap(err, "db.submissions_by_date.scan")
		}
		counts = append(counts, c)
	}
	return counts, errors.Wrap(rows.Err(), "db.submissions_by_date")
}

// SubmissionStats summarises every response of the investigation; Yesterday counts the
// ones submitted after since.
func (s *Store) SubmissionStats(ctx context.Context, investigationID int64, since time.Time) (model.SubmissionStats, error) {
	stats := model.SubmissionStats{}
	err := s.q().QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN julianday(r.submission_date) >= julianday(?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN r.status = 'S' THEN 1 ELSE 0 END), 0)`+responseFrom+`
		INNER JOIN form f ON (f.id = fi.form_id)
		WHERE f.investigation_id = ?`,
		utc(since), investigationID,
	).Scan(&stats.Total, &stats.Yesterday, &stats.ToVerify)
	return stats, wrap(err, "db.submission_stats")
}
