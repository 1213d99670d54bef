package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/export"
	"github.com/mbolis/newsroom-forms/files"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/renderer"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/triage"
)

func responseFilter(r *http.Request) model.ResponseFilter {
	q := r.URL.Query()
	return model.ResponseFilter{
		Has:           q.Get("has"),
		Tag:           q.Get("tag"),
		AssigneeEmail: q.Get("assignee"),
		Email:         q.Get("email"),
	}
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, f, ok := loadForm(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		responses, err := app.Triage.List(r.Context(), f.ID, chi.URLParam(r, "bucket"), responseFilter(r))
		if err != nil {
			httpx.WriteError(w, r, "list_responses", err)
			return
		}
		render.JSON(w, r, responses)
	}
}

// DownloadCSV sends the bucket's responses as a CSV attachment. Comments are included
// with ?comments=1.
func DownloadCSV(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, f, ok := loadForm(app, w, r, roles.ManageInvestigation)
		if !ok {
			return
		}
		opts := export.Options{Filter: responseFilter(r)}
		opts.Filter.Status, ok = bucketStatus(w, r)
		if !ok {
			return
		}
		opts.IncludeComments, _ = strconv.ParseBool(r.URL.Query().Get("comments"))

		w.Header().Set("content-type", export.ContentType)
		w.Header().Set("content-disposition", `attachment; filename="`+export.Filename(inv.Slug, f.Slug)+`"`)
		_, err := app.Exporter.CreateFormCSV(r.Context(), f, inv.Slug, urlBuilder{app.BaseURL}, w, opts)
		if err != nil {
			// the header may be gone already
			log.WithFields(log.Fields{"form": f.ID}).Errorf("export.csv: %s", err)
		}
	}
}

func bucketStatus(w http.ResponseWriter, r *http.Request) (model.ResponseStatus, bool) {
	status, err := triage.BucketStatus(chi.URLParam(r, "bucket"))
	if err != nil {
		httpx.WriteError(w, r, "request.get_url_param.bucket", err)
		return "", false
	}
	return status, true
}

type batchBody struct {
	SelectedResponses []int64 `json:"selected_responses"`
	Action            string  `json:"action,omitempty"`
	Tag               int64   `json:"tag,omitempty"`
	ClearTags         bool    `json:"clear_tags,omitempty"`
	AssigneeEmail     string  `json:"assignee_email,omitempty"`
	ClearAssignees    bool    `json:"clear_assignees,omitempty"`
}

// BatchEdit applies one action to the selected responses of the form. Responses of
// other forms, foreign tags and users who cannot be assigned are skipped.
func BatchEdit(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, f, ok := loadForm(app, w, r, roles.ManageInvestigation)
		if !ok {
			return
		}
		body := batchBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		action, err := batchAction(app, r, body)
		if err != nil {
			httpx.WriteError(w, r, "batch_edit", err)
			return
		}

		n, err := app.Triage.Batch(r.Context(), f.ID, body.SelectedResponses, action)
		if err != nil {
			httpx.WriteError(w, r, "batch_edit", err)
			return
		}
		render.JSON(w, r, map[string]any{"changed": n})
	}
}

func batchAction(app app.App, r *http.Request, body batchBody) (triage.BatchAction, error) {
	switch {
	case body.Action != "":
		if body.Action != triage.ActionMarkInvalid && body.Action != triage.ActionMarkVerified {
			return triage.BatchAction{}, model.Invalid("invalid_action", "unknown batch action %q", body.Action)
		}
		return triage.BatchAction{Action: body.Action}, nil
	case body.ClearTags:
		return triage.BatchAction{Action: triage.ActionClearTags}, nil
	case body.Tag != 0:
		return triage.BatchAction{Action: triage.ActionTag, TagID: body.Tag}, nil
	case body.ClearAssignees:
		return triage.BatchAction{Action: triage.ActionClearAssignees}, nil
	case body.AssigneeEmail != "":
		a := triage.BatchAction{Action: triage.ActionAssignee}
		u, err := app.Store.UserByEmail(r.Context(), body.AssigneeEmail)
		switch {
		case errors.Is(err, model.ErrNotFound):
			// nobody to assign, the batch changes nothing
		case err != nil:
			return a, err
		default:
			a.UserID = u.ID
		}
		return a, nil
	}
	return triage.BatchAction{}, model.Invalid("invalid_action", "no batch action given")
}

// GetResponse shows one response rendered field by field, with its visible comments.
func GetResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, f, resp, ok := loadResponse(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		src := renderer.Source{Response: resp, InvestigationSlug: inv.Slug, FormSlug: f.Slug}
		fields, err := app.Renderer.Fields(src, urlBuilder{app.BaseURL})
		var warning *model.IntegrityWarning
		switch {
		case errors.As(err, &warning):
			log.WithFields(log.Fields{"response": resp.ID}).Warnf("render_response: %s", warning)
		case err != nil:
			httpx.LogInternalError(w, "render_response", err)
			return
		}
		if fields == nil {
			fields = []renderer.Field{}
		}
		comments, err := app.Triage.VisibleComments(r.Context(), resp)
		if err != nil {
			httpx.LogInternalError(w, "db.get_comments", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"response": resp,
			"version":  resp.FormInstance.Version,
			"bucket":   triage.BucketOf(resp.Status),
			"fields":   fields,
			"comments": comments,
		})
	}
}

func SetResponseStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, resp, ok := loadResponse(app, w, r, roles.ManageInvestigation)
		if !ok {
			return
		}
		body := struct {
			Status model.ResponseStatus `json:"status"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err = app.Triage.SetStatus(r.Context(), resp, body.Status); err != nil {
			httpx.WriteError(w, r, "set_status", err)
			return
		}
		render.JSON(w, r, resp)
	}
}

func SetResponseTags(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, _, resp, ok := loadResponse(app, w, r, roles.ManageInvestigation)
		if !ok {
			return
		}
		body := struct {
			Tags []int64 `json:"tags"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err = app.Triage.SetTags(r.Context(), resp, inv.ID, body.Tags); err != nil {
			httpx.WriteError(w, r, "set_tags", err)
			return
		}
		render.JSON(w, r, resp.Tags)
	}
}

func SetResponseAssignees(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, _, resp, ok := loadResponse(app, w, r, roles.ManageInvestigation)
		if !ok {
			return
		}
		body := struct {
			Assignees []int64 `json:"assignees"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err = app.Triage.SetAssignees(r.Context(), resp, inv.ID, body.Assignees); err != nil {
			httpx.WriteError(w, r, "set_assignees", err)
			return
		}
		render.JSON(w, r, resp.Assignees)
	}
}

// EditResponseJSON corrects one field of the submitted payload.
func EditResponseJSON(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, resp, ok := loadResponse(app, w, r, roles.ManageInvestigation)
		if !ok {
			return
		}
		body := struct {
			Name  string `json:"name"`
			Value any    `json:"value"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err = app.Triage.EditJSONField(r.Context(), resp, body.Name, body.Value); err != nil {
			httpx.WriteError(w, r, "edit_json", err)
			return
		}
		log.WithFields(log.Fields{"response": resp.ID, "field": body.Name, "by": currentUser(r).ID}).Info("Response edited")
		render.JSON(w, r, resp.JSON)
	}
}

func AddComment(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, resp, ok := loadResponse(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		body := struct {
			Text string `json:"text"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		c, err := app.Triage.AddComment(r.Context(), currentUser(r), resp, body.Text)
		if err != nil {
			httpx.WriteError(w, r, "add_comment", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, c)
	}
}

func ArchiveComment(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, resp, ok := loadResponse(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		commentID, ok := idParam(w, r, "comment_id")
		if !ok {
			return
		}
		if err := app.Triage.ArchiveComment(r.Context(), currentUser(r), resp, commentID); err != nil {
			httpx.WriteError(w, r, "archive_comment", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DownloadFile sends a file or signature stored in a response field. The {index}
// parameter picks one file of a multi-file field.
func DownloadFile(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _, resp, ok := loadResponse(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		var index *int
		if param := chi.URLParam(r, "index"); param != "" {
			i, err := strconv.Atoi(param)
			if err != nil {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.index")
				return
			}
			index = &i
		}

		dataURL, err := files.Lookup(resp.JSON, chi.URLParam(r, "field"), index)
		if err != nil {
			httpx.WriteError(w, r, "get_file", err)
			return
		}
		f, err := files.Decode(dataURL)
		if err != nil {
			httpx.WriteError(w, r, "get_file.decode", err)
			return
		}

		w.Header().Set("content-type", f.MimeType)
		w.Header().Set("content-disposition", files.ContentDisposition(resp.ID, f))
		w.Header().Set("content-length", strconv.Itoa(len(f.Content)))
		w.Write(f.Content)
	}
}

// FormStats counts the form's responses per bucket and per submission day.
func FormStats(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, f, ok := loadForm(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		counts, err := app.Triage.CountByBucket(r.Context(), f.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.count_responses", err)
			return
		}
		byDate, err := app.Triage.SubmissionsByDate(r.Context(), f.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.count_by_date", err)
			return
		}
		render.JSON(w, r, map[string]any{
			"buckets": counts,
			"by_date": byDate,
		})
	}
}

func InvestigationStats(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		stats, err := app.Triage.SubmissionStats(r.Context(), inv.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.submission_stats", err)
			return
		}
		render.JSON(w, r, stats)
	}
}
