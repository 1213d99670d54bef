package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/mail"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/renderer"
)

// publicForm loads {form_slug} and the version new responses are submitted against.
func publicForm(app app.App, w http.ResponseWriter, r *http.Request) (*model.Form, *model.FormInstance, bool) {
	slug := chi.URLParam(r, "form_slug")
	f, err := app.Store.FormBySlug(r.Context(), slug)
	if err != nil {
		httpx.WriteError(w, r, "public.get_form", err)
		return nil, nil, false
	}
	fi, err := app.Store.LatestInstance(r.Context(), f.ID)
	if err != nil {
		httpx.LogInternalError(w, "public.get_form.latest_instance", err)
		return nil, nil, false
	}
	if fi == nil {
		httpx.LogNotFound(w, "public.get_form.latest_instance", slug)
		return nil, nil, false
	}
	return f, fi, true
}

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, fi, ok := publicForm(app, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, map[string]any{
			"form":     f,
			"instance": fi,
		})
	}
}

type submission struct {
	JSON         map[string]any `json:"json"`
	FormInstance int64          `json:"form_instance"`
}

// PublicSubmitResponse stores a response, sends the confirmation email to the address
// in its "email" field and tells the client where to go next.
func PublicSubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, fi, ok := publicForm(app, w, r)
		if !ok {
			return
		}
		if f.Status == model.FormClosed || f.Status == model.FormArchived {
			httpx.WriteError(w, r, "public.submit", model.Invalid("form_closed", "form %q accepts no responses", f.Slug))
			return
		}

		body := submission{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.JSON == nil {
			httpx.WriteError(w, r, "public.submit", model.Invalid("json_required", "a response needs a json object"))
			return
		}

		if body.FormInstance != 0 && body.FormInstance != fi.ID {
			fi, err = app.Store.Instance(r.Context(), body.FormInstance)
			if err != nil || fi.FormID != f.ID {
				httpx.WriteError(w, r, "public.submit", model.Invalid("invalid_form_instance", "form %q has no version %d", f.Slug, body.FormInstance))
				return
			}
		}

		resp := &model.FormResponse{
			FormInstanceID: fi.ID,
			FormID:         f.ID,
			FormInstance:   fi,
			JSON:           body.JSON,
			Status:         model.StatusSubmitted,
		}
		if err = app.Store.InsertResponse(r.Context(), resp); err != nil {
			httpx.LogInternalError(w, "db.insert_response", err)
			return
		}
		fields := log.Fields{"form": f.ID, "response": resp.ID, "version": fi.Version}
		log.WithFields(fields).Info("Response submitted")

		src := renderer.Source{Response: resp, Instance: fi, FormSlug: f.Slug}
		if inv, err := app.Store.Investigation(r.Context(), f.InvestigationID); err == nil {
			src.InvestigationSlug = inv.Slug
		}

		if to := resp.Email(); to != "" {
			text, html, err := app.Renderer.GenerateEmails(src)
			if err == nil {
				err = app.Mailer.Send(r.Context(), mail.Message{To: to, Subject: f.Name, Text: text, HTML: html})
			}
			if err != nil {
				log.WithFields(fields).Warnf("Confirmation email not sent: %s", err)
			}
		}

		redirect, err := app.Renderer.RedirectURL(src)
		if err != nil {
			log.WithFields(fields).Warnf("Redirect URL not rendered: %s", err)
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":           resp.ID,
			"token":        resp.Token,
			"redirect_url": redirect,
		})
	}
}
