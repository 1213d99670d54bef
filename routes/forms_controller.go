package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
)

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		forms, err := app.Investigations.Forms(r.Context(), currentUser(r), inv)
		if err != nil {
			httpx.WriteError(w, r, "list_forms", err)
			return
		}
		render.JSON(w, r, forms)
	}
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		f := model.Form{}
		err := render.DecodeJSON(r.Body, &f)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if f.Status == "" {
			f.Status = model.FormDraft
		}

		if err = app.Investigations.CreateForm(r.Context(), currentUser(r), inv, &f); err != nil {
			httpx.WriteError(w, r, "create_form", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, f)
	}
}

func formByID(app app.App, w http.ResponseWriter, r *http.Request) (*model.Form, bool) {
	id, ok := idParam(w, r, "form_id")
	if !ok {
		return nil, false
	}
	f, err := app.Store.Form(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, "get_form", err)
		return nil, false
	}
	return f, true
}

func ListInstances(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := formByID(app, w, r)
		if !ok {
			return
		}
		instances, err := app.Investigations.Instances(r.Context(), currentUser(r), f)
		if err != nil {
			httpx.WriteError(w, r, "list_instances", err)
			return
		}
		render.JSON(w, r, instances)
	}
}

type instanceBody struct {
	model.FormSchema
	Template int64 `json:"template"`
}

// CreateInstance publishes the next version of a form, either from the schema in the
// body or copied from the template it names.
func CreateInstance(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := formByID(app, w, r)
		if !ok {
			return
		}
		body := instanceBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		var fi *model.FormInstance
		if body.Template != 0 {
			fi, err = app.Investigations.CreateInstanceFromTemplate(r.Context(), currentUser(r), f, body.Template)
		} else {
			fi = &model.FormInstance{FormSchema: body.FormSchema}
			err = app.Investigations.CreateInstance(r.Context(), currentUser(r), f, fi)
		}
		if err != nil {
			httpx.WriteError(w, r, "create_instance", err)
			return
		}
		log.WithFields(log.Fields{"form": f.ID, "version": fi.Version}).Info("Form version published")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, fi)
	}
}

func ListTemplates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := app.Store.Templates(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "db.get_templates", err)
			return
		}
		render.JSON(w, r, templates)
	}
}

func GetTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		t, err := app.Store.Template(r.Context(), id)
		if err != nil {
			httpx.WriteError(w, r, "get_template", err)
			return
		}
		render.JSON(w, r, t)
	}
}

func CreateTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := model.FormInstanceTemplate{}
		err := render.DecodeJSON(r.Body, &t)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if err = app.Investigations.CreateTemplate(r.Context(), currentUser(r), &t); err != nil {
			httpx.WriteError(w, r, "create_template", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, t)
	}
}
