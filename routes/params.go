package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/routes/middlewares"
)

func currentUser(r *http.Request) *model.User {
	return middlewares.CurrentUser(r.Context())
}

// idParam reads a numeric URL parameter, answering 400 when it is not one.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param."+name)
		return 0, false
	}
	return id, true
}

// loadInvestigation resolves {inv} and checks the current user holds perm on it.
func loadInvestigation(app app.App, w http.ResponseWriter, r *http.Request, perm roles.Permission) (*model.Investigation, bool) {
	inv, err := app.Investigations.Get(r.Context(), currentUser(r), chi.URLParam(r, "inv"), perm)
	if err != nil {
		httpx.WriteError(w, r, "get_investigation", err)
		return nil, false
	}
	return inv, true
}

// loadForm resolves {inv} and {form}; a form of another investigation is not found.
func loadForm(app app.App, w http.ResponseWriter, r *http.Request, perm roles.Permission) (*model.Investigation, *model.Form, bool) {
	inv, ok := loadInvestigation(app, w, r, perm)
	if !ok {
		return nil, nil, false
	}
	f, err := app.Investigations.Form(r.Context(), inv, chi.URLParam(r, "form"))
	if err != nil {
		httpx.WriteError(w, r, "get_form", err)
		return nil, nil, false
	}
	return inv, f, true
}

// loadResponse resolves {inv}, {form} and {id}; a response to another form is not found.
func loadResponse(app app.App, w http.ResponseWriter, r *http.Request, perm roles.Permission) (*model.Investigation, *model.Form, *model.FormResponse, bool) {
	inv, f, ok := loadForm(app, w, r, perm)
	if !ok {
		return nil, nil, nil, false
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return nil, nil, nil, false
	}
	resp, err := app.Triage.LoadResponse(r.Context(), f.ID, id)
	if err != nil {
		httpx.WriteError(w, r, "get_response", err)
		return nil, nil, nil, false
	}
	return inv, f, resp, true
}
