package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/model"
	"github.com/mbolis/newsroom-forms/roles"
)

func ListInvestigations(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Investigations.List(r.Context(), currentUser(r))
		if err != nil {
			httpx.WriteError(w, r, "list_investigations", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func CreateInvestigation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv := model.Investigation{}
		err := render.DecodeJSON(r.Body, &inv)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if inv.Status == "" {
			inv.Status = model.InvestigationDraft
		}

		if err = app.Investigations.Create(r.Context(), currentUser(r), &inv); err != nil {
			httpx.WriteError(w, r, "create_investigation", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, inv)
	}
}

func GetInvestigation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		render.JSON(w, r, inv)
	}
}

// UpdateInvestigation applies the fields present in the body; id and slug never change.
func UpdateInvestigation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		id, slug := inv.ID, inv.Slug
		err := render.DecodeJSON(r.Body, inv)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		inv.ID, inv.Slug = id, slug

		if err = app.Investigations.Update(r.Context(), currentUser(r), inv); err != nil {
			httpx.WriteError(w, r, "update_investigation", err)
			return
		}
		render.JSON(w, r, inv)
	}
}

func DeleteInvestigation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		if err := app.Investigations.Delete(r.Context(), currentUser(r), inv); err != nil {
			httpx.WriteError(w, r, "delete_investigation", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListMembers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		members, err := app.Investigations.Members(r.Context(), currentUser(r), inv)
		if err != nil {
			httpx.WriteError(w, r, "list_members", err)
			return
		}
		render.JSON(w, r, members)
	}
}

func roleParam(w http.ResponseWriter, r *http.Request) (model.Role, bool) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.WriteError(w, r, "request.get_url_param.role", err)
		return "", false
	}
	return role, true
}

func ListGroupUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		role, ok := roleParam(w, r)
		if !ok {
			return
		}
		users, err := app.Investigations.GroupUsers(r.Context(), currentUser(r), inv, role)
		if err != nil {
			httpx.WriteError(w, r, "list_group_users", err)
			return
		}
		render.JSON(w, r, users)
	}
}

// AddGroupUser moves the user with the given email into the {role} group.
func AddGroupUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		role, ok := roleParam(w, r)
		if !ok {
			return
		}
		body := struct {
			Email string `json:"email"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		u, err := app.Investigations.SetRole(r.Context(), currentUser(r), inv, body.Email, role)
		if err != nil {
			httpx.WriteError(w, r, "set_role", err)
			return
		}
		render.JSON(w, r, model.Member{User: *u, Role: role})
	}
}

func RemoveMember(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		userID, ok := idParam(w, r, "user_id")
		if !ok {
			return
		}
		if err := app.Investigations.RemoveMember(r.Context(), currentUser(r), inv, userID); err != nil {
			httpx.WriteError(w, r, "remove_member", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListAssignees(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		users, err := app.Investigations.Assignees(r.Context(), currentUser(r), inv)
		if err != nil {
			httpx.WriteError(w, r, "list_assignees", err)
			return
		}
		render.JSON(w, r, users)
	}
}

func ListInvitations(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		list, err := app.Investigations.Invitations(r.Context(), currentUser(r), inv)
		if err != nil {
			httpx.WriteError(w, r, "list_invitations", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func CreateInvitation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		body := struct {
			Email string `json:"email"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		invitation, err := app.Investigations.Invite(r.Context(), currentUser(r), inv, body.Email)
		if err != nil {
			httpx.WriteError(w, r, "invite", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, invitation)
	}
}

// MyInvitations lists the invitations the current user has not answered yet.
func MyInvitations(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Investigations.PendingInvitations(r.Context(), currentUser(r))
		if err != nil {
			httpx.WriteError(w, r, "pending_invitations", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func DeleteInvitation(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := app.Investigations.DeleteInvitation(r.Context(), currentUser(r), id); err != nil {
			httpx.WriteError(w, r, "delete_invitation", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AnswerInvitation(app app.App, accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := app.Investigations.AnswerInvitation(r.Context(), currentUser(r), id, accept); err != nil {
			httpx.WriteError(w, r, "answer_invitation", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListTags(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		tags, err := app.Investigations.Tags(r.Context(), currentUser(r), inv)
		if err != nil {
			httpx.WriteError(w, r, "list_tags", err)
			return
		}
		render.JSON(w, r, tags)
	}
}

type tagBody struct {
	Name string `json:"name"`
}

func CreateTag(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := loadInvestigation(app, w, r, roles.ViewInvestigation)
		if !ok {
			return
		}
		body := tagBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		t, err := app.Investigations.CreateTag(r.Context(), currentUser(r), inv, body.Name)
		if err != nil {
			httpx.WriteError(w, r, "create_tag", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, t)
	}
}

func RenameTag(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		body := tagBody{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		t, err := app.Investigations.RenameTag(r.Context(), currentUser(r), id, body.Name)
		if err != nil {
			httpx.WriteError(w, r, "rename_tag", err)
			return
		}
		render.JSON(w, r, t)
	}
}

func DeleteTag(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := app.Investigations.DeleteTag(r.Context(), currentUser(r), id); err != nil {
			httpx.WriteError(w, r, "delete_tag", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
