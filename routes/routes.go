package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/routes/middlewares"
)

const (
	idPattern     = `{id:^\d+$}`
	bucketPattern = `{bucket:^(inbox|verified|trash)$}`
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/forms/{form_slug}", PublicGetForm(app))
	api.Post("/forms/{form_slug}/responses", PublicSubmitResponse(app))

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.CookieAuth(app.BearerServer), middlewares.Authenticated(app.Store, app.TokenSecret))

		r.Get("/investigations", ListInvestigations(app))
		r.Post("/investigations", CreateInvestigation(app))
		r.Route("/investigations/{inv}", func(r chi.Router) {
			r.Get("/", GetInvestigation(app))
			r.Patch("/", UpdateInvestigation(app))
			r.Delete("/", DeleteInvestigation(app))
			r.Get("/stats", InvestigationStats(app))

			r.Get("/users", ListMembers(app))
			r.Delete(`/users/{user_id:^\d+$}`, RemoveMember(app))
			r.Get("/groups/{role}", ListGroupUsers(app))
			r.Post("/groups/{role}", AddGroupUser(app))
			r.Get("/assignees", ListAssignees(app))

			r.Get("/invitations", ListInvitations(app))
			r.Post("/invitations", CreateInvitation(app))

			r.Get("/tags", ListTags(app))
			r.Post("/tags", CreateTag(app))

			r.Get("/forms", ListForms(app))
			r.Post("/forms", CreateForm(app))
			r.Route("/forms/{form}", func(r chi.Router) {
				r.Get("/stats", FormStats(app))
				r.Post("/responses/batch", BatchEdit(app))
				r.Get("/responses/"+bucketPattern, ListResponses(app))
				r.Get("/responses/"+bucketPattern+"/csv", DownloadCSV(app))

				r.Route("/responses/"+idPattern, func(r chi.Router) {
					r.Get("/", GetResponse(app))
					r.Post("/status", SetResponseStatus(app))
					r.Post("/tags", SetResponseTags(app))
					r.Post("/assignees", SetResponseAssignees(app))
					r.Post("/json", EditResponseJSON(app))
					r.Post("/comments", AddComment(app))
					r.Post(`/comments/{comment_id:^\d+$}`, ArchiveComment(app))
					r.Get("/files/{field}", DownloadFile(app))
					r.Get(`/files/{field}/{index:^\d+$}`, DownloadFile(app))
				})
			})
		})

		r.Patch("/tags/"+idPattern, RenameTag(app))
		r.Delete("/tags/"+idPattern, DeleteTag(app))

		r.Get("/invitations", MyInvitations(app))
		r.Delete("/invitations/"+idPattern, DeleteInvitation(app))
		r.Post("/invitations/"+idPattern+"/accept", AnswerInvitation(app, true))
		r.Post("/invitations/"+idPattern+"/decline", AnswerInvitation(app, false))

		r.Get(`/forms/{form_id:^\d+$}/instances`, ListInstances(app))
		r.Post(`/forms/{form_id:^\d+$}/instances`, CreateInstance(app))

		r.Get("/templates", ListTemplates(app))
		r.Get("/templates/"+idPattern, GetTemplate(app))
		r.With(middlewares.Superuser).Post("/templates", CreateTemplate(app))
	})

	return api
}
