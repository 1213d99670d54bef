package app

import (
	"github.com/go-chi/oauth"
	"github.com/mbolis/newsroom-forms/config"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/export"
	"github.com/mbolis/newsroom-forms/investigations"
	"github.com/mbolis/newsroom-forms/mail"
	"github.com/mbolis/newsroom-forms/renderer"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/triage"
)

type App struct {
	Store *database.Store
	*oauth.BearerServer
	config.Config

	Checker        *roles.Checker
	Investigations *investigations.Service
	Triage         *triage.Service
	Renderer       *renderer.Renderer
	Exporter       *export.Exporter
	Mailer         mail.Sender
}

// New builds the services every handler shares on top of store.
func New(store *database.Store, checker *roles.Checker, cfg config.Config, mailer mail.Sender) App {
	r := renderer.New(renderer.MatchLanguage(cfg.Lang))
	return App{
		Store:          store,
		Config:         cfg,
		Checker:        checker,
		Investigations: investigations.NewService(store, checker),
		Triage:         triage.NewService(store),
		Renderer:       r,
		Exporter:       export.New(store, r),
		Mailer:         mailer,
	}
}
