package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/mbolis/newsroom-forms/app"
	"github.com/mbolis/newsroom-forms/config"
	"github.com/mbolis/newsroom-forms/database"
	"github.com/mbolis/newsroom-forms/httpx"
	"github.com/mbolis/newsroom-forms/log"
	"github.com/mbolis/newsroom-forms/mail"
	"github.com/mbolis/newsroom-forms/policy"
	"github.com/mbolis/newsroom-forms/roles"
	"github.com/mbolis/newsroom-forms/routes"
	"github.com/mbolis/newsroom-forms/seed"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()
	store := database.NewStore(db)

	if cfg.Seed {
		now := time.Now()
		err = seed.New(store, rand.New(rand.NewSource(now.UnixNano())), now).Run(context.Background())
		if err != nil {
			log.Fatal("main.seed:", err)
		}
		return
	}

	authz, err := policy.NewAuthorizer()
	if err != nil {
		log.Fatal("main.policy:", err)
	}

	app := app.New(store, roles.NewChecker(store, authz), cfg, mail.LogSender{})
	app.BearerServer = httpx.NewBearerServer(store, cfg)

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
