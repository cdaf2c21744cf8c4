package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/michaelalipng/yap-sub000/cliparse"
	"github.com/michaelalipng/yap-sub000/db"
	"github.com/michaelalipng/yap-sub000/middleware"
	"github.com/michaelalipng/yap-sub000/realtime"
	"github.com/michaelalipng/yap-sub000/router"
	"github.com/michaelalipng/yap-sub000/store"
	"github.com/michaelalipng/yap-sub000/transitions"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	feed := realtime.NewFeed()

	// Open the store
	var repo store.Repository
	if cfg.DatabaseType == cliparse.DatabaseMemory {
		slog.Warn("using in-memory store; data is lost on exit")
		repo = store.NewMemoryStore(feed)
	} else {
		dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
			os.Exit(1)
		}
		defer dbConn.Close()

		// Create schema (tables)
		if err := db.CreateSchema(dbConn); err != nil {
			slog.Error("schema creation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Database schema ready", "type", cfg.DatabaseType)
		repo = store.NewSQLStore(dbConn, feed)
	}

	engine := transitions.New(repo,
		transitions.WithInterval(cfg.TransitionInterval),
		transitions.WithDefaultDuration(cfg.DefaultPollDuration),
		transitions.WithLogger(slog.Default()),
	)
	defer engine.Close()

	// Resume monitoring for events that existed before a restart
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	events, err := repo.ListEvents(ctx)
	if err != nil {
		cancel()
		slog.Error("failed to list events", "error", err)
		os.Exit(1)
	}
	for _, e := range events {
		if err := engine.Resume(ctx, e.ID); err != nil {
			slog.Error("failed to resume event", "event_id", e.ID, "error", err)
			engine.StartMonitoring(e.ID)
		}
	}
	cancel()
	slog.Info("Monitoring events", "count", len(events), "interval", cfg.TransitionInterval)

	hub := realtime.NewHub()
	mux := router.NewRouter(router.Deps{
		Repo:   repo,
		Engine: engine,
		Hub:    hub,
		Bridge: realtime.NewBridge(hub, feed, repo, engine),
	}, cfg)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
