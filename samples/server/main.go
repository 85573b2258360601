// Copyright (c) Microsoft. All rights reserved.

// Command server exposes the market assistant over HTTP.
//
//	POST /chat   {"message": "...", "conversation_id": "..."}
//	             -> {"response": "...", "conversation_id": "..."}
//	GET  /health -> {"status": "ok"}
//
// Configuration comes from the environment (see package config). PORT sets
// the listen port, AGENT_API_KEY requires a bearer token on /chat and
// AGENT_HISTORY_DB keeps conversations in SQLite.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/config"
	"github.com/microsoft/agentloop/sqlitestore"
	"github.com/microsoft/agentloop/tools/finance"
)

const maxSessions = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := config.NewChatClient(cfg)
	if err != nil {
		log.Fatal(err)
	}

	agent := al.NewAgent(client, finance.Registry(), append(cfg.AgentOptions(),
		al.WithName("market-assistant"),
		al.WithDecisionTimeout(2*time.Minute),
		al.WithAgentMiddleware(al.LoggingMiddleware(slog.Default())),
	)...)

	var db *sqlitestore.DB
	if cfg.HistoryDB != "" {
		db, err = sqlitestore.Open(ctx, cfg.HistoryDB)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
	}

	handler, err := newAgentServer(agent, db, os.Getenv("AGENT_API_KEY"), maxSessions)
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("agent server listening", "addr", cfg.Addr, "provider", cfg.Provider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
