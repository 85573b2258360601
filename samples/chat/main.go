// Copyright (c) Microsoft. All rights reserved.

// Command chat is a multi-turn market assistant on the terminal.
//
// The backend is chosen from the environment (see package config):
//
//	export AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com
//	export AZURE_AI_MODEL_DEPLOYMENT_NAME=gpt-4.1   # optional
//	go run .
//
// Without AZURE_OPENAI_API_KEY the Azure backend authenticates with
// DefaultAzureCredential. OPENAI_API_KEY or ANTHROPIC_API_KEY select the
// other backends. Set AGENT_HISTORY_DB to keep the conversation in SQLite
// between runs, and DEBUG to log every round.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/config"
	"github.com/microsoft/agentloop/sqlitestore"
	"github.com/microsoft/agentloop/tools/finance"
)

const sessionID = "chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := config.NewChatClient(cfg)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Using provider %s\n", cfg.Provider)

	agent := al.NewAgent(client, finance.Registry(), append(cfg.AgentOptions(),
		al.WithName("market-assistant"),
		al.WithAgentMiddleware(al.LoggingMiddleware(slog.Default())),
	)...)

	var db *sqlitestore.DB
	sessionOpts := []al.SessionOption{al.WithSessionID(sessionID)}
	if cfg.HistoryDB != "" {
		db, err = sqlitestore.Open(ctx, cfg.HistoryDB)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		sessionOpts = append(sessionOpts, al.WithSessionStore(db.Store(sessionID)))
		fmt.Printf("History: %s\n", cfg.HistoryDB)
	}
	session := al.NewSession(sessionOpts...)

	fmt.Println("Chat with the market assistant (type 'quit' to exit, 'reset' to clear history)")
	fmt.Println()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("You: ")
		var input string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			input = strings.TrimSpace(line)
		}

		switch input {
		case "":
			continue
		case "quit", "exit":
			return
		case "reset":
			if db != nil {
				if err := db.Delete(ctx, sessionID); err != nil {
					log.Printf("Error: %v", err)
					continue
				}
			}
			session = al.NewSession(sessionOpts...)
			fmt.Println("History cleared.")
			fmt.Println()
			continue
		}

		res, err := agent.RunSession(ctx, session, input)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("Error: %v", err)
			continue
		}

		fmt.Printf("Assistant: %s\n", res.Text)
		if res.Usage.TotalTokens > 0 {
			fmt.Printf("  [rounds: %d, tools: %d, tokens: %d in, %d out]\n",
				res.Rounds, res.ToolCalls, res.Usage.InputTokens, res.Usage.OutputTokens)
		}
		fmt.Println()
	}
}
