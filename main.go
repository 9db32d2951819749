package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/api"
	"parley/internal/client"
	"parley/internal/commands"
	"parley/internal/config"
	"parley/internal/session"
	"parley/internal/storage"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	login := flag.String("login", "", "Email to log in as (prompts for password and stores the session)")
	logout := flag.Bool("logout", false, "Clear the stored session and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sessions := session.NewStore(store)
	apiClient := api.NewClient(cfg.ServerURL, sessions, cfg.FetchTimeout)

	if *login != "" {
		return commands.Login(ctx, *login, apiClient, sessions)
	}
	if *logout {
		return sessions.Clear()
	}

	sess, err := sessions.Load()
	if err != nil {
		return errors.New("not logged in; run with -login <email>")
	}
	if sess.Expired(time.Now()) {
		_ = sessions.Clear()
		return errors.New("session expired; run with -login <email>")
	}

	// The REPL exiting (quit/logout) shuts the engine down too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := client.NewEngine(ctx, cfg, sessions, apiClient, store)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := engine.Run(gCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return repl(gCtx, engine, sess.User)
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
	fmt.Println()
}
