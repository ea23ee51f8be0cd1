package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"log"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"varsity/internal/auth"
	"varsity/internal/commands"
	"varsity/internal/config"
	"varsity/internal/http"
	"varsity/internal/presence"
	"varsity/internal/push"
	"varsity/internal/storage"
	"varsity/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, addUser string) error {
	cfg, err := config.Load(addUser != "")
	if err != nil {
		return err
	}

	if addUser != "" {
		return commands.AddUser(addUser, cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	authService, err := auth.NewAuthService(ctx, auth.Config{
		Secret:      base64.StdEncoding.EncodeToString([]byte(cfg.AuthSecret)),
		TokenExpiry: cfg.TokenExpiry,
	}, store)
	if err != nil {
		return err
	}

	presenceStore := presence.New(ctx, cfg.PresenceTTL)
	registry := ws.NewRegistry()
	reconciler := ws.NewReconciler(registry, presenceStore, store, logger)

	var pushSender ws.PushSender
	if cfg.VAPIDPublicKey != "" {
		pushSender = push.NewSender(push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.PushSubscriber,
		}, store, logger)
	}

	router := ws.NewRouter(registry, presenceStore, store, reconciler, pushSender, logger)

	apiServer := http.NewAPIServer(authService, store, router, reconciler, cfg.APIAddr, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	addUser := flag.String("add-user", "", "Username to create (creates user with random password and prints details)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *addUser); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
