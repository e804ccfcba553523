package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/app"
	"github.com/ovaphlow/pitchfork/service-library/internal/config"
	"github.com/ovaphlow/pitchfork/service-library/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-library/internal/router"
	"github.com/ovaphlow/pitchfork/service-library/internal/schema"
	"github.com/ovaphlow/pitchfork/service-library/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

func main() {
	// best effort: real environment wins when no .env exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()
	sugar.Infow("starting service-library", "addr", cfg.HTTP.Addr)

	db, err := database.Open(cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := schema.Ensure(ctx, db, sugar); err != nil {
		sugar.Fatalf("schema: %v", err)
	}

	a, err := app.New(cfg, db, sugar)
	if err != nil {
		sugar.Fatalf("wiring: %v", err)
	}

	go pruneRefreshSessions(ctx, a.Tokens, sugar)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router.RegisterRoutes(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}

// pruneRefreshSessions deletes expired refresh sessions every hour until ctx ends.
func pruneRefreshSessions(ctx context.Context, tokens *oidc.OIDCService, logger *zap.SugaredLogger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := tokens.PruneExpired(ctx)
			if err != nil {
				logger.Warnw("prune refresh sessions failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Infow("pruned refresh sessions", "count", n)
			}
		}
	}
}
