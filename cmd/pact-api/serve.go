package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pactsquad/pact-api/internal/adapters/httpapi"
	"github.com/pactsquad/pact-api/internal/app/access"
	"github.com/pactsquad/pact-api/internal/app/auth"
	"github.com/pactsquad/pact-api/internal/app/trips"
	platformclock "github.com/pactsquad/pact-api/internal/platform/clock"
	"github.com/pactsquad/pact-api/internal/platform/config"
	"github.com/pactsquad/pact-api/internal/platform/logging"
	"github.com/pactsquad/pact-api/internal/platform/returnticket"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	store, err := openStore(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	idem, err := openIdempotency(signalCtx, cfg, store, clk, logger)
	if err != nil {
		return err
	}
	defer idem.close()

	ident, err := openIdentity(cfg, clk, logger)
	if err != nil {
		return err
	}

	tickets := returnticket.NewCodec(cfg.PublicBaseURL)
	handler := httpapi.NewRouter(httpapi.Deps{
		Gateway:   auth.NewGateway(ident.provider, tickets, cfg.NetworkTimeout),
		Access:    access.NewController(store.trips, store.members, store.activity, clk, cfg.NetworkTimeout),
		Trips:     trips.NewService(store.trips, clk, cfg.NetworkTimeout),
		Sessions:  httpapi.NewSessionResolver(ident.verifier, cfg.Session.CookieName, tickets),
		Idem:      idem.store,
		Tickets:   tickets,
		Cookies:   httpapi.Cookies{SessionName: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure},
		Providers: ident.providers,
		Clock:     clk,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", cfg.HTTPAddress),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("idempotency", cfg.Idempotency.Backend),
			zap.String("auth_mode", cfg.Auth.Mode),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
