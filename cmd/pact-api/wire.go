package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	memactivitylog "github.com/pactsquad/pact-api/internal/adapters/memory/activitylog"
	memidempotency "github.com/pactsquad/pact-api/internal/adapters/memory/idempotency"
	memidentity "github.com/pactsquad/pact-api/internal/adapters/memory/identity"
	memmemberrepo "github.com/pactsquad/pact-api/internal/adapters/memory/memberrepo"
	"github.com/pactsquad/pact-api/internal/adapters/memory/tables"
	memtriprepo "github.com/pactsquad/pact-api/internal/adapters/memory/triprepo"
	postgres "github.com/pactsquad/pact-api/internal/adapters/postgres"
	pgactivitylog "github.com/pactsquad/pact-api/internal/adapters/postgres/activitylog"
	pgidempotency "github.com/pactsquad/pact-api/internal/adapters/postgres/idempotency"
	pgmemberrepo "github.com/pactsquad/pact-api/internal/adapters/postgres/memberrepo"
	pgtriprepo "github.com/pactsquad/pact-api/internal/adapters/postgres/triprepo"
	redisidempotency "github.com/pactsquad/pact-api/internal/adapters/redis/idempotency"
	"github.com/pactsquad/pact-api/internal/adapters/sqlite"
	sqliteactivitylog "github.com/pactsquad/pact-api/internal/adapters/sqlite/activitylog"
	sqlitememberrepo "github.com/pactsquad/pact-api/internal/adapters/sqlite/memberrepo"
	sqlitetriprepo "github.com/pactsquad/pact-api/internal/adapters/sqlite/triprepo"
	"github.com/pactsquad/pact-api/internal/adapters/supabase"
	"github.com/pactsquad/pact-api/internal/platform/auth/sessiontoken"
	"github.com/pactsquad/pact-api/internal/platform/config"
	activitylogport "github.com/pactsquad/pact-api/internal/ports/out/activitylog"
	"github.com/pactsquad/pact-api/internal/ports/out/clock"
	idempotencyport "github.com/pactsquad/pact-api/internal/ports/out/idempotency"
	identityport "github.com/pactsquad/pact-api/internal/ports/out/identity"
	memberrepoport "github.com/pactsquad/pact-api/internal/ports/out/memberrepo"
	triprepoport "github.com/pactsquad/pact-api/internal/ports/out/triprepo"
)

const idempotencyPurgeInterval = time.Hour

type ledger struct {
	trips    triprepoport.Repository
	members  memberrepoport.Repository
	activity activitylogport.Reader

	// pool is set for the postgres backend so the idempotency store can share it.
	pool    *pgxpool.Pool
	cleanup func()
}

func (l ledger) close() {
	if l.cleanup != nil {
		l.cleanup()
	}
}

func openStore(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (ledger, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{ConnectTimeout: cfg.NetworkTimeout})
		if err != nil {
			return ledger{}, fmt.Errorf("invalid postgres config: %w", err)
		}
		if err := postgres.Migrate(pool); err != nil {
			pool.Close()
			return ledger{}, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database initialized", zap.String("backend", config.StoragePostgres))
		return ledger{
			trips:    pgtriprepo.NewRepo(pool),
			members:  pgmemberrepo.NewRepo(pool),
			activity: pgactivitylog.NewReader(pool),
			pool:     pool,
			cleanup:  pool.Close,
		}, nil

	case config.StorageSQLite:
		db, err := sqlite.OpenSQLite(cfg.Storage.DatabasePath, logger)
		if err != nil {
			return ledger{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return ledger{}, err
		}
		return ledger{
			trips:    sqlitetriprepo.NewRepo(db),
			members:  sqlitememberrepo.NewRepo(db),
			activity: sqliteactivitylog.NewReader(db),
			cleanup:  func() { _ = sqlDB.Close() },
		}, nil

	default:
		db := tables.New()
		logger.Warn("using in-memory storage; data is lost on restart")
		return ledger{
			trips:    memtriprepo.NewRepo(db),
			members:  memmemberrepo.NewRepo(db),
			activity: memactivitylog.NewReader(db),
		}, nil
	}
}

type idempotencyStore struct {
	store   idempotencyport.Store
	cleanup func()
}

func (s idempotencyStore) close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func openIdempotency(ctx context.Context, cfg config.AppConfig, l ledger, clk clock.Clock, logger *zap.Logger) (idempotencyStore, error) {
	ttl := cfg.Idempotency.Redis.TTL
	switch cfg.Idempotency.Backend {
	case config.IdempotencyPostgres:
		if l.pool == nil {
			return idempotencyStore{}, fmt.Errorf("idempotency.backend=%s requires a postgres pool", config.IdempotencyPostgres)
		}
		store := pgidempotency.NewStore(l.pool, ttl, clk)
		purgeCtx, cancel := context.WithCancel(ctx)
		go purgeLoop(purgeCtx, store, logger)
		return idempotencyStore{store: store, cleanup: cancel}, nil

	case config.IdempotencyRedis:
		store := redisidempotency.NewStore(redisidempotency.Config{
			Addr:     cfg.Idempotency.Redis.Addr,
			Password: cfg.Idempotency.Redis.Password,
			DB:       cfg.Idempotency.Redis.DB,
			TTL:      ttl,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.NetworkTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return idempotencyStore{}, fmt.Errorf("connect redis: %w", err)
		}
		return idempotencyStore{store: store, cleanup: func() { _ = store.Close() }}, nil

	default:
		return idempotencyStore{store: memidempotency.NewStore(ttl, clk)}, nil
	}
}

func purgeLoop(ctx context.Context, store *pgidempotency.Store, logger *zap.Logger) {
	ticker := time.NewTicker(idempotencyPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Warn("idempotency purge failed", zap.Error(err))
				continue
			}
			logger.Debug("idempotency records purged", zap.Int64("count", n))
		}
	}
}

type identityStack struct {
	provider  identityport.Provider
	verifier  *sessiontoken.Verifier
	providers []string
}

func openIdentity(cfg config.AppConfig, clk clock.Clock, logger *zap.Logger) (identityStack, error) {
	verifierCfg := sessiontoken.Config{
		Issuer:                 cfg.TokenIssuer(),
		Audience:               cfg.Session.Audience,
		ClockSkew:              cfg.Session.ClockSkew,
		JWKSRefreshInterval:    cfg.Session.JWKSRefreshInterval,
		JWKSMinRefreshInterval: cfg.Session.JWKSMinRefreshInterval,
		HTTPTimeout:            cfg.NetworkTimeout,
	}

	if cfg.Auth.Mode == config.AuthModeDev {
		secret := []byte(cfg.Auth.Dev.SigningSecret)
		verifierCfg.HMACSecret = secret
		verifier, err := sessiontoken.NewVerifier(verifierCfg)
		if err != nil {
			return identityStack{}, err
		}
		issuer := sessiontoken.NewIssuer(sessiontoken.IssuerConfig{
			SigningSecret: secret,
			Issuer:        config.DevIssuer,
			Audience:      cfg.Session.Audience,
			TokenTTL:      cfg.Auth.Dev.TokenTTL,
			Clock:         clk,
		})
		provider := memidentity.NewProvider(issuer, logger, cfg.Auth.Providers...)
		logger.Warn("dev auth mode: magic links are logged, not emailed")
		return identityStack{provider: provider, verifier: verifier, providers: provider.Providers()}, nil
	}

	if cfg.Auth.Supabase.JWTSecret != "" {
		verifierCfg.HMACSecret = []byte(cfg.Auth.Supabase.JWTSecret)
	}
	verifierCfg.JWKSURL = cfg.Auth.Supabase.JWKSURL
	verifier, err := sessiontoken.NewVerifier(verifierCfg)
	if err != nil {
		return identityStack{}, err
	}
	client, err := supabase.New(supabase.Config{
		URL:       cfg.Auth.Supabase.URL,
		AnonKey:   cfg.Auth.Supabase.AnonKey,
		Providers: cfg.Auth.Providers,
		Timeout:   cfg.NetworkTimeout,
	})
	if err != nil {
		return identityStack{}, err
	}
	return identityStack{provider: client, verifier: verifier, providers: client.Providers()}, nil
}
