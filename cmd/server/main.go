package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"medivault/internal/audit"
	auditmem "medivault/internal/audit/store/memory"
	auditpg "medivault/internal/audit/store/postgres"
	authservice "medivault/internal/auth/service"
	"medivault/internal/auth/store/lockout"
	"medivault/internal/auth/store/session"
	"medivault/internal/custodian"
	"medivault/internal/identity"
	"medivault/internal/platform/config"
	"medivault/internal/platform/httpserver"
	"medivault/internal/platform/logger"
	platformredis "medivault/internal/platform/redis"
	"medivault/internal/storage"
	httptransport "medivault/internal/transport/http"
	"medivault/internal/vault"
)

// main wires dependencies and runs the server, the session sweeper, and the
// audit fallback worker under one lifecycle. Business logic lives in the
// internal services.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	// Audit store: Postgres when configured, in-memory otherwise.
	var auditStore audit.Store
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		pgStore := auditpg.New(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		auditStore = pgStore
	} else {
		auditStore = auditmem.New()
		log.Warn("audit events are held in memory; configure postgres.dsn for durability")
	}

	salt, err := cfg.AuditSalt()
	if err != nil {
		return err
	}
	recorder, err := audit.NewRecorder(auditStore, salt, audit.WithLogger(log))
	if err != nil {
		return err
	}

	// Session and lockout state: Redis when configured so multiple
	// instances share it, in-memory otherwise.
	var (
		sessionStore session.Store
		lockoutStore lockout.Store
	)
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient.Client)
		lockoutStore = lockout.NewRedisStore(redisClient.Client)
	} else {
		sessionStore = session.New()
		lockoutStore = lockout.New()
		log.Warn("session state is held in memory; configure redis.url before scaling out")
	}

	users := identity.NewInMemoryStore()
	if cfg.Bootstrap.Username != "" {
		if err := users.Seed(identity.Credential{
			UserID:         uuid.NewString(),
			Username:       cfg.Bootstrap.Username,
			OrganizationID: cfg.Bootstrap.OrganizationID,
			Role:           cfg.Bootstrap.Role,
			Permissions:    []string{"records:read", "records:write", "audit:read"},
			IsActive:       true,
		}, cfg.Bootstrap.Password); err != nil {
			return err
		}
	}

	tokens := authservice.NewTokenService([]byte(cfg.Auth.SigningKey), cfg.Auth.Issuer, cfg.Auth.Audience)
	authSvc, err := authservice.New(users, sessionStore, lockoutStore, tokens, recorder,
		authservice.WithLogger(log),
		authservice.WithConfig(authservice.Config{
			SessionTTL:    cfg.Auth.SessionTTL,
			MaxFailures:   cfg.Auth.MaxFailures,
			FailureWindow: cfg.Auth.FailureWindow,
		}),
	)
	if err != nil {
		return err
	}

	masterKey, err := cfg.MasterKey()
	if err != nil {
		return err
	}
	local, err := custodian.NewLocalCustodian(masterKey)
	if err != nil {
		return err
	}
	keys, err := custodian.NewClient(local, custodian.WithLogger(log))
	if err != nil {
		return err
	}

	vaultSvc, err := vault.New(keys, storage.NewInMemoryStore(), recorder, vault.WithLogger(log))
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:     authSvc,
		Vault:    vaultSvc,
		Recorder: recorder,
		Logger:   log,
	})
	srv := httpserver.New(cfg.Server, router)

	sweeper := authservice.NewSweeper(sessionStore, recorder, cfg.Auth.SweepInterval, log)
	auditWorker := audit.NewWorker(recorder, cfg.Audit.FlushInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting medivault", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := auditWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
