package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/adminkit/warden/pkg/api"
	"github.com/adminkit/warden/pkg/authz"
	"github.com/adminkit/warden/pkg/config"
	"github.com/adminkit/warden/pkg/groups"
	"github.com/adminkit/warden/pkg/middleware"
	"github.com/adminkit/warden/pkg/observability"
	"github.com/adminkit/warden/pkg/session"
	"github.com/adminkit/warden/pkg/store"
	"github.com/adminkit/warden/pkg/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("info", os.Stderr).WithError(err).Fatal("failed to load configuration")
	}

	log := observability.NewLogger(cfg.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	db, err := store.Open(cfg.Postgres.URL, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	if cfg.Admin.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), cfg.Auth.BcryptCost)
		if err != nil {
			log.WithError(err).Fatal("failed to hash admin password")
		}
		if err := store.SeedAdmin(ctx, db, cfg.Admin.Email, string(hash)); err != nil {
			log.WithError(err).Fatal("failed to seed admin account")
		}
	}

	st := store.New(db)

	redisClient, err := authz.Connect(cfg.Redis.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	cache := authz.NewCache(redisClient, st, log, metrics)
	if err := cache.Rebuild(ctx); err != nil {
		log.WithError(err).Fatal("initial cache rebuild failed")
	}

	var scheduler *cron.Cron
	if cfg.RebuildSchedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.RebuildSchedule, func() {
			if err := cache.Rebuild(context.Background()); err != nil {
				log.WithError(err).Error("scheduled cache rebuild failed")
			}
		}); err != nil {
			log.WithError(err).Fatal("invalid rebuild schedule")
		}
		scheduler.Start()
		log.WithField("schedule", cfg.RebuildSchedule).Info("periodic cache rebuild enabled")
	}

	tokens, err := session.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize token issuer")
	}

	health := observability.NewHealthHandler(5 * time.Second)
	health.Register("postgres", observability.PingerFunc(st.Ping))
	health.Register("redis", observability.PingerFunc(cache.Ping))

	server := api.NewServer(api.Deps{
		Sessions:    session.NewResolver(st, cache, tokens, log, metrics),
		Users:       users.NewService(st, cfg.Auth.BcryptCost, log),
		Groups:      groups.NewService(st, cache, log),
		Resources:   st,
		Credentials: middleware.NewCredentials(tokens),
		Authorizer:  authz.NewAuthorizer(cache, log, metrics),
		Metrics:     metrics,
		Health:      health,
		Log:         log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("warden listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
	log.Info("warden stopped")
}
