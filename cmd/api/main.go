package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"golang.org/x/crypto/bcrypt"

	"github.com/stagepass/backend/internal/auth"
	"github.com/stagepass/backend/internal/cartsweep"
	"github.com/stagepass/backend/internal/config"
	"github.com/stagepass/backend/internal/dashboard"
	"github.com/stagepass/backend/internal/market"
	"github.com/stagepass/backend/internal/middleware"
	"github.com/stagepass/backend/internal/models"
	"github.com/stagepass/backend/internal/repository"
	"github.com/stagepass/backend/internal/router"
	"github.com/stagepass/backend/internal/services"
	"github.com/stagepass/backend/internal/wallet"
	"github.com/stagepass/backend/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("Failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		slog.Error("Schema migrations failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("Schema migrations applied")

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	accountRepo := repository.NewAccountRepo(pool)
	eventRepo := repository.NewEventRepo(pool)
	ticketRepo := repository.NewTicketRepo(pool)
	cartRepo := repository.NewCartRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)

	if err := seedAdmin(ctx, accountRepo, cfg.Admin); err != nil {
		slog.Error("Failed to seed admin account", "error", err)
		os.Exit(1)
	}

	transferSvc := services.NewTransferService(accountRepo, accountRepo, eventRepo, ticketRepo, ledgerRepo, cartRepo, logger)
	accountSvc := services.NewAccountService(accountRepo, ticketRepo, ledgerRepo, logger)
	authSvc := auth.NewService(accountRepo, cfg.JWT.Secret, cfg.JWT.TokenTTL)

	workers := river.NewWorkers()
	river.AddWorker(workers, cartsweep.NewWorker(cartRepo, cfg.Cart.TTL, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.Cart.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return cartsweep.SweepCartsArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	authHandler := auth.NewHandler(authSvc, logger)
	walletHandler := wallet.NewHandler(transferSvc, ledgerRepo, logger)
	marketHandler := market.NewHandler(transferSvc, eventRepo, ticketRepo, ledgerRepo, logger)
	dashHandler := dashboard.NewHandler(accountSvc, eventRepo, ticketRepo, ledgerRepo, logger)

	authed := middleware.RequireAuth(authSvc, accountRepo)
	apiRouter := router.New(authHandler, walletHandler, marketHandler, dashHandler, authed)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	slog.Info("Starting HTTP server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

// seedAdmin creates the root admin account on first boot. The address is
// fixed so the hierarchy always has a stable root.
func seedAdmin(ctx context.Context, accounts *repository.AccountRepo, cfg config.AdminConfig) error {
	_, err := accounts.GetByAddress(ctx, models.AdminAddress)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.Account{
		Address:      models.AdminAddress,
		Username:     cfg.Username,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := accounts.Create(ctx, admin); err != nil {
		return err
	}
	slog.Info("Seeded root admin account", "address", admin.Address, "username", admin.Username)
	return nil
}
