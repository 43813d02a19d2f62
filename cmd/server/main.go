package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	authhandler "persona/internal/auth/handler"
	authservice "persona/internal/auth/service"
	"persona/internal/auth/store/idempotency"
	"persona/internal/auth/store/user"
	"persona/internal/credential"
	credhandler "persona/internal/credential/handler"
	"persona/internal/credential/registry"
	"persona/internal/identity"
	"persona/internal/ledger"
	"persona/internal/platform/config"
	"persona/internal/platform/database"
	"persona/internal/platform/health"
	"persona/internal/platform/logger"
	"persona/internal/platform/metrics"
	"persona/internal/platform/middleware"
	"persona/internal/token"
	"persona/internal/totp"
	"persona/internal/wallet"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal services packages.
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		return err
	}
	log := logger.New(cfg.LogLevel)

	log.Info("initializing persona",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"postgres", cfg.DatabaseURL != "",
		"ledger", cfg.LedgerURL != "",
	)

	m := metrics.New()
	generator := identity.NewGenerator()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		accounts    authservice.AccountStore
		totpSecrets totp.SecretStore
		didRecords  registry.Store
		pool        *database.Pool
	)
	if cfg.DatabaseURL != "" {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			log.Error("database migration failed", "error", err)
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = database.New(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Error("database connection failed", "error", err)
			return err
		}
		defer pool.Close()
		accounts = user.NewPostgresStore(pool.Pool())
		totpSecrets = totp.NewPostgresStore(pool.Pool())
		didRecords = registry.NewPostgresStore(pool.Pool())
	} else {
		accounts = user.NewMemoryStore()
		totpSecrets = totp.NewMemoryStore()
		didRecords = registry.NewMemoryStore()
	}

	totpManager := totp.NewManager(totpSecrets, cfg.SecretsKey, cfg.TOTPIssuer,
		totp.WithLogger(log), totp.WithMetrics(m))
	tokens := token.NewService(cfg.TokenSigningKey, "persona", cfg.TokenTTL)

	authSvc := authservice.NewService(accounts, totpManager, generator, tokens,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
		authservice.WithRegistry(registry.NewRecorder(didRecords)),
		authservice.WithIdempotencyStore(idempotency.NewInMemory(24*time.Hour)),
	)

	issuer := credential.NewIssuer(
		credential.WithIssuerLogger(log), credential.WithIssuerMetrics(m))
	verifier := credential.NewVerifier()

	walletStorage, err := wallet.NewFileStorage(cfg.WalletDir)
	if err != nil {
		log.Error("wallet storage unavailable", "error", err)
		return err
	}
	walletOpts := []wallet.StoreOption{wallet.WithLogger(log), wallet.WithMetrics(m)}

	var ledgerClient *ledger.Client
	if cfg.LedgerURL != "" {
		ledgerClient = ledger.NewClient(cfg.LedgerURL,
			ledger.WithLogger(log), ledger.WithMetrics(m))
		walletOpts = append(walletOpts, wallet.WithBalanceFetcher(ledgerClient))
	}
	walletStore := wallet.NewSessionStore(generator, walletStorage, walletOpts...)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", pool.Health)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))

	authhandler.New(authSvc, totpManager).Register(router)

	// Credential and wallet operations require a completed login.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(tokens, log))
		credhandler.New(issuer, verifier, generator, m).Register(r)
		wallet.NewHandler(walletStore).Register(r)
	})

	registry.NewHandler(didRecords).Register(router)
	if ledgerClient != nil {
		ledger.NewHandler(ledgerClient).Register(router)
	}
	healthHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
