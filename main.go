package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-trading-engine/config"
	"smart-trading-engine/internal/api"
	"smart-trading-engine/internal/auth"
	"smart-trading-engine/internal/database"
	"smart-trading-engine/internal/engine"
	"smart-trading-engine/internal/logging"
	"smart-trading-engine/internal/performance"
	"smart-trading-engine/internal/risk"
	"smart-trading-engine/internal/session"
	"smart-trading-engine/internal/sizing"
	"smart-trading-engine/internal/vault"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config.json", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	logger.Info("starting smart trading engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Secrets come from Vault when enabled; the config file values act as
	// the local fallback for development.
	vaultClient, err := vault.NewClient(cfg.Vault)
	if err != nil {
		logger.Error("failed to initialize vault client", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret != "" {
		vaultClient.SetLocalSecret("jwt_secret", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Password != "" {
		vaultClient.SetLocalSecret("db_password", cfg.Database.Password)
	}

	jwtSecret, err := vaultClient.GetSecret(ctx, "jwt_secret")
	if err != nil {
		logger.Error("no JWT secret available", "error", err)
		os.Exit(1)
	}

	// Database is optional; without it the engine runs stateless with
	// in-memory trade history only.
	var repo *database.Repository
	if cfg.Database.Enabled {
		dbCfg := cfg.Database.Config
		if password, err := vaultClient.GetSecret(ctx, "db_password"); err == nil {
			dbCfg.Password = password
		}

		db, err := database.NewDB(dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		repo = database.NewRepository(db)
		logger.Info("database connected", "host", dbCfg.Host, "database", dbCfg.Database)
	}

	var trailingStore api.TrailingStateStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		zlog := zerolog.New(os.Stdout).With().Timestamp().Str("component", "redis").Logger()
		trailingStore = database.NewRedisTrailingStateRepository(redisClient, zlog)
		logger.Info("redis trailing state store enabled", "addr", cfg.Redis.Addr)
	}

	sess := session.NewAnalyzer()
	kelly := sizing.NewKellyCalculator(cfg.Fees, cfg.Engine.FeeTier)
	trailing := risk.NewTrailingStopManager()

	entryEngine := engine.NewEntryEngine(sess, kelly)
	entryEngine.SetMinConfidence(cfg.Engine.ConfidenceThreshold)
	exitEngine := engine.NewExitEngine(sess, trailing)

	monitorOpts := []performance.Option{performance.WithPositionCap(cfg.Engine.MaxOpenTrades)}
	if repo != nil {
		monitorOpts = append(monitorOpts, performance.WithStore(repo))
	}
	monitor, err := performance.NewMonitor(ctx, monitorOpts...)
	if err != nil {
		logger.Error("failed to initialize performance monitor", "error", err)
		os.Exit(1)
	}

	// Seed the entry engine's trade history from persisted trades so Kelly
	// sizing survives restarts.
	if repo != nil {
		trades, err := repo.ListTrades(ctx, 100)
		if err != nil {
			logger.Warn("failed to load trade history", "error", err)
		} else {
			for _, trade := range trades {
				entryEngine.AddTrade(trade)
			}
			logger.Info("trade history restored", "count", len(trades))
		}
	}

	jwtManager := auth.NewJWTManager(jwtSecret, time.Duration(cfg.Auth.TokenDurationMinutes)*time.Minute)
	passwordManager := auth.NewPasswordManager(cfg.Auth.BcryptCost)

	if repo != nil {
		if err := bootstrapAdmin(ctx, repo, passwordManager, logger); err != nil {
			logger.Error("admin bootstrap failed", "error", err)
			os.Exit(1)
		}
	}

	server := api.NewServer(
		api.ServerConfig{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ProductionMode: cfg.Logging.Level != "DEBUG",
		},
		entryEngine,
		exitEngine,
		monitor,
		sess,
		kelly,
		repo,
		trailing,
		trailingStore,
		jwtManager,
		passwordManager,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("smart trading engine stopped")
}

// bootstrapAdmin creates the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when the user does not exist yet. Without these the API
// starts with no login, which is fine for signal-only deployments.
func bootstrapAdmin(ctx context.Context, repo *database.Repository, passwords *auth.PasswordManager, logger *logging.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	existing, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := passwords.HashPassword(password)
	if err != nil {
		return err
	}
	if err := repo.CreateUser(ctx, &database.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         "admin",
	}); err != nil {
		return err
	}
	logger.Info("admin account created", "email", email)
	return nil
}
