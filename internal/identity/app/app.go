package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authlane/identity/internal/identity/config"
	httpapi "github.com/authlane/identity/internal/identity/http"
	"github.com/authlane/identity/internal/identity/service"
	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/internal/identity/store/drivers/sqlite"
	"github.com/authlane/identity/pkg/cryptox"
	"github.com/authlane/identity/pkg/jwtx"
	"github.com/authlane/identity/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	settings *config.Provider
	hasher   cryptox.Hasher

	signInService  *service.SignInService
	tokenService   *service.TokenService
	accountService *service.AccountService
	roleService    *service.RoleService
	mfaService     *service.MFAService
	housekeeping   *service.Housekeeping

	server *http.Server
	router *httpapi.Router

	stopHousekeeping context.CancelFunc
}

// New creates an Application with all dependencies initialized. Settings
// validation failures are fatal here, before anything listens.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	provider, err := config.NewProvider(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	app.settings = provider

	// Scheme validity is part of Validate, so this cannot fail here. A
	// scheme change requires a restart; reloads only touch thresholds and
	// token settings.
	app.hasher, err = cryptox.NewHasher(cfg.Settings.PasswordScheme)
	if err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	hkCtx, cancel := context.WithCancel(slogx.WithContext(context.Background(), app.logger))
	app.stopHousekeeping = cancel
	go app.housekeeping.Run(hkCtx)

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	for {
		select {
		case err := <-serverErrors:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil

		case <-reload:
			// Re-read the sign-in and issuance settings. A snapshot that
			// fails validation halts the process: serving on settings we
			// could not validate is worse than restarting.
			next := loadSettings()
			if err := app.settings.Reload(next); err != nil {
				app.logger.Error("configuration reload rejected, shutting down", "error", err)
				if shutdownErr := app.Shutdown(); shutdownErr != nil {
					app.logger.Error("graceful shutdown failed", "error", shutdownErr)
				}
				return fmt.Errorf("configuration reload: %w", err)
			}
			app.logger.Info("configuration reloaded")

		case sig := <-shutdown:
			app.logger.Info("shutdown signal received", "signal", sig)
			if err := app.Shutdown(); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		}
	}
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.stopHousekeeping != nil {
		app.stopHousekeeping()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// initDatabase opens sqlite and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.signInService = &service.SignInService{
		Store:  app.db,
		Hasher: app.hasher,
		Config: app.settings,
	}
	app.tokenService = &service.TokenService{Config: app.settings}
	app.accountService = &service.AccountService{
		Store:  app.db,
		Hasher: app.hasher,
	}
	app.roleService = &service.RoleService{Store: app.db}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Settings.JwtIssuer,
	}
	app.housekeeping = &service.Housekeeping{
		Store:    app.db,
		Interval: app.cfg.HousekeepingInterval,
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	verifier := jwtx.NewVerifierHS256(
		[]byte(app.cfg.Settings.JwtKey),
		app.cfg.Settings.JwtIssuer,
	)

	router := httpapi.NewRouter(verifier, BuildVersion, app.db, app.logger)
	router.SignInService = app.signInService
	router.TokenService = app.tokenService
	router.AccountService = app.accountService
	router.RoleService = app.roleService
	router.MFAService = app.mfaService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
