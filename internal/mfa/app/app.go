package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quollhq/aegis/internal/mfa/cache"
	httpapi "github.com/quollhq/aegis/internal/mfa/http"
	"github.com/quollhq/aegis/internal/mfa/notify"
	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/internal/mfa/store/drivers/sqlite"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/jwtx"
	"github.com/quollhq/aegis/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the MFA service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	rdb    *redis.Client
	cache  *cache.Cache
	sealer *cryptox.Sealer

	policyService     *service.PolicyService
	challengeService  *service.ChallengeService
	enrollmentService *service.EnrollmentService
	recoveryService   *service.RecoveryService
	deviceService     *service.DeviceService
	loginService      *service.LoginService
	housekeeping      *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mfa-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	sealKey, err := loadOrGenerateSealKey(cfg.SealKeyFile)
	if err != nil {
		return nil, err
	}
	app.sealer, err = cryptox.NewSealer(sealKey)
	if err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initCache()
	app.initServices()

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("mfa service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, background workers, and
// connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down mfa service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("mfa service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

// initCache wires the Redis read cache when configured. Without Redis the
// nil cache degrades every lookup to a database read.
func (app *Application) initCache() {
	if app.cfg.RedisAddr == "" {
		app.logger.Info("redis not configured, read cache disabled")
		return
	}

	app.rdb = redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
	})
	app.cache = cache.New(app.rdb, app.cfg.CacheTTL)
	app.logger.Info("redis read cache enabled", "addr", app.cfg.RedisAddr, "ttl", app.cfg.CacheTTL)
}

// initNotify builds the delivery router: SMTP for email when a relay is
// configured, the structured log otherwise. SMS always goes to the log until
// a gateway integration lands.
func (app *Application) initNotify() notify.Dispatcher {
	var email notify.Dispatcher = notify.LogDispatcher{}
	if app.cfg.SMTPHost != "" {
		email = notify.NewMailer(
			app.cfg.SMTPHost, app.cfg.SMTPPort,
			app.cfg.SMTPUser, app.cfg.SMTPPass, app.cfg.SMTPFrom,
		)
		app.logger.Info("smtp delivery enabled", "host", app.cfg.SMTPHost)
	} else {
		app.logger.Warn("smtp not configured, email codes go to the log")
	}

	return notify.NewRouter(email, notify.LogDispatcher{})
}

func (app *Application) initServices() {
	app.policyService = &service.PolicyService{Store: app.db, Cache: app.cache}
	app.challengeService = &service.ChallengeService{
		Store:      app.db,
		Dispatcher: app.initNotify(),
	}
	app.recoveryService = &service.RecoveryService{Store: app.db}
	app.deviceService = &service.DeviceService{
		Store:    app.db,
		Cache:    app.cache,
		TrustTTL: app.cfg.DeviceTrustTTL,
	}
	app.enrollmentService = &service.EnrollmentService{
		Store:      app.db,
		Policies:   app.policyService,
		Challenges: app.challengeService,
		Directory:  service.NullDirectory{},
		Sealer:     app.sealer,
		Issuer:     app.cfg.TOTPIssuer,
	}
	app.loginService = &service.LoginService{
		Store:      app.db,
		Policies:   app.policyService,
		Challenges: app.challengeService,
		Recovery:   app.recoveryService,
		Devices:    app.deviceService,
		Directory:  service.NullDirectory{},
		Sealer:     app.sealer,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() error {
	verifier, err := jwtx.NewHS256([]byte(app.cfg.JWTSecret), app.cfg.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	router := httpapi.NewRouter(verifier, BuildVersion, app.db, app.logger)
	router.EnrollmentService = app.enrollmentService
	router.LoginService = app.loginService
	router.RecoveryService = app.recoveryService
	router.PolicyService = app.policyService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
