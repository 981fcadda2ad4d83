package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/promovista/app/internal/app"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/config"
	"github.com/promovista/app/internal/db"
	"github.com/promovista/app/internal/logging"
	"github.com/promovista/app/internal/phone"
	"github.com/promovista/app/internal/profile"
	"github.com/promovista/app/internal/session"
	"go.uber.org/zap"
)

// refreshInterval is how often the client checks whether the session needs a refresh
const refreshInterval = 30 * time.Second

// runtime holds the wired client shared by the serve and tui commands
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	client   *backend.Client
	sessions *session.Store
	app      *app.App
	database *sql.DB
}

// setup loads configuration and wires the backend client, profile store,
// session store and app. logFile is used when LOG_FILE is not set.
func setup(ctx context.Context, logFile string) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = logFile
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if warning := cfg.PlaceholderWarning(); warning != "" {
		log.Warn(warning)
	}

	// An empty URL makes every backend call fail with ErrNotConfigured
	baseURL := cfg.BackendURL
	if cfg.UsesPlaceholders() {
		baseURL = ""
	}

	var storage backend.SessionStorage = backend.NewMemoryStorage()
	if cfg.SessionFile != "" {
		storage = backend.NewFileStorage(cfg.SessionFile)
	}
	httpClient := &http.Client{Timeout: cfg.BackendTimeout}
	client := backend.New(backend.Options{
		URL:        baseURL,
		AnonKey:    cfg.AnonKey,
		HTTPClient: httpClient,
		Storage:    storage,
		Logger:     log.Named("backend"),
	})

	rt := &runtime{cfg: cfg, log: log, client: client}

	var profiles profile.Store
	switch cfg.ProfileStore {
	case config.ProfileStorePostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL, log.Named("db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Migrate(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		rt.database = database
		profiles = profile.NewPostgresStore(database)
	default:
		profiles = profile.NewRESTStore(profile.RESTOptions{
			URL:        baseURL,
			AnonKey:    cfg.AnonKey,
			HTTPClient: httpClient,
			Token:      client.AccessToken,
			Logger:     log.Named("profiles"),
		})
	}
	log.Info("profile store selected", zap.String("store", cfg.ProfileStore))

	rt.sessions = session.NewStore(client, profiles, log.Named("session"))
	rt.app = app.New(app.Options{
		Sessions: rt.sessions,
		Auth:     client,
		Profiles: profiles,
		Phones:   phone.NewNormalizer(cfg.CountryPrefix),
		Logger:   log.Named("app"),
	})

	// the app has to watch before the store publishes its first state
	rt.app.Start(ctx)
	rt.sessions.Start(ctx)
	return rt, nil
}

// Close stops the app and session store and releases the database
func (rt *runtime) Close() {
	rt.app.Close()
	rt.sessions.Close()
	if rt.database != nil {
		if err := rt.database.Close(); err != nil {
			rt.log.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}
