package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"

	"github.com/memberhub/achievement-service/pkg/auth"
	"github.com/memberhub/achievement-service/pkg/envconfig"
)

// Config encapsulates the runtime configuration for the achievement service.
type Config struct {
	Port         string    `validate:"required,numeric"`
	GCPProjectID string    `validate:"omitempty"`
	DataStore    DataStore `validate:"required"`
	Auth         AuthConfig
	Firestore    FirestoreConfig
	Redis        RedisConfig
	Catalog      CatalogConfig

	// CheckConcurrency bounds how many members a batch check evaluates at once.
	CheckConcurrency int `validate:"gte=1,lte=256"`
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps rules and awards in-memory (local development and tests).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores rules and awards in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
)

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode     auth.Mode `validate:"required"`
	JWKSURL  string    `validate:"omitempty,url"`
	Audience string
	Issuer   string

	// Operators may edit rule definitions and run batch checks.
	Operators auth.Operators
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
	DatabaseID   string
}

// RedisConfig enables the award claim guard when Addr is set.
type RedisConfig struct {
	Addr     string `validate:"omitempty,hostname_port"`
	Password string
	DB       int `validate:"gte=0"`
}

// CatalogConfig names an optional rule seed document.
type CatalogConfig struct {
	File   string
	Bucket string
	Object string
}

// Load reads environment variables, and a .env file when present, into Config with validation.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	concurrency, err := envconfig.GetInt("CHECK_CONCURRENCY", 8)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := envconfig.GetInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Auth: AuthConfig{
			Mode:      auth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(auth.ModeNoop)))),
			JWKSURL:   envconfig.Get("CLERK_JWKS_URL", ""),
			Audience:  envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:    envconfig.Get("CLERK_ISSUER", ""),
			Operators: auth.ParseOperators(envconfig.Get("OPERATOR_USER_IDS", "")),
		},
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
			DatabaseID:   envconfig.Get("FIRESTORE_DATABASE", ""),
		},
		Redis: RedisConfig{
			Addr:     envconfig.Get("REDIS_ADDR", ""),
			Password: envconfig.Get("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Catalog: CatalogConfig{
			File:   envconfig.Get("CATALOG_FILE", ""),
			Bucket: envconfig.Get("CATALOG_BUCKET", ""),
			Object: envconfig.Get("CATALOG_OBJECT", ""),
		},
		CheckConcurrency: concurrency,
	}

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreFirestore:
		if cfg.GCPProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	switch cfg.Auth.Mode {
	case auth.ModeClerk:
		if cfg.Auth.JWKSURL == "" {
			return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=clerk")
		}
	case auth.ModeNoop:
		// no-op
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	if cfg.Catalog.File != "" && cfg.Catalog.Bucket != "" {
		return fmt.Errorf("CATALOG_FILE and CATALOG_BUCKET are mutually exclusive")
	}
	if (cfg.Catalog.Bucket == "") != (cfg.Catalog.Object == "") {
		return fmt.Errorf("CATALOG_BUCKET and CATALOG_OBJECT must be set together")
	}

	return nil
}
