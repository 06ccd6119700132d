package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/memberhub/achievement-service/internal/achievement"
	"github.com/memberhub/achievement-service/internal/award"
	"github.com/memberhub/achievement-service/internal/catalog"
	"github.com/memberhub/achievement-service/internal/config"
	"github.com/memberhub/achievement-service/internal/httpapi"
	"github.com/memberhub/achievement-service/pkg/auth"
	"github.com/memberhub/achievement-service/pkg/logging"
	"github.com/memberhub/achievement-service/pkg/server"
)

const serviceName = "achievement-service"

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)
	defer func() { _ = logger.Sync() }()

	clock := award.SystemClock{}

	readiness := map[string]server.Check{}

	repo, cleanup, err := newRepository(ctx, cfg, clock, readiness)
	if err != nil {
		logger.Fatal("repository init error", zap.Error(err))
	}
	defer cleanup()

	guard, closeGuard, err := newClaimGuard(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("claim guard init error", zap.Error(err))
	}
	defer closeGuard()

	awardService, err := award.NewService(repo, award.Options{
		Clock:            clock,
		IDs:              award.UUIDGenerator{},
		Guard:            guard,
		Logger:           logger,
		BatchConcurrency: cfg.CheckConcurrency,
	})
	if err != nil {
		logger.Fatal("award service init error", zap.Error(err))
	}

	if err := seedCatalog(ctx, cfg, awardService, logger); err != nil {
		logger.Fatal("catalog seed error", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatal("auth verifier error", zap.Error(err))
	}

	if len(cfg.Auth.Operators) == 0 {
		logger.Warn("no operators configured, rule edits and batch checks are disabled")
	}

	router := server.NewRouter(server.Options{
		Service:   serviceName,
		Logger:    logger,
		Readiness: readiness,
	}, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))
			httpapi.RegisterRoutes(r, awardService, cfg.Auth.Operators, logger)
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := server.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newRepository(ctx context.Context, cfg config.Config, clock award.Clock, readiness map[string]server.Check) (award.Repository, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		databaseID := cfg.Firestore.DatabaseID
		if databaseID == "" {
			databaseID = firestore.DefaultDatabaseID
		}
		client, err := firestore.NewClientWithDatabase(ctx, cfg.GCPProjectID, databaseID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		repo := award.NewFirestoreRepository(client, clock)
		readiness["firestore"] = func(ctx context.Context) error {
			_, err := client.Collection("achievement_rules").Limit(1).Documents(ctx).GetAll()
			return err
		}
		cleanup := func() {
			_ = client.Close()
		}
		return repo, cleanup, nil
	default:
		return award.NewMemoryRepository(), func() {}, nil
	}
}

func newClaimGuard(ctx context.Context, cfg config.Config, logger *zap.Logger) (award.ClaimGuard, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, award claims rely on the ledger only")
		return award.NoopClaimGuard{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return award.NewRedisClaimGuard(client, "", 0), func() { _ = client.Close() }, nil
}

func seedCatalog(ctx context.Context, cfg config.Config, w catalog.RuleWriter, logger *zap.Logger) error {
	var (
		rules  *achievement.Catalog
		source string
		err    error
	)
	switch {
	case cfg.Catalog.File != "":
		source = cfg.Catalog.File
		rules, err = catalog.LoadFile(cfg.Catalog.File)
	case cfg.Catalog.Bucket != "":
		source = fmt.Sprintf("gs://%s/%s", cfg.Catalog.Bucket, cfg.Catalog.Object)
		var client *storage.Client
		client, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}
		defer client.Close()
		rules, err = catalog.LoadObject(ctx, client, cfg.Catalog.Bucket, cfg.Catalog.Object)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	n, err := catalog.Seed(ctx, w, rules)
	if err != nil {
		return err
	}
	logger.Info("achievement catalog seeded", zap.String("source", source), zap.Int("rules", n))
	return nil
}
