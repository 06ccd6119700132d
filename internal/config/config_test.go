package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/achievement-service/pkg/auth"
)

var configEnv = []string{
	"PORT", "GCP_PROJECT_ID", "DATASTORE", "AUTH_MODE", "CLERK_JWKS_URL", "CLERK_AUDIENCE", "CLERK_ISSUER",
	"FIRESTORE_EMULATOR_HOST", "FIRESTORE_DATABASE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"CATALOG_FILE", "CATALOG_BUCKET", "CATALOG_OBJECT", "CHECK_CONCURRENCY", "OPERATOR_USER_IDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DataStoreMemory, cfg.DataStore)
	assert.Equal(t, auth.ModeNoop, cfg.Auth.Mode)
	assert.Equal(t, 8, cfg.CheckConcurrency)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Auth.Operators)
}

func TestLoadOperators(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPERATOR_USER_IDS", "user_admin, svc_scheduler")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Auth.Operators, 2)
	assert.True(t, cfg.Auth.Operators.Allows(auth.AuthenticatedUser{UserID: "svc_scheduler"}))
	assert.False(t, cfg.Auth.Operators.Allows(auth.AuthenticatedUser{UserID: "member_1"}))
}

func TestLoadFirestoreWithRedis(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATASTORE", "Firestore")
	t.Setenv("GCP_PROJECT_ID", "memberhub-dev")
	t.Setenv("FIRESTORE_EMULATOR_HOST", "localhost:8081")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CATALOG_BUCKET", "memberhub-config")
	t.Setenv("CATALOG_OBJECT", "achievements.yaml")
	t.Setenv("CHECK_CONCURRENCY", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DataStoreFirestore, cfg.DataStore)
	assert.Equal(t, "localhost:8081", cfg.Firestore.EmulatorHost)
	assert.Equal(t, RedisConfig{Addr: "localhost:6379", DB: 2}, cfg.Redis)
	assert.Equal(t, CatalogConfig{Bucket: "memberhub-config", Object: "achievements.yaml"}, cfg.Catalog)
	assert.Equal(t, 16, cfg.CheckConcurrency)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		problem string
	}{
		{"unknown datastore", map[string]string{"DATASTORE": "postgres"}, "unsupported datastore"},
		{"firestore without project", map[string]string{"DATASTORE": "firestore"}, "gcp project id required"},
		{"clerk without jwks", map[string]string{"AUTH_MODE": "clerk"}, "CLERK_JWKS_URL is required"},
		{"unknown auth mode", map[string]string{"AUTH_MODE": "basic"}, "unsupported auth mode"},
		{"non numeric port", map[string]string{"PORT": "http"}, "invalid config"},
		{"zero concurrency", map[string]string{"CHECK_CONCURRENCY": "0"}, "invalid config"},
		{"bad concurrency", map[string]string{"CHECK_CONCURRENCY": "lots"}, "CHECK_CONCURRENCY"},
		{"bucket without object", map[string]string{"CATALOG_BUCKET": "b"}, "must be set together"},
		{"file and bucket", map[string]string{"CATALOG_FILE": "rules.yaml", "CATALOG_BUCKET": "b", "CATALOG_OBJECT": "o"}, "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}
