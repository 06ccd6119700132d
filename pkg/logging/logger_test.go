package logging

import (
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithRequestID(ctx, logger).Info("checked")
	WithRequestID(context.Background(), logger).Info("unscoped")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()["requestId"])
	assert.NotContains(t, entries[1].ContextMap(), "requestId")
}

func TestNewLoggerIsUsable(t *testing.T) {
	logger := NewLogger("achievement-service")
	assert.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
