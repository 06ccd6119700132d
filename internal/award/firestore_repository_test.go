package award

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMonthsBetween(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		joined time.Time
		now    time.Time
		want   int
	}{
		{"never joined", time.Time{}, day(2026, 1, 1), 0},
		{"future join", day(2027, 1, 1), day(2026, 1, 1), 0},
		{"same day", day(2026, 1, 15), day(2026, 1, 15), 0},
		{"one day short of a month", day(2026, 1, 15), day(2026, 2, 14), 0},
		{"exact month", day(2026, 1, 15), day(2026, 2, 15), 1},
		{"across years", day(2023, 11, 30), day(2026, 3, 1), 27},
		{"two years", day(2024, 3, 1), day(2026, 3, 1), 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, monthsBetween(tt.joined, tt.now))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(status.Error(codes.Unavailable, "try again")))
	assert.True(t, isTransient(status.Error(codes.Aborted, "contention")))
	assert.False(t, isTransient(status.Error(codes.PermissionDenied, "denied")))
	assert.False(t, isTransient(ErrAlreadyAwarded))
	assert.False(t, isTransient(nil))
}

func TestAwardCommitError(t *testing.T) {
	assert.NoError(t, awardCommitError(nil))
	assert.ErrorIs(t, awardCommitError(status.Error(codes.AlreadyExists, "document already exists")), ErrAlreadyAwarded)
	assert.ErrorIs(t, awardCommitError(fmt.Errorf("commit: %w", status.Error(codes.AlreadyExists, "exists"))), ErrAlreadyAwarded)
	assert.ErrorIs(t, awardCommitError(ErrAlreadyAwarded), ErrAlreadyAwarded)

	unavailable := status.Error(codes.Unavailable, "try again")
	assert.Equal(t, unavailable, awardCommitError(unavailable))
}
