package award

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/achievement-service/internal/achievement"
)

func TestMemoryRepository_CreateAwardIsConditional(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	record := achievement.AwardRecord{ID: "a-1", RuleID: "r", MemberID: "m-1", AwardedAt: testNow, PointsAwarded: 25}

	require.NoError(t, repo.CreateAward(ctx, record))
	assert.ErrorIs(t, repo.CreateAward(ctx, record), ErrAlreadyAwarded)

	snap, err := repo.GetSnapshot(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 25, snap.Points)
}

func TestMemoryRepository_RecordMilestonesReturnsOnlyNewLevels(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	ms := []achievement.Milestone{{Level: "a", Threshold: 1, PointValue: 2}, {Level: "b", Threshold: 2, PointValue: 3}}

	added, err := repo.RecordMilestones(ctx, "m-1", "r", ms[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, achievement.MilestoneLevels(added))

	added, err = repo.RecordMilestones(ctx, "m-1", "r", ms)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, achievement.MilestoneLevels(added))

	added, err = repo.RecordMilestones(ctx, "m-1", "r", ms)
	require.NoError(t, err)
	assert.Empty(t, added)

	recorded, err := repo.GetMilestones(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"r": {"a", "b"}}, recorded)

	snap, err := repo.GetSnapshot(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Points)
}

func TestMemoryRepository_SnapshotsAreCopies(t *testing.T) {
	repo := NewMemoryRepository()
	byType := map[achievement.EventType]int{achievement.EventTypeSocial: 1}
	repo.PutSnapshot(achievement.Snapshot{MemberID: "m-1", EventsByType: byType})
	byType[achievement.EventTypeSocial] = 99

	snap, err := repo.GetSnapshot(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.EventsByType[achievement.EventTypeSocial])

	unknown, err := repo.GetSnapshot(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, achievement.Snapshot{MemberID: "nobody"}, unknown)
}

func TestMemoryRepository_ListAwardsOrdered(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateAward(ctx, achievement.AwardRecord{RuleID: "late", MemberID: "m-1", AwardedAt: testNow.Add(time.Hour)}))
	require.NoError(t, repo.CreateAward(ctx, achievement.AwardRecord{RuleID: "early", MemberID: "m-1", AwardedAt: testNow}))

	awards, err := repo.ListAwards(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, awards, 2)
	assert.Equal(t, "early", awards[0].RuleID)
	assert.Equal(t, "late", awards[1].RuleID)

	none, err := repo.ListAwards(ctx, "m-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
