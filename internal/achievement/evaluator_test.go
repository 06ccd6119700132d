package achievement

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestEvaluateProgress_CounterSelection(t *testing.T) {
	snap := Snapshot{
		MemberID:          "m-1",
		Points:            420,
		EventsAttended:    9,
		EventsByType:      map[EventType]int{EventTypeSocial: 4, EventTypeTraining: 2},
		ProjectsCompleted: 6,
		ProjectsLed:       1,
		MembershipMonths:  14,
		Role:              "treasurer",
		Tier:              "gold",
	}

	tests := []struct {
		name        string
		rule        Rule
		wantCurrent int
		wantTarget  int
		wantMet     bool
	}{
		{"points", Rule{CriteriaType: CriteriaPointsThreshold, Threshold: 400}, 420, 400, true},
		{"events any", Rule{CriteriaType: CriteriaEventAttendance, Threshold: 10, Conditions: Conditions{EventType: EventTypeAny}}, 9, 10, false},
		{"events absent", Rule{CriteriaType: CriteriaEventAttendance, Threshold: 10}, 9, 10, false},
		{"events social", Rule{CriteriaType: CriteriaEventAttendance, Threshold: 4, Conditions: Conditions{EventType: EventTypeSocial}}, 4, 4, true},
		{"events training", Rule{CriteriaType: CriteriaEventAttendance, Threshold: 5, Conditions: Conditions{EventType: EventTypeTraining}}, 2, 5, false},
		{"events unknown type", Rule{CriteriaType: CriteriaEventAttendance, Threshold: 5, Conditions: Conditions{EventType: "Gala"}}, 9, 5, true},
		{"projects any", Rule{CriteriaType: CriteriaProjectCompletion, Threshold: 3, Conditions: Conditions{Role: "any"}}, 6, 3, true},
		{"projects lead", Rule{CriteriaType: CriteriaProjectCompletion, Threshold: 3, Conditions: Conditions{Role: RoleLead}}, 1, 3, false},
		{"custom duration", Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{MembershipDuration: intPtr(12)}}, 14, 12, true},
		{"custom role held", Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{RoleHeld: "treasurer"}}, 1, 1, true},
		{"custom tier missed", Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{TierReached: "platinum"}}, 0, 1, false},
		{
			"custom conjunction fails on second condition",
			Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{MembershipDuration: intPtr(12), TierReached: "platinum"}},
			14, 12, false,
		},
		{
			"custom conjunction holds",
			Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{MembershipDuration: intPtr(12), RoleHeld: "treasurer", TierReached: "gold"}},
			14, 12, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateProgress(tt.rule, snap)
			assert.Equal(t, tt.wantCurrent, got.CurrentValue)
			assert.Equal(t, tt.wantTarget, got.TargetValue)
			assert.Equal(t, tt.wantMet, got.Met)
		})
	}
}

func TestEvaluateProgress_PercentageRoundsAndClamps(t *testing.T) {
	rule := Rule{CriteriaType: CriteriaPointsThreshold, Threshold: 1000}

	assert.Equal(t, 0, EvaluateProgress(rule, Snapshot{Points: 0}).Percentage)
	assert.Equal(t, 1, EvaluateProgress(rule, Snapshot{Points: 5}).Percentage)
	assert.Equal(t, 50, EvaluateProgress(rule, Snapshot{Points: 500}).Percentage)
	assert.Equal(t, 100, EvaluateProgress(rule, Snapshot{Points: 1000}).Percentage)
	assert.Equal(t, 100, EvaluateProgress(rule, Snapshot{Points: 25000}).Percentage)
	assert.Equal(t, 0, EvaluateProgress(rule, Snapshot{Points: -30}).Percentage)
	assert.Equal(t, 100, EvaluateProgress(rule, Snapshot{Points: math.MaxInt}).Percentage)
	assert.Equal(t, 0, EvaluateProgress(rule, Snapshot{Points: math.MinInt}).Percentage)

	tiny := Rule{CriteriaType: CriteriaPointsThreshold, Threshold: 1}
	got := EvaluateProgress(tiny, Snapshot{Points: math.MaxInt})
	assert.Equal(t, 100, got.Percentage)
	assert.True(t, got.Met)
}

func TestEvaluateProgress_ZeroTargetIsSatisfied(t *testing.T) {
	rule := Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{MembershipDuration: intPtr(0)}}

	got := EvaluateProgress(rule, Snapshot{})
	assert.Equal(t, 100, got.Percentage)
	assert.True(t, got.Met)
}

func TestEvaluateProgress_CustomWithoutConditionsNeverSatisfied(t *testing.T) {
	rule := Rule{CriteriaType: CriteriaCustom, Threshold: 1, Conditions: Conditions{}}

	for _, snap := range []Snapshot{
		{},
		{Points: 1_000_000, MembershipMonths: 240, Role: "president", Tier: "platinum"},
	} {
		got := EvaluateProgress(rule, snap)
		assert.Equal(t, 0, got.Percentage)
		assert.False(t, got.Met)
		assert.Empty(t, got.CompletedMilestones)
	}
}

func TestEvaluateProgress_MilestonePrefix(t *testing.T) {
	rule := Rule{
		CriteriaType: CriteriaEventAttendance,
		Threshold:    50,
		Milestones: []Milestone{
			{Level: "bronze", Threshold: 5, PointValue: 10},
			{Level: "silver", Threshold: 15, PointValue: 25},
			{Level: "gold", Threshold: 30, PointValue: 50},
			{Level: "platinum", Threshold: 60, PointValue: 100},
		},
	}

	for current := 0; current <= 70; current++ {
		got := EvaluateProgress(rule, Snapshot{EventsAttended: current})

		var want []string
		for _, m := range rule.Milestones {
			if m.Threshold <= current {
				want = append(want, m.Level)
			}
		}
		if want == nil {
			want = []string{}
		}
		require.Equal(t, want, got.CompletedMilestones, "current=%d", current)
	}
}

func TestEvaluateProgress_SharedMilestoneThresholdsBothReported(t *testing.T) {
	rule := Rule{
		CriteriaType: CriteriaPointsThreshold,
		Threshold:    100,
		Milestones: []Milestone{
			{Level: "a", Threshold: 10},
			{Level: "b", Threshold: 10},
		},
	}
	got := EvaluateProgress(rule, Snapshot{Points: 10})
	assert.Equal(t, []string{"a", "b"}, got.CompletedMilestones)
}

func TestEvaluateProgress_DeterministicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []CriteriaType{CriteriaPointsThreshold, CriteriaEventAttendance, CriteriaProjectCompletion, CriteriaCustom}
	eventTypes := []EventType{"", EventTypeAny, EventTypeSocial, EventTypeTraining}

	for i := 0; i < 500; i++ {
		rule := Rule{
			ID:           "r",
			CriteriaType: types[rng.Intn(len(types))],
			Threshold:    1 + rng.Intn(200),
			Conditions:   Conditions{EventType: eventTypes[rng.Intn(len(eventTypes))]},
			Milestones:   []Milestone{{Level: "one", Threshold: 1 + rng.Intn(50)}, {Level: "two", Threshold: 60 + rng.Intn(50)}},
			IsActive:     true,
		}
		if rng.Intn(2) == 0 {
			rule.Conditions.MembershipDuration = intPtr(rng.Intn(36))
		}
		if rng.Intn(2) == 0 {
			rule.Conditions.Role = RoleLead
		}
		snap := Snapshot{
			Points:            rng.Intn(5000),
			EventsAttended:    rng.Intn(300),
			EventsByType:      map[EventType]int{EventTypeSocial: rng.Intn(100), EventTypeTraining: rng.Intn(100)},
			ProjectsCompleted: rng.Intn(40),
			ProjectsLed:       rng.Intn(10),
			MembershipMonths:  rng.Intn(120),
		}

		first := EvaluateProgress(rule, snap)
		second := EvaluateProgress(rule, snap)
		require.Equal(t, first, second)
		require.GreaterOrEqual(t, first.Percentage, 0)
		require.LessOrEqual(t, first.Percentage, 100)
	}
}
