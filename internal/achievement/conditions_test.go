package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionsFromMap(t *testing.T) {
	cond, err := ConditionsFromMap(map[string]any{
		"eventType":          "Social",
		"membershipDuration": "18",
		"roleHeld":           " secretary ",
		"tierReached":        nil,
	})
	require.NoError(t, err)

	assert.Equal(t, EventTypeSocial, cond.EventType)
	require.NotNil(t, cond.MembershipDuration)
	assert.Equal(t, 18, *cond.MembershipDuration)
	assert.Equal(t, "secretary", cond.RoleHeld)
	assert.Empty(t, cond.TierReached)
}

func TestConditionsFromMap_FirestoreNumbers(t *testing.T) {
	cond, err := ConditionsFromMap(map[string]any{"membershipDuration": int64(6)})
	require.NoError(t, err)
	assert.Equal(t, 6, *cond.MembershipDuration)

	cond, err = ConditionsFromMap(map[string]any{"membershipDuration": 12.0})
	require.NoError(t, err)
	assert.Equal(t, 12, *cond.MembershipDuration)
}

func TestConditionsFromMap_Rejects(t *testing.T) {
	_, err := ConditionsFromMap(map[string]any{"membershipDuration": "a year"})
	assert.ErrorIs(t, err, ErrInvalidRuleDefinition)

	_, err = ConditionsFromMap(map[string]any{"evenType": "Social", "colour": "red"})
	require.ErrorIs(t, err, ErrInvalidRuleDefinition)
	assert.Contains(t, err.Error(), "colour, evenType")
}

func TestConditionsMapRoundTrip(t *testing.T) {
	want := Conditions{Role: RoleLead, MembershipDuration: intPtr(3), TierReached: "silver"}

	got, err := ConditionsFromMap(want.Map())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Empty(t, Conditions{}.Map())
}
