package achievement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Condition keys as they appear in stored documents and seed files.
const (
	CondEventType          = "eventType"
	CondRole               = "role"
	CondMembershipDuration = "membershipDuration"
	CondRoleHeld           = "roleHeld"
	CondTierReached        = "tierReached"
)

// ConditionsFromMap converts an open key/value conditions bag into Conditions. Scalars are
// coerced loosely ("12" and 12.0 are both a duration of 12). Unknown keys are rejected so a
// typo cannot silently widen a rule.
func ConditionsFromMap(raw map[string]any) (Conditions, error) {
	var (
		cond    Conditions
		unknown []string
	)
	for key, value := range raw {
		if value == nil {
			continue
		}
		switch key {
		case CondEventType:
			s, err := cast.ToStringE(value)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, key, err)
			}
			cond.EventType = EventType(strings.TrimSpace(s))
		case CondRole:
			s, err := cast.ToStringE(value)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, key, err)
			}
			cond.Role = strings.TrimSpace(s)
		case CondMembershipDuration:
			n, err := cast.ToIntE(value)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, key, err)
			}
			cond.MembershipDuration = &n
		case CondRoleHeld:
			s, err := cast.ToStringE(value)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, key, err)
			}
			cond.RoleHeld = strings.TrimSpace(s)
		case CondTierReached:
			s, err := cast.ToStringE(value)
			if err != nil {
				return Conditions{}, fmt.Errorf("%w: %s: %v", ErrInvalidRuleDefinition, key, err)
			}
			cond.TierReached = strings.TrimSpace(s)
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Conditions{}, fmt.Errorf("%w: unknown condition keys: %s", ErrInvalidRuleDefinition, strings.Join(unknown, ", "))
	}
	return cond, nil
}

// Map returns the conditions as a key/value bag, omitting unset fields.
func (c Conditions) Map() map[string]any {
	out := make(map[string]any)
	if c.EventType != "" {
		out[CondEventType] = string(c.EventType)
	}
	if c.Role != "" {
		out[CondRole] = c.Role
	}
	if c.MembershipDuration != nil {
		out[CondMembershipDuration] = *c.MembershipDuration
	}
	if c.RoleHeld != "" {
		out[CondRoleHeld] = c.RoleHeld
	}
	if c.TierReached != "" {
		out[CondTierReached] = c.TierReached
	}
	return out
}
