package achievement

import "math"

// EvaluateProgress maps a rule and a member snapshot to a progress result. It has no side
// effects and returns identical results for identical inputs. Callers are expected to skip
// inactive rules; the result for one is computed the same way regardless.
func EvaluateProgress(rule Rule, snap Snapshot) ProgressResult {
	current, target, met := measure(rule, snap)

	return ProgressResult{
		Percentage:          percentage(current, target),
		CurrentValue:        current,
		TargetValue:         target,
		CompletedMilestones: completedMilestones(rule.Milestones, current),
		Met:                 met,
	}
}

// measure selects the comparable (current, target) pair for a rule and reports whether the
// rule's predicate holds.
func measure(rule Rule, snap Snapshot) (current, target int, met bool) {
	switch rule.CriteriaType {
	case CriteriaPointsThreshold:
		current = snap.Points
	case CriteriaEventAttendance:
		current = eventCount(rule.Conditions.EventType, snap)
	case CriteriaProjectCompletion:
		if rule.Conditions.Role == RoleLead {
			current = snap.ProjectsLed
		} else {
			current = snap.ProjectsCompleted
		}
	case CriteriaCustom:
		return measureCustom(rule.Conditions, rule.Threshold, snap)
	default:
		// Unknown types never pass catalog validation.
		return 0, rule.Threshold, false
	}
	target = rule.Threshold
	return current, target, current >= target
}

func eventCount(eventType EventType, snap Snapshot) int {
	switch eventType {
	case EventTypeSocial, EventTypeTraining:
		return snap.EventsByType[eventType]
	default:
		return snap.EventsAttended
	}
}

// subCondition is one custom predicate with the comparable pair it reports.
type subCondition struct {
	current, target int
	ok              bool
}

func equality(equal bool) subCondition {
	if equal {
		return subCondition{current: 1, target: 1, ok: true}
	}
	return subCondition{current: 0, target: 1}
}

// measureCustom evaluates the conjunction of custom sub-conditions. The reported pair comes
// from the first present sub-condition; a rule with none is never satisfied.
func measureCustom(cond Conditions, threshold int, snap Snapshot) (current, target int, met bool) {
	var checks []subCondition

	if cond.MembershipDuration != nil {
		want := *cond.MembershipDuration
		checks = append(checks, subCondition{snap.MembershipMonths, want, snap.MembershipMonths >= want})
	}
	if cond.RoleHeld != "" {
		checks = append(checks, equality(snap.Role == cond.RoleHeld))
	}
	if cond.TierReached != "" {
		checks = append(checks, equality(snap.Tier == cond.TierReached))
	}

	if len(checks) == 0 {
		// Nothing to compare: report 0% even for a malformed zero threshold.
		if threshold <= 0 {
			threshold = 1
		}
		return 0, threshold, false
	}

	met = true
	for _, c := range checks {
		met = met && c.ok
	}
	return checks[0].current, checks[0].target, met
}

// percentage is clamp(round(100*current/target), 0, 100) with a zero target treated as done.
func percentage(current, target int) int {
	if target <= 0 {
		return 100
	}
	// Clamp the ratio before converting to int so huge counters cannot overflow.
	ratio := float64(current) / float64(target)
	switch {
	case ratio >= 1:
		return 100
	case ratio <= 0:
		return 0
	default:
		return int(math.Round(100 * ratio))
	}
}

// completedMilestones returns the levels whose threshold current has reached, in catalog
// order.
func completedMilestones(milestones []Milestone, current int) []string {
	done := make([]string, 0, len(milestones))
	for _, m := range milestones {
		if current >= m.Threshold {
			done = append(done, m.Level)
		}
	}
	return done
}
