package achievement

import "time"

// CriteriaType identifies which counter a rule is measured against.
type CriteriaType string

const (
	CriteriaPointsThreshold   CriteriaType = "points_threshold"
	CriteriaEventAttendance   CriteriaType = "event_attendance"
	CriteriaProjectCompletion CriteriaType = "project_completion"
	CriteriaCustom            CriteriaType = "custom"
)

// Kind separates achievements from badges for display. Both are evaluated identically.
type Kind string

const (
	KindAchievement Kind = "achievement"
	KindBadge       Kind = "badge"
)

// EventType names a per-type event counter in the snapshot.
type EventType string

const (
	EventTypeAny      EventType = "any"
	EventTypeSocial   EventType = "Social"
	EventTypeTraining EventType = "Training"
)

// RoleLead selects the project-lead counter for project_completion rules.
const RoleLead = "lead"

// Conditions narrows the counter a rule reads or adds extra predicates.
// Which fields matter depends on the rule's CriteriaType:
//
//	event_attendance:   EventType
//	project_completion: Role
//	custom:             MembershipDuration, RoleHeld, TierReached (all present ones must hold)
type Conditions struct {
	EventType          EventType `json:"eventType,omitempty" firestore:"eventType,omitempty" yaml:"eventType,omitempty"`
	Role               string    `json:"role,omitempty" firestore:"role,omitempty" yaml:"role,omitempty"`
	MembershipDuration *int      `json:"membershipDuration,omitempty" firestore:"membershipDuration,omitempty" yaml:"membershipDuration,omitempty"`
	RoleHeld           string    `json:"roleHeld,omitempty" firestore:"roleHeld,omitempty" yaml:"roleHeld,omitempty"`
	TierReached        string    `json:"tierReached,omitempty" firestore:"tierReached,omitempty" yaml:"tierReached,omitempty"`
}

// Milestone is an ordered sub-goal inside a rule with its own partial reward.
type Milestone struct {
	Level      string `json:"level" firestore:"level" yaml:"level" validate:"required"`
	Threshold  int    `json:"threshold" firestore:"threshold" yaml:"threshold" validate:"gt=0"`
	PointValue int    `json:"pointValue" firestore:"point_value" yaml:"pointValue" validate:"gte=0"`
	Reward     string `json:"reward,omitempty" firestore:"reward,omitempty" yaml:"reward,omitempty"`
}

// Rule is a configured achievement or badge that members can earn.
type Rule struct {
	ID           string       `json:"id" firestore:"id" yaml:"id" validate:"required"`
	Kind         Kind         `json:"kind" firestore:"kind" yaml:"kind" validate:"omitempty,oneof=achievement badge"`
	Name         string       `json:"name" firestore:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" firestore:"description,omitempty" yaml:"description,omitempty"`
	CriteriaType CriteriaType `json:"criteriaType" firestore:"criteria_type" yaml:"criteriaType" validate:"required,oneof=points_threshold event_attendance project_completion custom"`
	Threshold    int          `json:"threshold" firestore:"threshold" yaml:"threshold" validate:"gt=0"`
	Conditions   Conditions   `json:"conditions" firestore:"conditions" yaml:"conditions"`
	Milestones   []Milestone  `json:"milestones,omitempty" firestore:"milestones,omitempty" yaml:"milestones,omitempty" validate:"dive"`
	IsActive     bool         `json:"isActive" firestore:"is_active" yaml:"isActive"`
	RewardPoints int          `json:"rewardPoints" firestore:"reward_points" yaml:"rewardPoints" validate:"gte=0"`
}

// Snapshot is the immutable set of activity counters for one member at evaluation time.
type Snapshot struct {
	MemberID          string            `json:"memberId"`
	Points            int               `json:"points"`
	EventsAttended    int               `json:"eventsAttended"`
	EventsByType      map[EventType]int `json:"eventsByType,omitempty"`
	ProjectsCompleted int               `json:"projectsCompleted"`
	ProjectsLed       int               `json:"projectsLed"`
	MembershipMonths  int               `json:"membershipMonths"`
	Role              string            `json:"role"`
	Tier              string            `json:"tier"`
}

// AwardRecord is the persisted proof that a member satisfied a rule. It is written once
// and never modified; editing the rule later has no effect on it.
type AwardRecord struct {
	ID                       string    `json:"id" firestore:"id"`
	RuleID                   string    `json:"ruleId" firestore:"rule_id"`
	MemberID                 string    `json:"memberId" firestore:"member_id"`
	AwardedAt                time.Time `json:"awardedAt" firestore:"awarded_at"`
	Reason                   string    `json:"reason" firestore:"reason"`
	CompletedMilestoneLevels []string  `json:"completedMilestoneLevels,omitempty" firestore:"completed_milestone_levels,omitempty"`
	PointsAwarded            int       `json:"pointsAwarded" firestore:"points_awarded"`
}

// ProgressResult is the evaluator output. It is never persisted.
type ProgressResult struct {
	Percentage          int      `json:"percentage"`
	CurrentValue        int      `json:"currentValue"`
	TargetValue         int      `json:"targetValue"`
	CompletedMilestones []string `json:"completedMilestones"`
	// Met reports whether the criteria predicate holds. Percentage is rounded for display
	// and can read 100 slightly before Met becomes true.
	Met bool `json:"met"`
}
