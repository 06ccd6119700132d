package award

import (
	"context"
	"errors"
	"time"

	"github.com/memberhub/achievement-service/internal/achievement"
)

var (
	// ErrNotFound is returned when a rule or member does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMissingMemberID is returned when an operation is called without a member.
	ErrMissingMemberID = errors.New("member id is required")
	// ErrAlreadyAwarded is returned by the ledger when the (rule, member) pair already holds an award.
	ErrAlreadyAwarded = errors.New("already awarded")
)

// Repository is the persistence boundary of the award service. CreateAward and
// RecordMilestones are the ledger: both must be conditional so that concurrent
// callers never grant or pay the same thing twice.
type Repository interface {
	GetSnapshot(ctx context.Context, memberID string) (achievement.Snapshot, error)

	ListRules(ctx context.Context) ([]achievement.Rule, error)
	GetRule(ctx context.Context, ruleID string) (achievement.Rule, error)
	SaveRule(ctx context.Context, rule achievement.Rule) error

	ListAwards(ctx context.Context, memberID string) ([]achievement.AwardRecord, error)
	// CreateAward stores record and credits record.PointsAwarded to the member. It returns
	// ErrAlreadyAwarded, without crediting anything, when an award for the same rule exists.
	CreateAward(ctx context.Context, record achievement.AwardRecord) error

	// GetMilestones returns the recorded milestone levels per rule id.
	GetMilestones(ctx context.Context, memberID string) (map[string][]string, error)
	// RecordMilestones appends the given milestones for the rule and credits their point
	// values. Only milestones not recorded before are appended, credited and returned.
	RecordMilestones(ctx context.Context, memberID, ruleID string, milestones []achievement.Milestone) ([]achievement.Milestone, error)
}

// ClaimGuard serialises award attempts for the same (rule, member) across instances.
// Acquire returns a token identifying this holder; Release only drops the claim while
// that token still owns it.
type ClaimGuard interface {
	Acquire(ctx context.Context, ruleID, memberID string) (token string, ok bool, err error)
	Release(ctx context.Context, ruleID, memberID, token string) error
}

// Service exposes achievement progress and award checks.
type Service interface {
	ListRules(ctx context.Context) ([]achievement.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*achievement.Rule, error)
	PutRule(ctx context.Context, rule achievement.Rule) (*achievement.Rule, error)

	GetProgress(ctx context.Context, memberID string) (*ProgressResponse, error)
	// CheckAwards grants every newly eligible rule. On a write failure it returns the
	// grants persisted so far together with the error.
	CheckAwards(ctx context.Context, memberID string) (*CheckResult, error)
	CheckAwardsBatch(ctx context.Context, memberIDs []string) ([]*CheckResult, error)
	ListAwards(ctx context.Context, memberID string) ([]achievement.AwardRecord, error)
}

// RuleStatus is the progress of one member against one active rule.
type RuleStatus struct {
	RuleID             string                     `json:"rule_id"`
	Kind               achievement.Kind           `json:"kind"`
	Name               string                     `json:"name"`
	Description        string                     `json:"description,omitempty"`
	Outcome            achievement.Outcome        `json:"outcome"`
	Progress           achievement.ProgressResult `json:"progress"`
	Awarded            bool                       `json:"awarded"`
	AwardedAt          *time.Time                 `json:"awarded_at,omitempty"`
	RecordedMilestones []string                   `json:"recorded_milestones"`
}

// ProgressResponse is returned by GetProgress.
type ProgressResponse struct {
	MemberID string       `json:"member_id"`
	Points   int          `json:"points"`
	Rules    []RuleStatus `json:"rules"`
}

// MilestonePayout is a milestone newly recorded during a check.
type MilestonePayout struct {
	RuleID     string `json:"rule_id"`
	Level      string `json:"level"`
	PointValue int    `json:"point_value"`
	Reward     string `json:"reward,omitempty"`
}

// CheckResult summarises what one CheckAwards run granted.
type CheckResult struct {
	MemberID      string                    `json:"member_id"`
	Granted       []achievement.AwardRecord `json:"granted"`
	Milestones    []MilestonePayout         `json:"milestones"`
	PointsAwarded int                       `json:"points_awarded"`
	// Skipped lists eligible rules whose claim was held by another checker.
	Skipped []string `json:"skipped,omitempty"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts identifier creation for deterministic tests.
type IDGenerator interface {
	NewID() string
}
