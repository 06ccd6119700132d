package award

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/memberhub/achievement-service/internal/achievement"
)

const (
	membersCollection    = "members"
	rulesCollection      = "achievement_rules"
	awardsCollection     = "awards"
	milestonesCollection = "milestones"
)

type firestoreRepository struct {
	client *firestore.Client
	clock  Clock
}

// NewFirestoreRepository creates a Firestore-backed repository.
func NewFirestoreRepository(client *firestore.Client, clock Clock) Repository {
	if clock == nil {
		clock = SystemClock{}
	}
	return &firestoreRepository{client: client, clock: clock}
}

// memberDocument mirrors members/{memberId}, maintained by the membership application.
type memberDocument struct {
	PointsTotal       int            `firestore:"points_total"`
	EventsAttended    int            `firestore:"events_attended"`
	EventsByType      map[string]int `firestore:"events_by_type"`
	ProjectsCompleted int            `firestore:"projects_completed"`
	ProjectsLed       int            `firestore:"projects_led"`
	JoinedAt          time.Time      `firestore:"joined_at"`
	Role              string         `firestore:"role"`
	Tier              string         `firestore:"tier"`
}

type ruleDocument struct {
	ID           string                  `firestore:"id"`
	Kind         string                  `firestore:"kind"`
	Name         string                  `firestore:"name"`
	Description  string                  `firestore:"description"`
	CriteriaType string                  `firestore:"criteria_type"`
	Threshold    int                     `firestore:"threshold"`
	Conditions   map[string]any          `firestore:"conditions"`
	Milestones   []achievement.Milestone `firestore:"milestones"`
	IsActive     bool                    `firestore:"is_active"`
	RewardPoints int                     `firestore:"reward_points"`
	UpdatedAt    time.Time               `firestore:"updated_at"`
}

type milestoneDocument struct {
	RuleID    string    `firestore:"rule_id"`
	Levels    []string  `firestore:"levels"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (r *firestoreRepository) memberRef(memberID string) *firestore.DocumentRef {
	return r.client.Collection(membersCollection).Doc(memberID)
}

func (r *firestoreRepository) GetSnapshot(ctx context.Context, memberID string) (achievement.Snapshot, error) {
	doc, err := r.memberRef(memberID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return achievement.Snapshot{MemberID: memberID}, nil
	}
	if err != nil {
		return achievement.Snapshot{}, err
	}

	var m memberDocument
	if err := doc.DataTo(&m); err != nil {
		return achievement.Snapshot{}, fmt.Errorf("unmarshal member: %w", err)
	}

	snap := achievement.Snapshot{
		MemberID:          memberID,
		Points:            m.PointsTotal,
		EventsAttended:    m.EventsAttended,
		ProjectsCompleted: m.ProjectsCompleted,
		ProjectsLed:       m.ProjectsLed,
		MembershipMonths:  monthsBetween(m.JoinedAt, r.clock.Now()),
		Role:              m.Role,
		Tier:              m.Tier,
	}
	if len(m.EventsByType) > 0 {
		snap.EventsByType = make(map[achievement.EventType]int, len(m.EventsByType))
		for k, v := range m.EventsByType {
			snap.EventsByType[achievement.EventType(k)] = v
		}
	}
	return snap, nil
}

// monthsBetween counts whole calendar months from joined to now.
func monthsBetween(joined, now time.Time) int {
	if joined.IsZero() || now.Before(joined) {
		return 0
	}
	joined, now = joined.UTC(), now.UTC()
	months := (now.Year()-joined.Year())*12 + int(now.Month()) - int(joined.Month())
	if now.Day() < joined.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func (r *firestoreRepository) ListRules(ctx context.Context) ([]achievement.Rule, error) {
	iter := r.client.Collection(rulesCollection).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var rules []achievement.Rule
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rule, err := decodeRule(doc)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *firestoreRepository) GetRule(ctx context.Context, ruleID string) (achievement.Rule, error) {
	doc, err := r.client.Collection(rulesCollection).Doc(ruleID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return achievement.Rule{}, ErrNotFound
	}
	if err != nil {
		return achievement.Rule{}, err
	}
	return decodeRule(doc)
}

func (r *firestoreRepository) SaveRule(ctx context.Context, rule achievement.Rule) error {
	doc := ruleDocument{
		ID:           rule.ID,
		Kind:         string(rule.Kind),
		Name:         rule.Name,
		Description:  rule.Description,
		CriteriaType: string(rule.CriteriaType),
		Threshold:    rule.Threshold,
		Conditions:   rule.Conditions.Map(),
		Milestones:   rule.Milestones,
		IsActive:     rule.IsActive,
		RewardPoints: rule.RewardPoints,
		UpdatedAt:    r.clock.Now(),
	}
	_, err := r.client.Collection(rulesCollection).Doc(rule.ID).Set(ctx, doc)
	return err
}

func decodeRule(doc *firestore.DocumentSnapshot) (achievement.Rule, error) {
	var d ruleDocument
	if err := doc.DataTo(&d); err != nil {
		return achievement.Rule{}, fmt.Errorf("unmarshal rule %s: %w", doc.Ref.ID, err)
	}
	cond, err := achievement.ConditionsFromMap(d.Conditions)
	if err != nil {
		return achievement.Rule{}, fmt.Errorf("rule %s: %w", doc.Ref.ID, err)
	}
	id := d.ID
	if id == "" {
		id = doc.Ref.ID
	}
	return achievement.Rule{
		ID:           id,
		Kind:         achievement.Kind(d.Kind),
		Name:         d.Name,
		Description:  d.Description,
		CriteriaType: achievement.CriteriaType(d.CriteriaType),
		Threshold:    d.Threshold,
		Conditions:   cond,
		Milestones:   d.Milestones,
		IsActive:     d.IsActive,
		RewardPoints: d.RewardPoints,
	}, nil
}

func (r *firestoreRepository) ListAwards(ctx context.Context, memberID string) ([]achievement.AwardRecord, error) {
	iter := r.memberRef(memberID).Collection(awardsCollection).OrderBy("awarded_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	awards := make([]achievement.AwardRecord, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var a achievement.AwardRecord
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("unmarshal award %s: %w", doc.Ref.ID, err)
		}
		awards = append(awards, a)
	}
	return awards, nil
}

// CreateAward writes members/{memberId}/awards/{ruleId}. The rule id is the document id, so
// tx.Create rejects a second award for the same pair even when two transactions race.
func (r *firestoreRepository) CreateAward(ctx context.Context, record achievement.AwardRecord) error {
	if record.MemberID == "" || record.RuleID == "" {
		return errors.New("missing identifiers")
	}

	memberRef := r.memberRef(record.MemberID)
	awardRef := memberRef.Collection(awardsCollection).Doc(record.RuleID)
	now := r.clock.Now()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, getErr := tx.Get(awardRef)
		if getErr == nil {
			return ErrAlreadyAwarded
		}
		if status.Code(getErr) != codes.NotFound {
			return getErr
		}

		credit, err := prepareCredit(tx, memberRef, record.PointsAwarded, now)
		if err != nil {
			return err
		}

		if err := tx.Create(awardRef, record); err != nil {
			return err
		}
		return credit()
	})
	return awardCommitError(err)
}

// awardCommitError maps the commit-time conflict reported by tx.Create to ErrAlreadyAwarded.
// Create only queues the write, so the conflict surfaces from RunTransaction.
func awardCommitError(err error) error {
	if err != nil && status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyAwarded
	}
	return err
}

func (r *firestoreRepository) GetMilestones(ctx context.Context, memberID string) (map[string][]string, error) {
	iter := r.memberRef(memberID).Collection(milestonesCollection).Documents(ctx)
	defer iter.Stop()

	out := make(map[string][]string)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var m milestoneDocument
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("unmarshal milestones %s: %w", doc.Ref.ID, err)
		}
		out[doc.Ref.ID] = m.Levels
	}
	return out, nil
}

func (r *firestoreRepository) RecordMilestones(ctx context.Context, memberID, ruleID string, milestones []achievement.Milestone) ([]achievement.Milestone, error) {
	if len(milestones) == 0 {
		return nil, nil
	}

	memberRef := r.memberRef(memberID)
	ref := memberRef.Collection(milestonesCollection).Doc(ruleID)
	now := r.clock.Now()

	var added []achievement.Milestone
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		added = nil

		var current milestoneDocument
		doc, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if err := doc.DataTo(&current); err != nil {
				return fmt.Errorf("unmarshal milestones: %w", err)
			}
		}

		recorded := make(map[string]struct{}, len(current.Levels))
		for _, level := range current.Levels {
			recorded[level] = struct{}{}
		}
		levels := append([]string(nil), current.Levels...)
		points := 0
		for _, m := range milestones {
			if _, ok := recorded[m.Level]; ok {
				continue
			}
			recorded[m.Level] = struct{}{}
			levels = append(levels, m.Level)
			points += m.PointValue
			added = append(added, m)
		}
		if len(added) == 0 {
			return nil
		}

		credit, err := prepareCredit(tx, memberRef, points, now)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, milestoneDocument{RuleID: ruleID, Levels: levels, UpdatedAt: now}); err != nil {
			return err
		}
		return credit()
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// prepareCredit reads the member document inside tx and returns the write that adds points
// to points_total. Firestore transactions need every read before the first write, so the
// read and the write are split.
func prepareCredit(tx *firestore.Transaction, memberRef *firestore.DocumentRef, points int, now time.Time) (func() error, error) {
	if points <= 0 {
		return func() error { return nil }, nil
	}

	_, err := tx.Get(memberRef)
	if status.Code(err) == codes.NotFound {
		return func() error {
			return tx.Set(memberRef, map[string]any{
				"points_total": points,
				"created_at":   now,
				"updated_at":   now,
			}, firestore.MergeAll)
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return func() error {
		return tx.Update(memberRef, []firestore.Update{
			{Path: "points_total", Value: firestore.Increment(int64(points))},
			{Path: "updated_at", Value: now},
		})
	}, nil
}
