package award

import (
	"context"
	"sort"
	"sync"

	"github.com/memberhub/achievement-service/internal/achievement"
)

// MemoryRepository keeps everything in process memory. It is intended for local development
// and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	members    map[string]achievement.Snapshot
	rules      map[string]achievement.Rule
	awards     map[string]map[string]achievement.AwardRecord // memberID -> ruleID -> award
	milestones map[string]map[string][]string                // memberID -> ruleID -> levels
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		members:    make(map[string]achievement.Snapshot),
		rules:      make(map[string]achievement.Rule),
		awards:     make(map[string]map[string]achievement.AwardRecord),
		milestones: make(map[string]map[string][]string),
	}
}

// PutSnapshot stores the activity counters for a member.
func (r *MemoryRepository) PutSnapshot(snap achievement.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[snap.MemberID] = cloneSnapshot(snap)
}

// GetSnapshot returns a zero snapshot for members that have no recorded activity.
func (r *MemoryRepository) GetSnapshot(_ context.Context, memberID string) (achievement.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.members[memberID]
	if !ok {
		return achievement.Snapshot{MemberID: memberID}, nil
	}
	return cloneSnapshot(snap), nil
}

func (r *MemoryRepository) ListRules(_ context.Context) ([]achievement.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]achievement.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) GetRule(_ context.Context, ruleID string) (achievement.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[ruleID]
	if !ok {
		return achievement.Rule{}, ErrNotFound
	}
	return rule, nil
}

func (r *MemoryRepository) SaveRule(_ context.Context, rule achievement.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule.Milestones = append([]achievement.Milestone(nil), rule.Milestones...)
	r.rules[rule.ID] = rule
	return nil
}

func (r *MemoryRepository) ListAwards(_ context.Context, memberID string) ([]achievement.AwardRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byRule := r.awards[memberID]
	out := make([]achievement.AwardRecord, 0, len(byRule))
	for _, a := range byRule {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].RuleID < out[j].RuleID
		}
		return out[i].AwardedAt.Before(out[j].AwardedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CreateAward(_ context.Context, record achievement.AwardRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byRule, ok := r.awards[record.MemberID]
	if !ok {
		byRule = make(map[string]achievement.AwardRecord)
		r.awards[record.MemberID] = byRule
	}
	if _, exists := byRule[record.RuleID]; exists {
		return ErrAlreadyAwarded
	}

	record.CompletedMilestoneLevels = append([]string(nil), record.CompletedMilestoneLevels...)
	byRule[record.RuleID] = record
	r.creditLocked(record.MemberID, record.PointsAwarded)
	return nil
}

func (r *MemoryRepository) GetMilestones(_ context.Context, memberID string) (map[string][]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.milestones[memberID]))
	for ruleID, levels := range r.milestones[memberID] {
		out[ruleID] = append([]string(nil), levels...)
	}
	return out, nil
}

func (r *MemoryRepository) RecordMilestones(_ context.Context, memberID, ruleID string, milestones []achievement.Milestone) ([]achievement.Milestone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byRule, ok := r.milestones[memberID]
	if !ok {
		byRule = make(map[string][]string)
		r.milestones[memberID] = byRule
	}

	recorded := make(map[string]struct{}, len(byRule[ruleID]))
	for _, level := range byRule[ruleID] {
		recorded[level] = struct{}{}
	}

	var added []achievement.Milestone
	for _, m := range milestones {
		if _, ok := recorded[m.Level]; ok {
			continue
		}
		recorded[m.Level] = struct{}{}
		byRule[ruleID] = append(byRule[ruleID], m.Level)
		r.creditLocked(memberID, m.PointValue)
		added = append(added, m)
	}
	return added, nil
}

func (r *MemoryRepository) creditLocked(memberID string, points int) {
	if points == 0 {
		return
	}
	snap, ok := r.members[memberID]
	if !ok {
		snap = achievement.Snapshot{MemberID: memberID}
	}
	snap.Points += points
	r.members[memberID] = snap
}

func cloneSnapshot(snap achievement.Snapshot) achievement.Snapshot {
	if snap.EventsByType != nil {
		byType := make(map[achievement.EventType]int, len(snap.EventsByType))
		for k, v := range snap.EventsByType {
			byType[k] = v
		}
		snap.EventsByType = byType
	}
	return snap
}

var _ Repository = (*MemoryRepository)(nil)
