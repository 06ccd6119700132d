package award

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memberhub/achievement-service/internal/achievement"
)

const defaultBatchConcurrency = 8

// Options configures the service. Zero values select production defaults.
type Options struct {
	Clock            Clock
	IDs              IDGenerator
	Guard            ClaimGuard
	Logger           *zap.Logger
	BatchConcurrency int
	// NewBackOff builds the retry policy for ledger writes.
	NewBackOff func() backoff.BackOff
}

type service struct {
	repo             Repository
	clock            Clock
	ids              IDGenerator
	guard            ClaimGuard
	logger           *zap.Logger
	batchConcurrency int
	newBackOff       func() backoff.BackOff
}

// NewService creates a new award service.
func NewService(repo Repository, opts Options) (Service, error) {
	if repo == nil {
		return nil, errors.New("award repository is required")
	}
	s := &service{
		repo:             repo,
		clock:            opts.Clock,
		ids:              opts.IDs,
		guard:            opts.Guard,
		logger:           opts.Logger,
		batchConcurrency: opts.BatchConcurrency,
		newBackOff:       opts.NewBackOff,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.ids == nil {
		s.ids = UUIDGenerator{}
	}
	if s.guard == nil {
		s.guard = NoopClaimGuard{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.batchConcurrency <= 0 {
		s.batchConcurrency = defaultBatchConcurrency
	}
	if s.newBackOff == nil {
		s.newBackOff = defaultBackOff
	}
	return s, nil
}

func (s *service) ListRules(ctx context.Context) ([]achievement.Rule, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	catalog, err := s.buildCatalog(rules)
	if err != nil {
		return nil, err
	}
	return catalog.Rules(), nil
}

func (s *service) GetRule(ctx context.Context, ruleID string) (*achievement.Rule, error) {
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return nil, ErrNotFound
	}
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// PutRule creates or replaces a rule definition. Awards already granted for the rule are
// left exactly as they are.
func (s *service) PutRule(ctx context.Context, rule achievement.Rule) (*achievement.Rule, error) {
	normalized, err := achievement.Normalize(rule)
	if err != nil {
		return nil, err
	}
	if err := s.retry(ctx, "save_rule", func() error {
		return s.repo.SaveRule(ctx, normalized)
	}); err != nil {
		return nil, fmt.Errorf("save rule %s: %w", normalized.ID, err)
	}
	s.logger.Info("rule saved",
		zap.String("ruleId", normalized.ID),
		zap.Bool("active", normalized.IsActive))
	return &normalized, nil
}

func (s *service) GetProgress(ctx context.Context, memberID string) (*ProgressResponse, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, ErrMissingMemberID
	}

	state, err := s.load(ctx, memberID)
	if err != nil {
		return nil, err
	}

	resp := &ProgressResponse{
		MemberID: memberID,
		Points:   state.snapshot.Points,
		Rules:    make([]RuleStatus, 0, state.catalog.Len()),
	}
	for _, rule := range state.catalog.Active() {
		existing := state.existingAward(rule.ID)
		prior := state.milestones[rule.ID]
		d := achievement.DecideEligibility(rule, state.snapshot, existing, prior)

		status := RuleStatus{
			RuleID:             rule.ID,
			Kind:               rule.Kind,
			Name:               rule.Name,
			Description:        rule.Description,
			Outcome:            d.Outcome,
			Progress:           *d.Progress,
			Awarded:            existing != nil,
			RecordedMilestones: append([]string{}, prior...),
		}
		if existing != nil {
			awardedAt := existing.AwardedAt
			status.AwardedAt = &awardedAt
		}
		resp.Rules = append(resp.Rules, status)
	}
	return resp, nil
}

func (s *service) CheckAwards(ctx context.Context, memberID string) (*CheckResult, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, ErrMissingMemberID
	}

	state, err := s.load(ctx, memberID)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		MemberID:   memberID,
		Granted:    []achievement.AwardRecord{},
		Milestones: []MilestonePayout{},
	}
	for _, rule := range state.catalog.Active() {
		d := achievement.DecideEligibility(rule, state.snapshot, state.existingAward(rule.ID), state.milestones[rule.ID])

		if d.Eligible() {
			record, outcome, err := s.grant(ctx, rule, d)
			if err != nil {
				return s.partial(result, fmt.Errorf("grant %s: %w", rule.ID, err))
			}
			switch outcome {
			case grantCreated:
				result.Granted = append(result.Granted, record)
				result.PointsAwarded += record.PointsAwarded
			case grantHeld:
				result.Skipped = append(result.Skipped, rule.ID)
			}
		}

		if len(d.NewMilestones) == 0 {
			continue
		}
		var added []achievement.Milestone
		if err := s.retry(ctx, "record_milestones", func() error {
			var recErr error
			added, recErr = s.repo.RecordMilestones(ctx, memberID, rule.ID, d.NewMilestones)
			return recErr
		}); err != nil {
			return s.partial(result, fmt.Errorf("record milestones %s: %w", rule.ID, err))
		}
		for _, m := range added {
			result.Milestones = append(result.Milestones, MilestonePayout{
				RuleID:     rule.ID,
				Level:      m.Level,
				PointValue: m.PointValue,
				Reward:     m.Reward,
			})
			result.PointsAwarded += m.PointValue
		}
		if len(added) > 0 {
			s.logger.Info("milestones recorded",
				zap.String("memberId", memberID),
				zap.String("ruleId", rule.ID),
				zap.Strings("levels", achievement.MilestoneLevels(added)))
		}
	}
	return result, nil
}

// partial returns what was persisted before err alongside err. Those grants are durable and
// will read as already awarded on the next check.
func (s *service) partial(result *CheckResult, err error) (*CheckResult, error) {
	if len(result.Granted) > 0 || len(result.Milestones) > 0 {
		ruleIDs := make([]string, 0, len(result.Granted))
		for _, rec := range result.Granted {
			ruleIDs = append(ruleIDs, rec.RuleID)
		}
		s.logger.Warn("award check stopped after partial grant",
			zap.String("memberId", result.MemberID),
			zap.Strings("grantedRuleIds", ruleIDs),
			zap.Int("milestones", len(result.Milestones)),
			zap.Int("pointsAwarded", result.PointsAwarded),
			zap.Error(err))
	}
	return result, err
}

func (s *service) CheckAwardsBatch(ctx context.Context, memberIDs []string) ([]*CheckResult, error) {
	ids := make([]string, 0, len(memberIDs))
	seen := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, ErrMissingMemberID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	results := make([]*CheckResult, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.CheckAwards(ctx, id)
			if err != nil {
				return fmt.Errorf("member %s: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *service) ListAwards(ctx context.Context, memberID string) ([]achievement.AwardRecord, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, ErrMissingMemberID
	}
	awards, err := s.repo.ListAwards(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	sort.SliceStable(awards, func(i, j int) bool {
		return awards[i].AwardedAt.Before(awards[j].AwardedAt)
	})
	return awards, nil
}

type grantOutcome int

const (
	grantCreated grantOutcome = iota
	grantExists
	grantHeld
)

func (s *service) grant(ctx context.Context, rule achievement.Rule, d achievement.Decision) (achievement.AwardRecord, grantOutcome, error) {
	memberID := d.MemberID
	log := s.logger.With(zap.String("memberId", memberID), zap.String("ruleId", rule.ID))

	token, acquired, err := s.guard.Acquire(ctx, rule.ID, memberID)
	switch {
	case err != nil:
		// The ledger create is conditional, so a missing guard only costs contention.
		log.Warn("claim guard unavailable", zap.Error(err))
	case !acquired:
		log.Debug("claim held by another checker")
		return achievement.AwardRecord{}, grantHeld, nil
	default:
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), rule.ID, memberID, token); err != nil {
				log.Warn("release claim failed", zap.Error(err))
			}
		}()
	}

	record := achievement.AwardRecord{
		ID:                       s.ids.NewID(),
		RuleID:                   rule.ID,
		MemberID:                 memberID,
		AwardedAt:                s.clock.Now(),
		Reason:                   awardReason(rule, *d.Progress),
		CompletedMilestoneLevels: append([]string{}, d.Progress.CompletedMilestones...),
		PointsAwarded:            rule.RewardPoints,
	}

	err = s.retry(ctx, "create_award", func() error {
		return s.repo.CreateAward(ctx, record)
	})
	if errors.Is(err, ErrAlreadyAwarded) {
		log.Info("award already present")
		return achievement.AwardRecord{}, grantExists, nil
	}
	if err != nil {
		return achievement.AwardRecord{}, 0, err
	}

	log.Info("award granted",
		zap.String("awardId", record.ID),
		zap.Int("pointsAwarded", record.PointsAwarded))
	return record, grantCreated, nil
}

func awardReason(rule achievement.Rule, progress achievement.ProgressResult) string {
	return fmt.Sprintf("%s reached %d/%d", rule.CriteriaType, progress.CurrentValue, progress.TargetValue)
}

// buildCatalog drops stored rules that no longer validate instead of failing every member.
func (s *service) buildCatalog(rules []achievement.Rule) (*achievement.Catalog, error) {
	valid := make([]achievement.Rule, 0, len(rules))
	for _, rule := range rules {
		if _, err := achievement.Normalize(rule); err != nil {
			s.logger.Warn("skipping invalid stored rule", zap.String("ruleId", rule.ID), zap.Error(err))
			continue
		}
		valid = append(valid, rule)
	}
	catalog, err := achievement.NewCatalog(valid)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return catalog, nil
}

type memberState struct {
	snapshot   achievement.Snapshot
	catalog    *achievement.Catalog
	awards     map[string]achievement.AwardRecord
	milestones map[string][]string
}

func (m *memberState) existingAward(ruleID string) *achievement.AwardRecord {
	record, ok := m.awards[ruleID]
	if !ok {
		return nil
	}
	return &record
}

func (s *service) load(ctx context.Context, memberID string) (*memberState, error) {
	var (
		state  = &memberState{}
		rules  []achievement.Rule
		awards []achievement.AwardRecord
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := s.repo.GetSnapshot(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		snap.MemberID = memberID
		state.snapshot = snap
		return nil
	})

	g.Go(func() error {
		r, err := s.repo.ListRules(ctx)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		rules = r
		return nil
	})

	g.Go(func() error {
		a, err := s.repo.ListAwards(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load awards: %w", err)
		}
		awards = a
		return nil
	})

	g.Go(func() error {
		m, err := s.repo.GetMilestones(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load milestones: %w", err)
		}
		state.milestones = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog, err := s.buildCatalog(rules)
	if err != nil {
		return nil, err
	}
	state.catalog = catalog

	state.awards = make(map[string]achievement.AwardRecord, len(awards))
	for _, a := range awards {
		state.awards[a.RuleID] = a
	}
	if state.milestones == nil {
		state.milestones = map[string][]string{}
	}
	return state, nil
}
