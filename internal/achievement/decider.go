package achievement

// Outcome is the top-level result of an eligibility decision.
type Outcome string

const (
	// OutcomeAlreadyAwarded means an award exists for (rule, member); nothing to do.
	OutcomeAlreadyAwarded Outcome = "already_awarded"
	// OutcomeNotEligible means the rule is inactive or its criteria are not met yet.
	OutcomeNotEligible Outcome = "not_eligible"
	// OutcomeEligible means the caller should persist a new award now.
	OutcomeEligible Outcome = "eligible"
)

// Decision is the outcome of DecideEligibility plus what the caller needs to act on it.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	RuleID   string  `json:"ruleId"`
	MemberID string  `json:"memberId"`
	// Progress is nil when the rule was not evaluated (inactive rules).
	Progress *ProgressResult `json:"progress,omitempty"`
	// NewMilestones lists milestones completed now but absent from the prior record,
	// in catalog order. It is independent of Outcome.
	NewMilestones []Milestone `json:"newMilestones,omitempty"`
}

// Eligible reports whether the caller should create an award.
func (d Decision) Eligible() bool { return d.Outcome == OutcomeEligible }

// DecideEligibility decides whether rule should be awarded to the snapshot's member right
// now. existing is the member's award for this rule, if any; priorMilestones are the
// milestone levels already paid out. The function has no revoke path: an existing award is
// always reported as AlreadyAwarded whatever the current definition of the rule says.
func DecideEligibility(rule Rule, snap Snapshot, existing *AwardRecord, priorMilestones []string) Decision {
	d := Decision{RuleID: rule.ID, MemberID: snap.MemberID}

	if !rule.IsActive {
		if existing != nil {
			d.Outcome = OutcomeAlreadyAwarded
			return d
		}
		d.Outcome = OutcomeNotEligible
		return d
	}

	progress := EvaluateProgress(rule, snap)
	d.Progress = &progress
	d.NewMilestones = newMilestones(rule.Milestones, progress.CompletedMilestones, priorMilestones)

	switch {
	case existing != nil:
		d.Outcome = OutcomeAlreadyAwarded
	case progress.Met && progress.Percentage == 100:
		d.Outcome = OutcomeEligible
	default:
		d.Outcome = OutcomeNotEligible
	}
	return d
}

// newMilestones returns completed levels not present in prior, preserving catalog order.
func newMilestones(milestones []Milestone, completed, prior []string) []Milestone {
	if len(completed) == 0 {
		return nil
	}
	recorded := make(map[string]struct{}, len(prior))
	for _, level := range prior {
		recorded[level] = struct{}{}
	}
	done := make(map[string]struct{}, len(completed))
	for _, level := range completed {
		done[level] = struct{}{}
	}

	var fresh []Milestone
	for _, m := range milestones {
		if _, ok := done[m.Level]; !ok {
			continue
		}
		if _, ok := recorded[m.Level]; ok {
			continue
		}
		fresh = append(fresh, m)
	}
	return fresh
}

// MilestoneLevels extracts the levels of ms in order.
func MilestoneLevels(ms []Milestone) []string {
	levels := make([]string, 0, len(ms))
	for _, m := range ms {
		levels = append(levels, m.Level)
	}
	return levels
}
