package achievement

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRuleDefinition indicates a rule failed validation and must not reach evaluation.
var ErrInvalidRuleDefinition = errors.New("invalid rule definition")

// ErrUnknownRule indicates a rule id is not part of the catalog.
var ErrUnknownRule = errors.New("unknown rule")

var validate = validator.New()

// Validate checks a rule's static invariants. The returned error wraps
// ErrInvalidRuleDefinition and lists every problem found.
func (r Rule) Validate() error {
	var problems []string

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %s", ErrInvalidRuleDefinition, err.Error())
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if d := r.Conditions.MembershipDuration; d != nil && *d < 0 {
		problems = append(problems, "conditions.membershipDuration must not be negative")
	}

	seen := make(map[string]struct{}, len(r.Milestones))
	for i, m := range r.Milestones {
		if i > 0 && m.Threshold <= r.Milestones[i-1].Threshold {
			problems = append(problems, fmt.Sprintf("milestones[%d].threshold must be greater than %d", i, r.Milestones[i-1].Threshold))
		}
		if m.Level == "" {
			continue
		}
		if _, dup := seen[m.Level]; dup {
			problems = append(problems, fmt.Sprintf("milestones[%d].level %q is duplicated", i, m.Level))
		}
		seen[m.Level] = struct{}{}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRuleDefinition, strings.Join(problems, "; "))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Rule.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// Catalog is a validated, read-only set of rules keyed by id.
type Catalog struct {
	rules map[string]Rule
	order []string
}

// NewCatalog validates every rule and builds a catalog. Invalid or duplicate rules reject
// the whole catalog.
func NewCatalog(rules []Rule) (*Catalog, error) {
	c := &Catalog{rules: make(map[string]Rule, len(rules))}
	var errs []error
	for _, rule := range rules {
		rule = normalize(rule)
		if err := rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", rule.ID, err))
			continue
		}
		if _, dup := c.rules[rule.ID]; dup {
			errs = append(errs, fmt.Errorf("rule %q: %w: duplicate id", rule.ID, ErrInvalidRuleDefinition))
			continue
		}
		c.rules[rule.ID] = rule
		c.order = append(c.order, rule.ID)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Strings(c.order)
	return c, nil
}

// Get returns the rule with the given id.
func (c *Catalog) Get(id string) (Rule, bool) {
	rule, ok := c.rules[id]
	return rule, ok
}

// Rules returns every rule ordered by id.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.rules[id])
	}
	return out
}

// Active returns the rules eligible for evaluation, ordered by id.
func (c *Catalog) Active() []Rule {
	out := make([]Rule, 0, len(c.order))
	for _, id := range c.order {
		if rule := c.rules[id]; rule.IsActive {
			out = append(out, rule)
		}
	}
	return out
}

// Replace returns a new catalog with rule added or swapped in. The receiver is unchanged.
func (c *Catalog) Replace(rule Rule) (*Catalog, error) {
	rules := make([]Rule, 0, len(c.order)+1)
	for _, id := range c.order {
		if id != rule.ID {
			rules = append(rules, c.rules[id])
		}
	}
	return NewCatalog(append(rules, rule))
}

// Len reports the number of rules.
func (c *Catalog) Len() int {
	return len(c.order)
}

func normalize(rule Rule) Rule {
	rule.ID = strings.TrimSpace(rule.ID)
	if rule.Kind == "" {
		rule.Kind = KindAchievement
	}
	if len(rule.Milestones) > 0 {
		ms := make([]Milestone, len(rule.Milestones))
		copy(ms, rule.Milestones)
		rule.Milestones = ms
	}
	return rule
}

// Normalize applies defaults and validates a single rule, returning the stored form.
func Normalize(rule Rule) (Rule, error) {
	rule = normalize(rule)
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}
