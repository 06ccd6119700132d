// Package catalog loads achievement rule definitions from seed documents.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/memberhub/achievement-service/internal/achievement"
)

// document is the seed file layout. JSON documents are valid YAML and load the same way.
type document struct {
	Rules []ruleEntry `yaml:"rules"`
}

// ruleEntry keeps conditions as an open mapping so that loosely typed values
// (durations written as strings, say) can be coerced before validation.
type ruleEntry struct {
	ID           string                  `yaml:"id"`
	Kind         string                  `yaml:"kind"`
	Name         string                  `yaml:"name"`
	Description  string                  `yaml:"description"`
	CriteriaType string                  `yaml:"criteriaType"`
	Threshold    int                     `yaml:"threshold"`
	Conditions   map[string]any          `yaml:"conditions"`
	Milestones   []achievement.Milestone `yaml:"milestones"`
	IsActive     bool                    `yaml:"isActive"`
	RewardPoints int                     `yaml:"rewardPoints"`
}

// LoadFile reads and validates a seed document from disk.
func LoadFile(path string) (*achievement.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	catalog, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Decode parses a seed document and validates every rule in it.
func Decode(r io.Reader) (*achievement.Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return achievement.NewCatalog(nil)
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	rules := make([]achievement.Rule, 0, len(doc.Rules))
	var errs []error
	for i, entry := range doc.Rules {
		cond, err := achievement.ConditionsFromMap(entry.Conditions)
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %q: %w", i, entry.ID, err))
			continue
		}
		rules = append(rules, achievement.Rule{
			ID:           entry.ID,
			Kind:         achievement.Kind(entry.Kind),
			Name:         entry.Name,
			Description:  entry.Description,
			CriteriaType: achievement.CriteriaType(entry.CriteriaType),
			Threshold:    entry.Threshold,
			Conditions:   cond,
			Milestones:   entry.Milestones,
			IsActive:     entry.IsActive,
			RewardPoints: entry.RewardPoints,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return achievement.NewCatalog(rules)
}

// RuleWriter persists a rule definition.
type RuleWriter interface {
	PutRule(ctx context.Context, rule achievement.Rule) (*achievement.Rule, error)
}

// Seed writes every rule of catalog through w and returns how many were written.
func Seed(ctx context.Context, w RuleWriter, catalog *achievement.Catalog) (int, error) {
	written := 0
	for _, rule := range catalog.Rules() {
		if _, err := w.PutRule(ctx, rule); err != nil {
			return written, fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
		written++
	}
	return written, nil
}
