package orchestrator

import (
	"sort"

	"github.com/dyluth/warren/internal/config"
)

// Rule maps a task type to its preferred agents.
type Rule struct {
	TaskType             string
	PrimaryAgentID       string
	SupportingAgentIDs   []string
	RequiredCapabilities []string
	Priority             int
}

// RuleSet is the immutable coordination rule table.
type RuleSet struct {
	rules map[string]Rule
}

// NewRuleSet builds the rule table from validated configuration.
func NewRuleSet(cfg *config.WarrenConfig) *RuleSet {
	rs := &RuleSet{rules: make(map[string]Rule, len(cfg.Rules))}
	for taskType, r := range cfg.Rules {
		rs.rules[taskType] = Rule{
			TaskType:             taskType,
			PrimaryAgentID:       r.Primary,
			SupportingAgentIDs:   append([]string(nil), r.Supporting...),
			RequiredCapabilities: append([]string(nil), r.RequiredCapabilities...),
			Priority:             r.Priority,
		}
	}
	return rs
}

// Lookup returns the rule for taskType. The returned rule's slices are copies.
func (rs *RuleSet) Lookup(taskType string) (Rule, bool) {
	r, ok := rs.rules[taskType]
	if !ok {
		return Rule{}, false
	}
	r.SupportingAgentIDs = append([]string(nil), r.SupportingAgentIDs...)
	r.RequiredCapabilities = append([]string(nil), r.RequiredCapabilities...)
	return r, true
}

// Types returns every task type with a rule, sorted.
func (rs *RuleSet) Types() []string {
	types := make([]string, 0, len(rs.rules))
	for t := range rs.rules {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
