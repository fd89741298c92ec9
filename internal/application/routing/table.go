// Package routing holds the static per-phase assignment routing table. The
// table is built from configuration at startup; the router consults it on
// every phase/version transition and never falls back to conditional logic.
package routing

import (
	"fmt"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
)

// Rule describes who is assigned what, and how urgently, when a transition
// fires in a phase.
type Rule struct {
	FromRole entity.Role
	ToRole   entity.Role
	Type     entity.AssignmentType
	SLAHours int
	Priority entity.Priority
}

// Table maps (phase, transition) to a routing rule.
type Table struct {
	rules map[entity.PhaseName]map[event.Type]Rule
}

// NewTable creates an empty routing table.
func NewTable() *Table {
	return &Table{
		rules: make(map[entity.PhaseName]map[event.Type]Rule),
	}
}

// Set registers a rule for a (phase, transition) pair, replacing any
// previous rule for the same pair.
func (t *Table) Set(phase entity.PhaseName, transition event.Type, rule Rule) error {
	if !phase.IsValid() {
		return fmt.Errorf("unknown phase %q in routing rule", phase)
	}
	if !transition.IsValid() {
		return fmt.Errorf("unknown transition %q in routing rule", transition)
	}
	if !rule.Priority.IsValid() {
		return fmt.Errorf("unknown priority %q in routing rule for %s/%s", rule.Priority, phase, transition)
	}
	if rule.SLAHours <= 0 {
		return fmt.Errorf("non-positive sla_hours in routing rule for %s/%s", phase, transition)
	}

	if t.rules[phase] == nil {
		t.rules[phase] = make(map[event.Type]Rule)
	}
	t.rules[phase][transition] = rule
	return nil
}

// Lookup returns the rule for a (phase, transition) pair. Transitions without
// a rule produce no assignment.
func (t *Table) Lookup(phase entity.PhaseName, transition event.Type) (Rule, bool) {
	rule, ok := t.rules[phase][transition]
	return rule, ok
}

// Override is a configured replacement for one routing table entry.
type Override struct {
	Phase          string
	Transition     string
	FromRole       string
	ToRole         string
	AssignmentType string
	SLAHours       int
	Priority       string
}

// Build returns the default table with configuration overrides applied.
// An override with zero SLAHours inherits the default window.
func Build(defaultSLAHours int, overrides []Override) (*Table, error) {
	t := DefaultTable(defaultSLAHours)

	for _, o := range overrides {
		sla := o.SLAHours
		if sla == 0 {
			sla = defaultSLAHours
		}
		rule := Rule{
			FromRole: entity.Role(o.FromRole),
			ToRole:   entity.Role(o.ToRole),
			Type:     entity.AssignmentType(o.AssignmentType),
			SLAHours: sla,
			Priority: entity.Priority(o.Priority),
		}
		if err := t.Set(entity.PhaseName(o.Phase), event.Type(o.Transition), rule); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// DefaultTable returns the built-in routing table: every phase routes kickoff
// work to the tester, submitted versions to the report owner for review,
// rejections back to the tester, and approvals to the test executive for
// sign-off. Configuration overrides individual entries.
func DefaultTable(defaultSLAHours int) *Table {
	t := NewTable()

	defaults := []struct {
		transition event.Type
		rule       Rule
	}{
		{event.TypePhaseStarted, Rule{
			FromRole: entity.RoleSystem,
			ToRole:   entity.RoleTester,
			Type:     entity.AssignmentPhaseKickoff,
			SLAHours: defaultSLAHours,
			Priority: entity.PriorityMedium,
		}},
		{event.TypeVersionSubmitted, Rule{
			FromRole: entity.RoleTester,
			ToRole:   entity.RoleReportOwner,
			Type:     entity.AssignmentOwnerReview,
			SLAHours: defaultSLAHours,
			Priority: entity.PriorityHigh,
		}},
		{event.TypeVersionRejected, Rule{
			FromRole: entity.RoleReportOwner,
			ToRole:   entity.RoleTester,
			Type:     entity.AssignmentRevisionRequest,
			SLAHours: defaultSLAHours,
			Priority: entity.PriorityHigh,
		}},
		{event.TypeVersionApproved, Rule{
			FromRole: entity.RoleReportOwner,
			ToRole:   entity.RoleTestExecutive,
			Type:     entity.AssignmentPhaseSignoff,
			SLAHours: defaultSLAHours,
			Priority: entity.PriorityMedium,
		}},
	}

	for _, phase := range entity.PhaseOrder {
		for _, d := range defaults {
			// Set cannot fail for built-in values.
			_ = t.Set(phase, d.transition, d.rule)
		}
	}

	return t
}
