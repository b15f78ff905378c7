// Package models defines the core domain models for the regulatory
// data-governance lifecycle: cycles, workflow steps, human tasks, issues and
// audit entries.
package models

import (
	"fmt"
	"time"
)

// AgentType identifies one of the seven processing units coordinated by the
// orchestrator. The enumeration is closed; every workflow cycle gets exactly
// one step per agent type.
type AgentType string

const (
	AgentRegulatoryIntelligence AgentType = "regulatory_intelligence"
	AgentDataRequirements       AgentType = "data_requirements"
	AgentCDEIdentification      AgentType = "cde_identification"
	AgentDataQualityRule        AgentType = "data_quality_rule"
	AgentLineageMapping         AgentType = "lineage_mapping"
	AgentIssueManagement        AgentType = "issue_management"
	AgentDocumentation          AgentType = "documentation"
)

// DependencyGraph returns the static adjacency map from an agent type to the
// agent types that must have completed within the same cycle before it may
// run. Callers get a fresh copy and may mutate it freely.
func DependencyGraph() map[AgentType][]AgentType {
	return map[AgentType][]AgentType{
		AgentRegulatoryIntelligence: {},
		AgentDataRequirements:       {AgentRegulatoryIntelligence},
		AgentCDEIdentification:      {AgentDataRequirements},
		AgentLineageMapping:         {AgentDataRequirements},
		AgentDataQualityRule:        {AgentCDEIdentification},
		AgentIssueManagement:        {AgentDataQualityRule},
		AgentDocumentation:          {AgentDataQualityRule, AgentLineageMapping, AgentIssueManagement},
	}
}

// AgentTypes returns all agent types in a valid execution order (every type
// appears after its dependencies).
func AgentTypes() []AgentType {
	order, err := topologicalOrder(DependencyGraph())
	if err != nil {
		// The built-in graph is validated by tests; reaching this means a
		// programming error in the table above.
		panic(err)
	}

	return order
}

// IsValidAgentType reports whether t is a member of the closed enumeration.
func IsValidAgentType(t AgentType) bool {
	_, ok := DependencyGraph()[t]

	return ok
}

// ValidateDependencyGraph checks that every referenced dependency is a known
// agent type and that the graph is acyclic. Intended to run at startup before
// any cycle is created.
func ValidateDependencyGraph(graph map[AgentType][]AgentType) error {
	for agent, deps := range graph {
		for _, dep := range deps {
			if _, ok := graph[dep]; !ok {
				return fmt.Errorf("agent %q depends on unknown agent %q", agent, dep)
			}

			if dep == agent {
				return fmt.Errorf("agent %q depends on itself", agent)
			}
		}
	}

	if _, err := topologicalOrder(graph); err != nil {
		return err
	}

	return nil
}

// topologicalOrder runs Kahn's algorithm over the graph. A non-nil error
// means the graph contains a cycle.
func topologicalOrder(graph map[AgentType][]AgentType) ([]AgentType, error) {
	indegree := make(map[AgentType]int, len(graph))
	dependents := make(map[AgentType][]AgentType, len(graph))

	for agent, deps := range graph {
		indegree[agent] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], agent)
		}
	}

	queue := make([]AgentType, 0, len(graph))

	for agent, deg := range indegree {
		if deg == 0 {
			queue = append(queue, agent)
		}
	}

	order := make([]AgentType, 0, len(graph))

	for len(queue) > 0 {
		// Pick deterministically so the order is stable across runs.
		next := queue[0]
		for _, candidate := range queue {
			if candidate < next {
				next = candidate
			}
		}

		remaining := queue[:0]

		for _, candidate := range queue {
			if candidate != next {
				remaining = append(remaining, candidate)
			}
		}

		queue = remaining
		order = append(order, next)

		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(graph) {
		return nil, fmt.Errorf("dependency graph contains a cycle (%d of %d agents orderable)", len(order), len(graph))
	}

	return order, nil
}

// AgentContext carries the execution context handed to an agent unit.
type AgentContext struct {
	CycleID   string         `json:"cycle_id"  validate:"required"`
	ReportID  string         `json:"report_id" validate:"required"`
	Phase     AgentType      `json:"phase"`
	Artifacts map[string]any `json:"artifacts,omitempty"`
}

// AgentResult is the uniform completion signal produced by an agent unit. The
// orchestrator never inspects agent internals, only this structure.
type AgentResult struct {
	Success    bool           `json:"success"`
	AgentType  AgentType      `json:"agent_type"`
	Artifacts  map[string]any `json:"artifacts,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}
