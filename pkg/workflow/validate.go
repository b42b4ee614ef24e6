// Package workflow validates policy workflow graphs before activation.
package workflow

import (
	"fmt"
	"sort"

	"github.com/finwatch/sentinel/pkg/models"
)

// GraphValidationError reports why a workflow definition cannot be activated.
type GraphValidationError struct {
	Reason string
}

func (e *GraphValidationError) Error() string {
	return "graph validation failed: " + e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &GraphValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a workflow definition for structural soundness: exactly
// one start node, all edge endpoints present, acyclicity, condition branch
// labels exactly covering the declared branch set, and terminal nodes having
// no outgoing edges. Unreachable nodes are reported as warnings, not errors.
// A policy must pass Validate before it can transition to active.
func Validate(def *models.WorkflowDefinition) ([]string, error) {
	if def == nil || len(def.Nodes) == 0 {
		return nil, validationErrorf("workflow has no nodes")
	}

	nodesByID := make(map[string]*models.Node, len(def.Nodes))

	var startID string

	for _, node := range def.Nodes {
		if node.ID == "" {
			return nil, validationErrorf("node with empty id")
		}

		if _, dup := nodesByID[node.ID]; dup {
			return nil, validationErrorf("duplicate node id %q", node.ID)
		}

		nodesByID[node.ID] = node

		if node.Kind == models.NodeKindStart {
			if startID != "" {
				return nil, validationErrorf("multiple start nodes: %q and %q", startID, node.ID)
			}

			startID = node.ID
		}
	}

	if startID == "" {
		return nil, validationErrorf("no start node")
	}

	outgoing := make(map[string][]*models.Edge)

	for _, edge := range def.Edges {
		if _, ok := nodesByID[edge.SourceNodeID]; !ok {
			return nil, validationErrorf("edge %q references unknown source node %q", edge.ID, edge.SourceNodeID)
		}

		if _, ok := nodesByID[edge.TargetNodeID]; !ok {
			return nil, validationErrorf("edge %q references unknown target node %q", edge.ID, edge.TargetNodeID)
		}

		outgoing[edge.SourceNodeID] = append(outgoing[edge.SourceNodeID], edge)
	}

	for _, node := range def.Nodes {
		edges := outgoing[node.ID]

		switch {
		case node.Kind.IsTerminal():
			if len(edges) > 0 {
				return nil, validationErrorf("terminal node %q has outgoing edges", node.ID)
			}
		case node.Kind == models.NodeKindCondition:
			if err := validateBranches(node, edges); err != nil {
				return nil, err
			}
		default:
			if len(edges) > 1 {
				return nil, validationErrorf("node %q has %d outgoing edges, expected at most one", node.ID, len(edges))
			}
		}
	}

	if err := checkAcyclic(nodesByID, def.Edges); err != nil {
		return nil, err
	}

	return unreachableWarnings(startID, nodesByID, outgoing), nil
}

// validateBranches checks that a condition node's outgoing edge labels
// exactly cover its declared branch set, with no duplicates.
func validateBranches(node *models.Node, edges []*models.Edge) error {
	cfg, ok := node.Config.(models.ConditionConfig)
	if !ok {
		return validationErrorf("condition node %q has no condition config", node.ID)
	}

	declared := cfg.BranchLabels()
	if len(declared) == 0 {
		return validationErrorf("condition node %q declares no branches", node.ID)
	}

	declaredSet := make(map[string]bool, len(declared))

	for _, label := range declared {
		if label == "" {
			return validationErrorf("condition node %q declares an empty branch label", node.ID)
		}

		if declaredSet[label] {
			return validationErrorf("condition node %q declares duplicate branch %q", node.ID, label)
		}

		declaredSet[label] = true
	}

	seen := make(map[string]bool, len(edges))

	for _, edge := range edges {
		if edge.BranchLabel == "" {
			return validationErrorf("edge %q leaving condition node %q has no branch label", edge.ID, node.ID)
		}

		if !declaredSet[edge.BranchLabel] {
			return validationErrorf("edge %q carries undeclared branch %q for condition node %q", edge.ID, edge.BranchLabel, node.ID)
		}

		if seen[edge.BranchLabel] {
			return validationErrorf("condition node %q has duplicate edge for branch %q", node.ID, edge.BranchLabel)
		}

		seen[edge.BranchLabel] = true
	}

	for label := range declaredSet {
		if !seen[label] {
			return validationErrorf("condition node %q has no edge for declared branch %q", node.ID, label)
		}
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm; any leftover node means a cycle.
func checkAcyclic(nodesByID map[string]*models.Node, edges []*models.Edge) error {
	indegree := make(map[string]int, len(nodesByID))
	adjacency := make(map[string][]string)

	for id := range nodesByID {
		indegree[id] = 0
	}

	for _, edge := range edges {
		adjacency[edge.SourceNodeID] = append(adjacency[edge.SourceNodeID], edge.TargetNodeID)
		indegree[edge.TargetNodeID]++
	}

	queue := make([]string, 0, len(nodesByID))

	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(nodesByID) {
		return validationErrorf("workflow graph contains a cycle")
	}

	return nil
}

// unreachableWarnings flags nodes not reachable from start. These are
// warnings only; the policy can still activate.
func unreachableWarnings(startID string, nodesByID map[string]*models.Node, outgoing map[string][]*models.Edge) []string {
	reached := map[string]bool{startID: true}
	stack := []string{startID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, edge := range outgoing[id] {
			if !reached[edge.TargetNodeID] {
				reached[edge.TargetNodeID] = true
				stack = append(stack, edge.TargetNodeID)
			}
		}
	}

	var warnings []string

	for _, node := range sortedNodeIDs(nodesByID) {
		if !reached[node] {
			warnings = append(warnings, fmt.Sprintf("node %q is unreachable from start", node))
		}
	}

	return warnings
}

func sortedNodeIDs(nodesByID map[string]*models.Node) []string {
	ids := make([]string, 0, len(nodesByID))
	for id := range nodesByID {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
