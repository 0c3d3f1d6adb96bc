package workflow

import (
	"fmt"
	"slices"

	"onboard/internal/process/models"
)

// Edge leaves a node when the stage reports When.
type Edge struct {
	When models.Signal
	To   models.Status
}

// Node is the stage run from one non-terminal status and its ordered exits.
type Node struct {
	Stage models.Stage
	Edges []Edge
	// FailureReason is recorded when a failure exit is taken without a
	// stage-specific reason.
	FailureReason string
}

// Graph is the onboarding state machine. Edges are evaluated in order, so a
// node that lists NeedsReview first gives it precedence.
type Graph map[models.Status]Node

// DefaultGraph is the onboarding flow.
func DefaultGraph() Graph {
	return Graph{
		models.StatusInitiated: {
			Stage: models.StageCollectDetails,
			Edges: []Edge{{When: models.SignalVerified, To: models.StatusDetailsCollected}},
		},
		models.StatusDetailsCollected: {
			Stage: models.StageIdentityVerification,
			Edges: []Edge{
				{When: models.SignalVerified, To: models.StatusIDVerified},
				{When: models.SignalNotVerified, To: models.StatusIDVerificationFailed},
			},
			FailureReason: "identity could not be verified",
		},
		models.StatusIDVerified: {
			Stage: models.StageBiometricVerification,
			Edges: []Edge{
				{When: models.SignalVerified, To: models.StatusBiometricVerified},
				{When: models.SignalNotVerified, To: models.StatusBiometricVerificationFailed},
			},
			FailureReason: "biometric check did not match the identity document",
		},
		models.StatusBiometricVerified: {
			Stage: models.StageFinancialVerification,
			Edges: []Edge{
				{When: models.SignalVerified, To: models.StatusFinancialVerified},
				{When: models.SignalNotVerified, To: models.StatusFinancialVerificationFailed},
			},
			FailureReason: "financial details could not be verified",
		},
		models.StatusFinancialVerified: {
			Stage: models.StageAMLScreening,
			Edges: []Edge{
				{When: models.SignalNeedsReview, To: models.StatusManualReview},
				{When: models.SignalVerified, To: models.StatusAMLScreened},
				{When: models.SignalNotVerified, To: models.StatusAMLScreeningFailed},
			},
			FailureReason: "applicant did not pass AML screening",
		},
		models.StatusAMLScreened: {
			Stage: models.StageAccountCreation,
			Edges: []Edge{
				{When: models.SignalVerified, To: models.StatusAccountCreated},
				{When: models.SignalNotVerified, To: models.StatusAccountCreationFailed},
			},
			FailureReason: "account could not be opened",
		},
		models.StatusAccountCreated: {
			Stage: models.StageCompletion,
			Edges: []Edge{{When: models.SignalVerified, To: models.StatusCompleted}},
		},
	}
}

// Resolve returns the status reached from `from` when its stage reports signal.
func (g Graph) Resolve(from models.Status, signal models.Signal) (models.Status, error) {
	node, ok := g[from]
	if !ok {
		return "", fmt.Errorf("no stage runs from status %s", from)
	}
	for _, e := range node.Edges {
		if e.When == signal {
			return e.To, nil
		}
	}
	return "", fmt.Errorf("stage %s has no %s exit", node.Stage, signal)
}

// Allows reports whether one edge leads from `from` to `to`.
func (g Graph) Allows(from, to models.Status) bool {
	node, ok := g[from]
	if !ok {
		return false
	}
	return slices.ContainsFunc(node.Edges, func(e Edge) bool { return e.To == to })
}

// Validate checks the graph is acyclic and reachable from INITIATED, that
// terminals have no stage and that no node lists a signal twice.
func (g Graph) Validate() error {
	rank := map[models.Status]int{}
	var order func(s models.Status, depth int) error
	order = func(s models.Status, depth int) error {
		if depth > len(g)+1 {
			return fmt.Errorf("cycle through status %s", s)
		}
		if r, seen := rank[s]; seen && r >= depth {
			return nil
		}
		rank[s] = depth
		node, ok := g[s]
		if !ok {
			if !s.IsTerminal() {
				return fmt.Errorf("non-terminal status %s has no stage", s)
			}
			return nil
		}
		if s.IsTerminal() {
			return fmt.Errorf("terminal status %s has a stage", s)
		}
		if len(node.Edges) == 0 {
			return fmt.Errorf("status %s has no exits", s)
		}
		seen := map[models.Signal]bool{}
		for _, e := range node.Edges {
			if seen[e.When] {
				return fmt.Errorf("status %s lists %s twice", s, e.When)
			}
			seen[e.When] = true
			if err := order(e.To, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := order(models.StatusInitiated, 0); err != nil {
		return err
	}
	for s := range g {
		if _, reached := rank[s]; !reached {
			return fmt.Errorf("status %s is unreachable", s)
		}
	}
	return nil
}

// Stage returns the stage run from status.
func (g Graph) Stage(from models.Status) (models.Stage, bool) {
	node, ok := g[from]
	return node.Stage, ok
}

func (g Graph) failureReason(from models.Status) string {
	if r := g[from].FailureReason; r != "" {
		return r
	}
	return "onboarding step failed"
}
