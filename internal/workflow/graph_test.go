package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/process/models"
)

func TestDefaultGraphIsValid(t *testing.T) {
	require.NoError(t, DefaultGraph().Validate())
}

func TestResolve(t *testing.T) {
	g := DefaultGraph()
	cases := []struct {
		from   models.Status
		signal models.Signal
		want   models.Status
	}{
		{models.StatusInitiated, models.SignalVerified, models.StatusDetailsCollected},
		{models.StatusDetailsCollected, models.SignalNotVerified, models.StatusIDVerificationFailed},
		{models.StatusIDVerified, models.SignalNotVerified, models.StatusBiometricVerificationFailed},
		{models.StatusBiometricVerified, models.SignalNotVerified, models.StatusFinancialVerificationFailed},
		{models.StatusFinancialVerified, models.SignalNeedsReview, models.StatusManualReview},
		{models.StatusFinancialVerified, models.SignalVerified, models.StatusAMLScreened},
		{models.StatusFinancialVerified, models.SignalNotVerified, models.StatusAMLScreeningFailed},
		{models.StatusAMLScreened, models.SignalNotVerified, models.StatusAccountCreationFailed},
		{models.StatusAccountCreated, models.SignalVerified, models.StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.signal), func(t *testing.T) {
			got, err := g.Resolve(tc.from, tc.signal)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("terminal has no exits", func(t *testing.T) {
		_, err := g.Resolve(models.StatusCompleted, models.SignalVerified)
		assert.Error(t, err)
	})
	t.Run("details stage cannot fail", func(t *testing.T) {
		_, err := g.Resolve(models.StatusInitiated, models.SignalNotVerified)
		assert.Error(t, err)
	})
}

func TestReviewTakesPrecedenceAtScreening(t *testing.T) {
	node := DefaultGraph()[models.StatusFinancialVerified]
	require.NotEmpty(t, node.Edges)
	assert.Equal(t, models.SignalNeedsReview, node.Edges[0].When)
}

func TestAllows(t *testing.T) {
	g := DefaultGraph()
	assert.True(t, g.Allows(models.StatusAMLScreened, models.StatusAccountCreated))
	assert.False(t, g.Allows(models.StatusInitiated, models.StatusCompleted))
	assert.False(t, g.Allows(models.StatusManualReview, models.StatusAMLScreened))
}

func TestValidateRejectsBrokenGraphs(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		g := DefaultGraph()
		g[models.StatusIDVerified] = Node{
			Stage: models.StageBiometricVerification,
			Edges: []Edge{{When: models.SignalVerified, To: models.StatusDetailsCollected}},
		}
		assert.ErrorContains(t, g.Validate(), "cycle")
	})
	t.Run("terminal with a stage", func(t *testing.T) {
		g := DefaultGraph()
		g[models.StatusCompleted] = Node{
			Stage: models.StageCompletion,
			Edges: []Edge{{When: models.SignalVerified, To: models.StatusCompleted}},
		}
		assert.Error(t, g.Validate())
	})
	t.Run("duplicate signal", func(t *testing.T) {
		g := DefaultGraph()
		node := g[models.StatusAMLScreened]
		node.Edges = append(node.Edges, Edge{When: models.SignalVerified, To: models.StatusAccountCreationFailed})
		g[models.StatusAMLScreened] = node
		assert.ErrorContains(t, g.Validate(), "twice")
	})
	t.Run("dangling non-terminal", func(t *testing.T) {
		g := DefaultGraph()
		delete(g, models.StatusAccountCreated)
		assert.ErrorContains(t, g.Validate(), "has no stage")
	})
	t.Run("unreachable node", func(t *testing.T) {
		g := DefaultGraph()
		g[models.StatusInitiated] = Node{
			Stage: models.StageCollectDetails,
			Edges: []Edge{{When: models.SignalVerified, To: models.StatusIDVerificationFailed}},
		}
		assert.ErrorContains(t, g.Validate(), "unreachable")
	})
}

func TestFailureReasonDefault(t *testing.T) {
	g := DefaultGraph()
	assert.Equal(t, "account could not be opened", g.failureReason(models.StatusAMLScreened))
	assert.Equal(t, "onboarding step failed", g.failureReason(models.StatusInitiated))
}
