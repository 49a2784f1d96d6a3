package conflict

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takumi-oki/chorus/internal/clock"
	"github.com/takumi-oki/chorus/internal/comms"
	"github.com/takumi-oki/chorus/internal/knowledge"
	"github.com/takumi-oki/chorus/internal/logging"
	"github.com/takumi-oki/chorus/internal/model"
	"github.com/takumi-oki/chorus/internal/registry"
)

type nopNotifier struct{}

func (nopNotifier) Record(string, map[string]any) {}

func newTestResolver() (*Resolver, *comms.Bus, *registry.Memory) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := knowledge.NewStore(clk)
	logger := logging.New(io.Discard, logging.LevelError, "test")
	bus := comms.NewBus(store, nopNotifier{}, clk, logger)
	reg := registry.NewMemory()
	return NewResolver(bus, reg, nopNotifier{}, clk, logger), bus, reg
}

func TestCreateConflictRequestsProposals(t *testing.T) {
	r, bus, _ := newTestResolver()

	id, err := r.CreateConflict(model.ConflictApproachDisagreement, []string{"agent-1", "agent-2"}, "task-1", "which framework")
	require.NoError(t, err)

	c, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStatusOpen, c.Status)
	assert.Equal(t, []string{"agent-1", "agent-2"}, c.InvolvedAgents)

	// Each involved agent got a proposal request that awaits a response.
	for _, agent := range []string{"agent-1", "agent-2"} {
		msgs := bus.For(agent)
		require.Len(t, msgs, 1)
		assert.Equal(t, model.MessageConflictResolution, msgs[0].Type)
		assert.True(t, msgs[0].RequiresResponse)
		assert.False(t, msgs[0].Closed())
	}
}

func TestCreateConflictRequiresAgents(t *testing.T) {
	r, _, _ := newTestResolver()
	_, err := r.CreateConflict(model.ConflictResource, nil, "", "empty")
	assert.Error(t, err)
}

func TestResolvePicksPerformanceWeightedWinner(t *testing.T) {
	r, _, reg := newTestResolver()
	reg.PutAgent(model.Agent{ID: "veteran", SuccessRate: 0.95})
	reg.PutAgent(model.Agent{ID: "optimist", SuccessRate: 0.5})

	id, err := r.CreateConflict(model.ConflictApproachDisagreement, []string{"veteran", "optimist"}, "task-1", "storage engine")
	require.NoError(t, err)

	// veteran: 0.95*0.7 + 0.6*0.3 = 0.845; optimist: 0.5*0.7 + 0.9*0.3 = 0.62.
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "veteran", Solution: "postgres", Confidence: 0.6}))
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "optimist", Solution: "flatfiles", Confidence: 0.9}))

	r.CheckResolutions(context.Background())

	c, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStatusResolved, c.Status)
	require.NotNil(t, c.Resolution)
	assert.Equal(t, "veteran", c.Resolution.ChosenSolution.AgentID)
	assert.Equal(t, "postgres", c.Resolution.ChosenSolution.Solution)
	assert.Equal(t, model.ResolutionPerformanceBased, c.Resolution.ResolvedBy)
}

func TestResolveUnknownAgentUsesBareConfidence(t *testing.T) {
	r, _, reg := newTestResolver()
	reg.PutAgent(model.Agent{ID: "known", SuccessRate: 0.4})

	id, err := r.CreateConflict(model.ConflictPriority, []string{"known", "stranger"}, "", "ordering")
	require.NoError(t, err)

	// known: 0.4*0.7 + 0.5*0.3 = 0.43; stranger scores its raw 0.7.
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "known", Solution: "a", Confidence: 0.5}))
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "stranger", Solution: "b", Confidence: 0.7}))

	r.CheckResolutions(context.Background())

	c, err := r.Get(id)
	require.NoError(t, err)
	require.NotNil(t, c.Resolution)
	assert.Equal(t, "stranger", c.Resolution.ChosenSolution.AgentID)
}

func TestDuplicateProposerReachesThreshold(t *testing.T) {
	r, _, reg := newTestResolver()
	reg.PutAgent(model.Agent{ID: "agent-1", SuccessRate: 0.8})

	id, err := r.CreateConflict(model.ConflictResource, []string{"agent-1", "agent-2"}, "", "gpu slot")
	require.NoError(t, err)

	// Two proposals from the same agent still satisfy a two-agent threshold.
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "agent-1", Solution: "x", Confidence: 0.4}))
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "agent-1", Solution: "y", Confidence: 0.6}))

	r.CheckResolutions(context.Background())

	c, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStatusResolved, c.Status)
	assert.Equal(t, "y", c.Resolution.ChosenSolution.Solution)
}

func TestCheckResolutionsLeavesShortConflictsOpen(t *testing.T) {
	r, _, _ := newTestResolver()

	id, err := r.CreateConflict(model.ConflictResource, []string{"agent-1", "agent-2", "agent-3"}, "", "quota")
	require.NoError(t, err)
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "agent-1", Solution: "x", Confidence: 0.9}))

	r.CheckResolutions(context.Background())

	c, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictStatusOpen, c.Status)
	assert.Nil(t, c.Resolution)
}

func TestResolutionNotifiesInvolvedAgents(t *testing.T) {
	r, bus, reg := newTestResolver()
	reg.PutAgent(model.Agent{ID: "agent-1", SuccessRate: 0.9})
	reg.PutAgent(model.Agent{ID: "agent-2", SuccessRate: 0.3})

	id, err := r.CreateConflict(model.ConflictApproachDisagreement, []string{"agent-1", "agent-2"}, "", "api shape")
	require.NoError(t, err)
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "agent-1", Solution: "rest", Confidence: 0.8}))
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "agent-2", Solution: "rpc", Confidence: 0.8}))

	r.CheckResolutions(context.Background())

	for _, agent := range []string{"agent-1", "agent-2"} {
		var outcomes int
		for _, msg := range bus.For(agent) {
			notice, ok := msg.Payload.(model.ConflictNotice)
			if ok && notice.Outcome != nil {
				outcomes++
				assert.Equal(t, "rest", notice.Outcome.ChosenSolution.Solution)
			}
		}
		assert.Equal(t, 1, outcomes, "agent %s should receive exactly one outcome notice", agent)
	}
}

func TestAddProposalAfterResolutionRejected(t *testing.T) {
	r, _, _ := newTestResolver()

	id, err := r.CreateConflict(model.ConflictResource, []string{"agent-1"}, "", "slot")
	require.NoError(t, err)
	require.NoError(t, r.AddProposal(id, model.Proposal{AgentID: "agent-1", Solution: "x", Confidence: 0.5}))

	r.CheckResolutions(context.Background())

	err = r.AddProposal(id, model.Proposal{AgentID: "agent-1", Solution: "late", Confidence: 0.9})
	assert.Error(t, err)
}

func TestAddProposalUnknownConflict(t *testing.T) {
	r, _, _ := newTestResolver()
	err := r.AddProposal("conflict_missing", model.Proposal{AgentID: "a", Confidence: 0.5})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
