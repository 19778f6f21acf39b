package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemalink/coordinator/internal/model"
)

// newRegistryFixture wires a registry whose runs monitor indefinitely:
// one donor is contacted and never responds.
func newRegistryFixture() (*Registry, *runFixture) {
	fx := newRunFixture(2)
	fx.search.batches = [][]model.Candidate{candidates("d1")}
	return NewRegistry(testConfig(), fx.deps()), fx
}

func openRequest(id string) model.Request {
	return model.Request{
		ID: id, ProviderID: "hp1", BloodGroup: []string{"A+"},
		Quantity: 2, Urgency: model.UrgencyMedium, Status: model.RequestOpen,
	}
}

func TestRegistryStartAndStop(t *testing.T) {
	reg, _ := newRegistryFixture()
	defer reg.StopAll()

	run, err := reg.Start(context.Background(), testSessionID, openRequest("req1"))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get(testSessionID)
	require.True(t, ok)
	assert.Same(t, run, got)

	require.NoError(t, reg.Stop(testSessionID))
	require.Eventually(t, func() bool {
		return reg.Len() == 0
	}, 2*time.Second, time.Millisecond)

	_, ok = reg.Get(testSessionID)
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateSession(t *testing.T) {
	reg, _ := newRegistryFixture()
	defer reg.StopAll()

	_, err := reg.Start(context.Background(), testSessionID, openRequest("req1"))
	require.NoError(t, err)

	_, err = reg.Start(context.Background(), testSessionID, openRequest("req1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunExists)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryStartRejectsInvalidInput(t *testing.T) {
	reg, _ := newRegistryFixture()

	_, err := reg.Start(context.Background(), "bogus", openRequest("req1"))
	assert.Error(t, err)

	req := openRequest("req1")
	req.BloodGroup = nil
	_, err = reg.Start(context.Background(), testSessionID, req)
	assert.Error(t, err)

	assert.Equal(t, 0, reg.Len())
}

func TestRegistryStopUnknownSession(t *testing.T) {
	reg, _ := newRegistryFixture()

	err := reg.Stop(testSessionID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRegistryRemovesTerminatedRuns(t *testing.T) {
	fx := newRunFixture(1)
	// No candidates: the run terminates on its own right after the
	// initial search.
	reg := NewRegistry(testConfig(), fx.deps())

	var mu sync.Mutex
	var finished []string
	reg.OnDone(func(sessionID string) {
		mu.Lock()
		finished = append(finished, sessionID)
		mu.Unlock()
	})

	_, err := reg.Start(context.Background(), testSessionID, openRequest("req1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return reg.Len() == 0
	}, 2*time.Second, time.Millisecond)

	reg.StopAll()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{testSessionID}, finished)
}

func TestRegistrySnapshotsSortedBySession(t *testing.T) {
	fx := newRunFixture(2)
	fx.search.batches = [][]model.Candidate{candidates("d1"), candidates("d2")}
	reg := NewRegistry(testConfig(), fx.deps())
	defer reg.StopAll()

	_, err := reg.Start(context.Background(), "healthcare_providers-hp2-requests-reqB", openRequest("reqB"))
	require.NoError(t, err)
	_, err = reg.Start(context.Background(), "healthcare_providers-hp1-requests-reqA", openRequest("reqA"))
	require.NoError(t, err)

	snaps := reg.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "healthcare_providers-hp1-requests-reqA", snaps[0].SessionID)
	assert.Equal(t, "healthcare_providers-hp2-requests-reqB", snaps[1].SessionID)
}

func TestRegistryStopAllWaitsForRuns(t *testing.T) {
	reg, _ := newRegistryFixture()

	_, err := reg.Start(context.Background(), testSessionID, openRequest("req1"))
	require.NoError(t, err)

	reg.StopAll()
	assert.Equal(t, 0, reg.Len())
}
