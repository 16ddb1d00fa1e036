package sync

import (
	"testing"

	"github.com/qubic/chains-status/domain"
	"github.com/stretchr/testify/assert"
)

var (
	chainA = domain.Chain{ID: "a", ShortName: "A", Image: "/a.png"}
	chainB = domain.Chain{ID: "b", ShortName: "B", Disabled: true}
	chainC = domain.Chain{ID: "c", ShortName: "C"}
)

func TestMerge_FreshSnapshot(t *testing.T) {
	status, outcome := mergeStatus(chainA, 0, domain.SyncSnapshot{LatestBlock: 100}, nil, false)
	assert.Equal(t, mergeFresh, outcome)
	assert.Equal(t, domain.ChainStatus{
		ID:          "a",
		ShortName:   "A",
		Image:       "/a.png",
		LatestBlock: 100,
		Synced:      true,
		Index:       0,
	}, status)
}

func TestMerge_GivenUnknownAndPrior_ThenCarryForward(t *testing.T) {
	previous := domain.StatusList{
		{ID: "a", ShortName: "A", LatestBlock: 90, Synced: true, Index: 0},
		{ID: "c", ShortName: "C", LatestBlock: 55, Synced: true, Index: 2},
	}

	status, outcome := mergeStatus(chainC, 2, domain.UnknownSnapshot(), previous, false)
	assert.Equal(t, mergeFallback, outcome)
	assert.Equal(t, int64(55), status.LatestBlock)
	assert.True(t, status.Synced)
	assert.Equal(t, 2, status.Index)
}

func TestMerge_GivenUnknownAndPriorListWithoutChain_ThenKeepUnknown(t *testing.T) {
	previous := domain.StatusList{{ID: "a", LatestBlock: 90, Synced: true}}

	status, outcome := mergeStatus(chainC, 2, domain.UnknownSnapshot(), previous, false)
	assert.Equal(t, mergeFresh, outcome)
	assert.Equal(t, domain.UnknownBlock, status.LatestBlock)
	assert.False(t, status.Synced)
}

func TestMerge_GivenUnknownWithoutPriorList_ThenDrop(t *testing.T) {
	_, outcome := mergeStatus(chainC, 2, domain.UnknownSnapshot(), nil, false)
	assert.Equal(t, mergeDropped, outcome)
}

func TestMerge_GivenUnknownWithoutPriorListAndPlaceholders_ThenKeepUnsynced(t *testing.T) {
	status, outcome := mergeStatus(chainC, 2, domain.UnknownSnapshot(), nil, true)
	assert.Equal(t, mergeFresh, outcome)
	assert.Equal(t, domain.UnknownBlock, status.LatestBlock)
	assert.Equal(t, domain.StateUnsynced, status.State())
}

func TestMerge_GivenDisabledChain_ThenNeverSynced(t *testing.T) {
	status, outcome := mergeStatus(chainB, 1, domain.UnknownSnapshot(), nil, false)
	assert.Equal(t, mergeFresh, outcome)
	assert.False(t, status.Synced)
	assert.Equal(t, domain.StateDisabled, status.State())

	status, _ = mergeStatus(chainB, 1, domain.SyncSnapshot{LatestBlock: 500}, nil, false)
	assert.False(t, status.Synced)
	assert.Equal(t, int64(500), status.LatestBlock)

	// chain was enabled and synced before
	previous := domain.StatusList{{ID: "b", LatestBlock: 77, Synced: true, Index: 1}}
	status, outcome = mergeStatus(chainB, 1, domain.UnknownSnapshot(), previous, false)
	assert.Equal(t, mergeFallback, outcome)
	assert.Equal(t, int64(77), status.LatestBlock)
	assert.False(t, status.Synced)
	assert.True(t, status.Disabled)
}

func TestMerge_Idempotent(t *testing.T) {
	previous := domain.StatusList{{ID: "c", LatestBlock: 42, Synced: true, Index: 2}}
	for _, snapshot := range []domain.SyncSnapshot{domain.UnknownSnapshot(), {LatestBlock: 43}} {
		first, firstOutcome := mergeStatus(chainC, 2, snapshot, previous, false)
		second, secondOutcome := mergeStatus(chainC, 2, snapshot, previous, false)
		assert.Equal(t, first, second)
		assert.Equal(t, firstOutcome, secondOutcome)
	}
}
