package sync

import (
	"sort"
	gosync "sync"
	"time"

	"github.com/qubic/chains-status/domain"
)

// aggregator collects the chunk results of ticks and publishes the complete, ordered list once every chain
// of a tick has reported. Each tick gets its own generation and its own accumulator, so overlapping ticks
// never mix results. The first accumulator to reach full coverage with a generation newer than the current
// list wins. Older generations are dropped at that point.
type aggregator struct {
	mu           gosync.Mutex
	generation   uint64
	accumulators map[uint64]*tickAccumulator
	current      *domain.Snapshot
}

type tickAccumulator struct {
	expected int
	statuses map[int]domain.ChainStatus
}

// begin starts a new generation that expects the given number of chains.
func (a *aggregator) begin(expected int) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accumulators == nil {
		a.accumulators = make(map[uint64]*tickAccumulator)
	}
	a.generation++
	a.accumulators[a.generation] = &tickAccumulator{
		expected: expected,
		statuses: make(map[int]domain.ChainStatus, expected),
	}
	return a.generation
}

// add merges chunk results into the accumulator of the given generation. Returns the published snapshot if
// the generation reached full coverage and whether the results were dropped as stale.
func (a *aggregator) add(generation uint64, statuses []domain.ChainStatus, now time.Time) (*domain.Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.accumulators[generation]
	if !ok || (a.current != nil && generation <= a.current.Generation) {
		return nil, true
	}

	for _, status := range statuses {
		acc.statuses[status.Index] = status
	}
	if len(acc.statuses) < acc.expected {
		return nil, false
	}

	list := make(domain.StatusList, 0, len(acc.statuses))
	for _, status := range acc.statuses {
		list = append(list, status)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Index < list[j].Index })

	a.current = &domain.Snapshot{
		Generation:  generation,
		PublishedAt: now,
		Chains:      list,
	}
	for gen := range a.accumulators {
		if gen <= generation {
			delete(a.accumulators, gen)
		}
	}
	return cloneSnapshot(a.current), false
}

// finish releases the accumulator of a tick whose chunks have all reported. Incomplete results are discarded.
func (a *aggregator) finish(generation uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.accumulators, generation)
}

// live returns the number of ticks still accumulating.
func (a *aggregator) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.accumulators)
}

// previous returns the latest published list or nil if nothing was published yet.
func (a *aggregator) previous() domain.StatusList {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	return a.current.Chains
}

func (a *aggregator) snapshot() *domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneSnapshot(a.current)
}

func (a *aggregator) restore(snapshot *domain.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = cloneSnapshot(snapshot)
	a.generation = max(a.generation, snapshot.Generation)
}

func cloneSnapshot(snapshot *domain.Snapshot) *domain.Snapshot {
	if snapshot == nil {
		return nil
	}
	clone := *snapshot
	clone.Chains = snapshot.Chains.Clone()
	return &clone
}
