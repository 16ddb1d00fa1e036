package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/qubic/chains-status/domain"
	"github.com/qubic/chains-status/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNotReady = errors.New("chain registry or sync source not ready")

type Registry interface {
	ListChains(ctx context.Context) ([]domain.Chain, error)
}

type SyncSource interface {
	Initialized() bool
	QuerySyncStatus(ctx context.Context, chainID string) (*domain.SyncSnapshot, error)
}

type Publisher interface {
	Publish(ctx context.Context, snapshot *domain.Snapshot) error
}

type Config struct {
	MaxChunkCount         int
	PollInterval          time.Duration
	InitialDelay          time.Duration
	FirstTickPlaceholders bool
}

type State int32

const (
	StateIdle State = iota
	StateWaitingInitialDelay
	StateTickInFlight
	StateScheduledNext
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaitingInitialDelay:
		return "WAITING_INITIAL_DELAY"
	case StateTickInFlight:
		return "TICK_IN_FLIGHT"
	case StateScheduledNext:
		return "SCHEDULED_NEXT"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Poller struct {
	registry          Registry
	source            SyncSource
	publisher         Publisher
	config            Config
	processingMetrics *metrics.Metrics
	logger            *zap.SugaredLogger

	aggregator    aggregator
	state         atomic.Int32
	ticksInFlight atomic.Int32
	publishLock   gosync.Mutex
	lastPublished uint64
}

func NewPoller(registry Registry, source SyncSource, publisher Publisher, m *metrics.Metrics, logger *zap.SugaredLogger, config Config) *Poller {
	return &Poller{
		registry:          registry,
		source:            source,
		publisher:         publisher,
		config:            config,
		processingMetrics: m,
		logger:            logger,
	}
}

// Restore seeds the poller with a previously published snapshot. It becomes the fallback for the first tick.
func (p *Poller) Restore(snapshot *domain.Snapshot) {
	if snapshot == nil {
		return
	}
	p.aggregator.restore(snapshot)
	p.publishLock.Lock()
	p.lastPublished = max(p.lastPublished, snapshot.Generation)
	p.publishLock.Unlock()
}

// Current returns a copy of the latest published snapshot or nil if there is none yet.
func (p *Poller) Current() *domain.Snapshot {
	return p.aggregator.snapshot()
}

func (p *Poller) State() State {
	return State(p.state.Load())
}

// Run drives the polling loop until the context is cancelled. Ticks are started on every interval, even if the
// previous tick has not finished yet. Queries in flight on shutdown are not cancelled and may still publish.
func (p *Poller) Run(ctx context.Context) {
	defer p.setState(StateStopped)
	tickCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	var initialDelay <-chan time.Time
	if p.ready(ctx) {
		p.setState(StateWaitingInitialDelay)
		p.logger.Infow("waiting before first tick", "delay", p.config.InitialDelay)
		timer := time.NewTimer(p.config.InitialDelay)
		defer timer.Stop()
		initialDelay = timer.C
	} else {
		p.logger.Infow("registry or sync source not ready, waiting for next interval")
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("stopping poller")
			return
		case <-initialDelay:
			initialDelay = nil
			go p.tick(tickCtx)
		case <-ticker.C:
			if p.ready(ctx) {
				go p.tick(tickCtx)
			} else if p.ticksInFlight.Load() == 0 {
				p.setState(StateIdle)
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	err := p.RunTick(ctx)
	if errors.Is(err, ErrNotReady) {
		p.logger.Debugw("skipping tick", "reason", err)
		p.state.CompareAndSwap(int32(StateWaitingInitialDelay), int32(StateIdle))
	} else if err != nil {
		p.logger.Warnw("tick failed", "error", err)
	}
}

// RunTick polls all chains once. It returns after every chunk of the tick has completed.
func (p *Poller) RunTick(ctx context.Context) error {
	if p.source == nil || !p.source.Initialized() {
		return ErrNotReady
	}
	chains, err := p.registry.ListChains(ctx)
	if err != nil {
		return fmt.Errorf("listing chains: %w", err)
	}
	if len(chains) == 0 {
		return ErrNotReady
	}

	p.ticksInFlight.Add(1)
	p.setState(StateTickInFlight)
	defer func() {
		if p.ticksInFlight.Add(-1) == 0 && p.State() == StateTickInFlight {
			p.setState(StateScheduledNext)
		}
	}()

	generation := p.aggregator.begin(len(chains))
	defer p.aggregator.finish(generation)
	chunks := chunkIndices(len(chains), p.config.MaxChunkCount)
	p.processingMetrics.IncStartedTicks()
	p.processingMetrics.SetChunks(len(chunks))
	p.logger.Debugw("starting tick", "generation", generation, "chains", len(chains), "chunks", len(chunks))

	var errorGroup errgroup.Group
	for _, chunk := range chunks {
		errorGroup.Go(func() error {
			return p.processChunk(ctx, generation, chains, chunk)
		})
	}
	return errorGroup.Wait()
}

// processChunk queries the chains of one chunk one after another and hands the merged results to the aggregator.
func (p *Poller) processChunk(ctx context.Context, generation uint64, chains []domain.Chain, chunk []int) error {
	statuses := make([]domain.ChainStatus, 0, len(chunk))
	for _, index := range chunk {
		chain := chains[index]
		snapshot := p.querySnapshot(ctx, chain)

		status, outcome := mergeStatus(chain, index, snapshot, p.aggregator.previous(), p.config.FirstTickPlaceholders)
		switch outcome {
		case mergeDropped:
			p.processingMetrics.IncDroppedChains(chain.ID)
			p.logger.Infow("no prior status, dropping chain from tick", "chain", chain.ID, "generation", generation)
			continue
		case mergeFallback:
			p.processingMetrics.IncFallbacks(chain.ID)
		}
		statuses = append(statuses, status)
	}

	snapshot, stale := p.aggregator.add(generation, statuses, time.Now())
	if stale {
		p.processingMetrics.IncStaleResults()
		p.logger.Debugw("dropping results of outdated tick", "generation", generation)
		return nil
	}
	if snapshot == nil {
		return nil // tick not complete yet
	}
	return p.publish(ctx, snapshot)
}

func (p *Poller) querySnapshot(ctx context.Context, chain domain.Chain) domain.SyncSnapshot {
	if chain.Disabled {
		return domain.UnknownSnapshot()
	}
	snapshot, err := p.source.QuerySyncStatus(ctx, chain.ID)
	if err != nil {
		p.processingMetrics.IncQueryFailures(chain.ID)
		p.logger.Warnw("sync status query failed", "chain", chain.ID, "error", err)
		return domain.UnknownSnapshot()
	}
	if snapshot == nil {
		return domain.UnknownSnapshot()
	}
	return *snapshot
}

func (p *Poller) publish(ctx context.Context, snapshot *domain.Snapshot) error {
	p.publishLock.Lock()
	defer p.publishLock.Unlock()
	if snapshot.Generation <= p.lastPublished {
		return nil
	}
	p.lastPublished = snapshot.Generation

	for _, status := range snapshot.Chains {
		p.processingMetrics.SetChainStatus(status.ID, status.LatestBlock, stateValue(status))
	}
	p.processingMetrics.SetPublished(snapshot.Generation)
	p.logger.Infow("published chain status", "generation", snapshot.Generation, "chains", len(snapshot.Chains),
		"unsynced", snapshot.Chains.Unsynced().ShortNames())

	if p.publisher == nil {
		return nil
	}
	err := p.publisher.Publish(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("publishing generation [%d]: %w", snapshot.Generation, err)
	}
	return nil
}

func (p *Poller) ready(ctx context.Context) bool {
	if p.source == nil || !p.source.Initialized() {
		return false
	}
	chains, err := p.registry.ListChains(ctx)
	if err != nil {
		p.logger.Warnw("listing chains failed", "error", err)
		return false
	}
	return len(chains) > 0
}

func (p *Poller) setState(state State) {
	p.state.Store(int32(state))
}

func stateValue(status domain.ChainStatus) int {
	switch status.State() {
	case domain.StateDisabled:
		return -1
	case domain.StateSynced:
		return 1
	default:
		return 0
	}
}
