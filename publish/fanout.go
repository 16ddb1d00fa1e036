package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qubic/chains-status/domain"
	"github.com/qubic/chains-status/metrics"
	"go.uber.org/zap"
)

type Sink interface {
	Publish(ctx context.Context, snapshot *domain.Snapshot) error
}

type namedSink struct {
	name string
	sink Sink
}

// Fanout forwards published snapshots to all registered sinks. A failing sink does not stop the others.
type Fanout struct {
	sinks             []namedSink
	timeout           time.Duration
	processingMetrics *metrics.Metrics
	logger            *zap.SugaredLogger
}

func NewFanout(timeout time.Duration, m *metrics.Metrics, logger *zap.SugaredLogger) *Fanout {
	return &Fanout{
		timeout:           timeout,
		processingMetrics: m,
		logger:            logger,
	}
}

func (f *Fanout) Add(name string, sink Sink) {
	f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
}

func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.name)
	}
	return names
}

func (f *Fanout) Publish(ctx context.Context, snapshot *domain.Snapshot) error {
	var errs []error
	for _, s := range f.sinks {
		err := f.publish(ctx, s, snapshot)
		if err != nil {
			f.processingMetrics.IncSinkErrors(s.name)
			f.logger.Errorw("publishing to sink failed", "sink", s.name, "generation", snapshot.Generation, "error", err)
			errs = append(errs, fmt.Errorf("sink [%s]: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) publish(ctx context.Context, s namedSink, snapshot *domain.Snapshot) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return s.sink.Publish(ctx, snapshot)
}
