package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	publishedGenerationGauge prometheus.Gauge
	startedTicksCount        prometheus.Counter
	publishedTicksCount      prometheus.Counter
	chunksGauge              prometheus.Gauge
	queryFailuresCount       *prometheus.CounterVec
	fallbacksCount           *prometheus.CounterVec
	droppedChainsCount       *prometheus.CounterVec
	staleResultsCount        prometheus.Counter
	sinkErrorsCount          *prometheus.CounterVec
	latestBlockGauge         *prometheus.GaugeVec
	syncedGauge              *prometheus.GaugeVec
}

func NewMetrics(namespace string) *Metrics {
	m := Metrics{
		// metrics for tick processing
		publishedGenerationGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_published_generation", namespace),
			Help: "The generation of the latest published status list",
		}),
		startedTicksCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_started_ticks_count", namespace),
			Help: "The total number of started polling ticks",
		}),
		publishedTicksCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_published_ticks_count", namespace),
			Help: "The total number of ticks that reached full coverage and were published",
		}),
		chunksGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_chunks", namespace),
			Help: "The number of chunks of the latest tick",
		}),
		staleResultsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_stale_results_count", namespace),
			Help: "The total number of chunk results dropped because a newer tick was already published",
		}),
		// per chain metrics
		queryFailuresCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_query_failures_count", namespace),
			Help: "The total number of failed sync status queries",
		}, []string{"chain"}),
		fallbacksCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_fallbacks_count", namespace),
			Help: "The total number of times a previous chain status was carried forward",
		}, []string{"chain"}),
		droppedChainsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_dropped_chains_count", namespace),
			Help: "The total number of chains dropped from a tick because no prior status existed",
		}, []string{"chain"}),
		latestBlockGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_latest_block", namespace),
			Help: "The latest published subgraph block per chain",
		}, []string{"chain"}),
		syncedGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_synced", namespace),
			Help: "Published sync state per chain (1 synced, 0 unsynced, -1 disabled)",
		}, []string{"chain"}),
		// metrics for publishing sinks
		sinkErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_sink_errors_count", namespace),
			Help: "The total number of failed publish attempts per sink",
		}, []string{"sink"}),
	}
	return &m
}

func (m *Metrics) IncStartedTicks() {
	m.startedTicksCount.Inc()
}

func (m *Metrics) SetChunks(count int) {
	m.chunksGauge.Set(float64(count))
}

func (m *Metrics) IncQueryFailures(chain string) {
	m.queryFailuresCount.WithLabelValues(chain).Inc()
}

func (m *Metrics) IncFallbacks(chain string) {
	m.fallbacksCount.WithLabelValues(chain).Inc()
}

func (m *Metrics) IncDroppedChains(chain string) {
	m.droppedChainsCount.WithLabelValues(chain).Inc()
}

func (m *Metrics) IncStaleResults() {
	m.staleResultsCount.Inc()
}

func (m *Metrics) IncSinkErrors(sink string) {
	m.sinkErrorsCount.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetPublished(generation uint64) {
	m.publishedGenerationGauge.Set(float64(generation))
	m.publishedTicksCount.Inc()
}

func (m *Metrics) SetChainStatus(chain string, latestBlock int64, state int) {
	m.latestBlockGauge.WithLabelValues(chain).Set(float64(latestBlock))
	m.syncedGauge.WithLabelValues(chain).Set(float64(state))
}
