package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records ledger activity and accounting dispatch health.
type EngineMetrics struct {
	stockOps        *prometheus.CounterVec
	batchRejections *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	postingLatency  *prometheus.HistogramVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	stockOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operations_total",
		Help: "Ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})
	batchRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_rejections_total",
		Help: "Rejected multi-line document operations.",
	}, []string{"op"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "accounting_queue_depth",
		Help: "Postings waiting for dispatch to the accounting sink.",
	})
	postingLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accounting_posting_seconds",
		Help:    "Latency of accounting sink postings in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(stockOps, batchRejections, queueDepth, postingLatency)
	return &EngineMetrics{
		stockOps:        stockOps,
		batchRejections: batchRejections,
		queueDepth:      queueDepth,
		postingLatency:  postingLatency,
	}
}

// IncStockOp increments the counter for the named ledger operation.
func (e *EngineMetrics) IncStockOp(op, outcome string) {
	if e == nil || e.stockOps == nil {
		return
	}
	e.stockOps.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// IncBatchRejection increments the rejection counter for the named operation.
func (e *EngineMetrics) IncBatchRejection(op string) {
	if e == nil || e.batchRejections == nil {
		return
	}
	e.batchRejections.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetQueueDepth records the current accounting queue depth.
func (e *EngineMetrics) SetQueueDepth(depth int) {
	if e == nil || e.queueDepth == nil {
		return
	}
	e.queueDepth.Set(float64(depth))
}

// ObservePosting records the latency of one accounting posting.
func (e *EngineMetrics) ObservePosting(kind string, duration time.Duration) {
	if e == nil || e.postingLatency == nil {
		return
	}
	e.postingLatency.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
