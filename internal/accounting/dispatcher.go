package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/furniq/furniq-backend/pkg/logger"
	"github.com/furniq/furniq-backend/pkg/metrics"
)

// PostingKind labels a queued posting for logs and metrics.
type PostingKind string

const (
	PostingPurchaseCost   PostingKind = "purchase_cost"
	PostingSalesRevenue   PostingKind = "sales_revenue"
	PostingBillPayment    PostingKind = "bill_payment"
	PostingInvoicePayment PostingKind = "invoice_payment"
	PostingBillAdvance    PostingKind = "bill_advance"
	PostingInvoiceAdvance PostingKind = "invoice_advance"
)

type posting struct {
	kind     PostingKind
	cost     *CostPosting
	revenue  *RevenuePosting
	payment  *Payment
	advance  *Advance
	attempts int
}

// DispatcherParams configure the accounting dispatcher.
type DispatcherParams struct {
	Sink        Sink
	Logger      *logger.Logger
	Metrics     *metrics.EngineMetrics
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Dispatcher buffers postings emitted after stock commits and drains them to
// the accounting sink with bounded exponential backoff. Implements Queue.
type Dispatcher struct {
	sink        Sink
	logg        *logger.Logger
	metrics     *metrics.EngineMetrics
	queue       chan posting
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewDispatcher builds a dispatcher with the required dependencies.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Sink == nil {
		return nil, errors.New("accounting sink required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	queueSize := params.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	baseBackoff := params.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 250 * time.Millisecond
	}
	maxBackoff := params.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}
	return &Dispatcher{
		sink:        params.Sink,
		logg:        params.Logger,
		metrics:     params.Metrics,
		queue:       make(chan posting, queueSize),
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

func (d *Dispatcher) enqueue(p posting) error {
	select {
	case d.queue <- p:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("accounting queue full, %s posting dropped", p.kind))
	}
}

func (d *Dispatcher) EnqueueCost(p CostPosting) error {
	return d.enqueue(posting{kind: PostingPurchaseCost, cost: &p})
}

func (d *Dispatcher) EnqueueRevenue(p RevenuePosting) error {
	return d.enqueue(posting{kind: PostingSalesRevenue, revenue: &p})
}

func (d *Dispatcher) EnqueueBillPayment(p Payment) error {
	return d.enqueue(posting{kind: PostingBillPayment, payment: &p})
}

func (d *Dispatcher) EnqueueInvoicePayment(p Payment) error {
	return d.enqueue(posting{kind: PostingInvoicePayment, payment: &p})
}

func (d *Dispatcher) EnqueueBillAdvance(p Advance) error {
	return d.enqueue(posting{kind: PostingBillAdvance, advance: &p})
}

func (d *Dispatcher) EnqueueInvoiceAdvance(p Advance) error {
	return d.enqueue(posting{kind: PostingInvoiceAdvance, advance: &p})
}

// Depth returns the number of postings waiting for dispatch.
func (d *Dispatcher) Depth() int {
	return len(d.queue)
}

// Run drains the queue until the context is cancelled. Failed postings are
// retried in place with exponential backoff; a posting that exhausts its
// attempts is logged and dropped so the queue never wedges.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-d.queue:
			d.metrics.SetQueueDepth(len(d.queue))
			d.deliver(ctx, p)
		}
	}
}

// Drain synchronously flushes everything queued so far. Used on shutdown and
// in tests.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		select {
		case p := <-d.queue:
			d.metrics.SetQueueDepth(len(d.queue))
			d.deliver(ctx, p)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, p posting) {
	backoff := d.baseBackoff
	for {
		p.attempts++
		start := time.Now()
		err := d.post(ctx, p)
		d.metrics.ObservePosting(string(p.kind), time.Since(start))
		if err == nil {
			return
		}
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"posting_kind": string(p.kind),
			"attempt":      p.attempts,
		})
		if p.attempts >= d.maxAttempts {
			d.logg.Error(logCtx, "accounting posting dropped after max attempts", err)
			return
		}
		d.logg.Warn(logCtx, "accounting posting failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
	}
}

func (d *Dispatcher) post(ctx context.Context, p posting) error {
	switch p.kind {
	case PostingPurchaseCost:
		return d.sink.RecordPurchaseCost(ctx, *p.cost)
	case PostingSalesRevenue:
		return d.sink.RecordSalesRevenue(ctx, *p.revenue)
	case PostingBillPayment:
		return d.sink.RecordPaymentAgainstBill(ctx, *p.payment)
	case PostingInvoicePayment:
		return d.sink.RecordPaymentAgainstInvoice(ctx, *p.payment)
	case PostingBillAdvance:
		return d.sink.ReconcileAdvanceToBill(ctx, *p.advance)
	case PostingInvoiceAdvance:
		return d.sink.ReconcileAdvanceToInvoice(ctx, *p.advance)
	}
	return fmt.Errorf("unknown posting kind %q", p.kind)
}
