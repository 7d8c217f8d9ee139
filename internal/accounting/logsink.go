package accounting

import (
	"context"

	"github.com/furniq/furniq-backend/pkg/logger"
)

// LogSink is the standalone-mode accounting sink. It writes every posting to
// the structured log and reports an empty ageing book. Deployments with a real
// accounting system plug their own Sink into the dispatcher instead.
type LogSink struct {
	logg *logger.Logger
}

// NewLogSink builds a sink that records postings to the log.
func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) RecordPurchaseCost(ctx context.Context, posting CostPosting) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"purchase_id": posting.PurchaseID.String(),
		"bill_no":     posting.BillNo,
		"amount":      posting.Amount.String(),
		"tax":         posting.Tax.String(),
	}), "purchase cost posted")
	return nil
}

func (s *LogSink) RecordSalesRevenue(ctx context.Context, posting RevenuePosting) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"invoice_id": posting.InvoiceID,
		"order_no":   posting.OrderNo,
		"amount":     posting.Amount.String(),
		"tax":        posting.Tax.String(),
	}), "sales revenue posted")
	return nil
}

func (s *LogSink) RecordPaymentAgainstBill(ctx context.Context, payment Payment) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"document_id": payment.DocumentID.String(),
		"amount":      payment.Amount.String(),
	}), "bill payment posted")
	return nil
}

func (s *LogSink) RecordPaymentAgainstInvoice(ctx context.Context, payment Payment) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"document_id": payment.DocumentID.String(),
		"amount":      payment.Amount.String(),
	}), "invoice payment posted")
	return nil
}

func (s *LogSink) ReconcileAdvanceToBill(ctx context.Context, advance Advance) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"document_id": advance.DocumentID.String(),
		"amount":      advance.Amount.String(),
	}), "vendor advance reconciled")
	return nil
}

func (s *LogSink) ReconcileAdvanceToInvoice(ctx context.Context, advance Advance) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"document_id": advance.DocumentID.String(),
		"amount":      advance.Amount.String(),
	}), "customer advance reconciled")
	return nil
}

func (s *LogSink) PayablesAgeing(ctx context.Context) ([]AgeingEntry, error) {
	return []AgeingEntry{}, nil
}
