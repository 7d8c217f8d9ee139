package accounting

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostPosting records a vendor bill against a purchase document.
type CostPosting struct {
	PurchaseID uuid.UUID       `json:"purchase_id"`
	BillNo     string          `json:"bill_no"`
	ContactID  uuid.UUID       `json:"contact_id"`
	PartyName  string          `json:"party_name"`
	Amount     decimal.Decimal `json:"amount"`
	Tax        decimal.Decimal `json:"tax"`
}

// RevenuePosting records an invoice raised against a sales order.
type RevenuePosting struct {
	InvoiceID    string          `json:"invoice_id"`
	OrderNo      string          `json:"order_no"`
	ContactID    uuid.UUID       `json:"contact_id"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	Tax          decimal.Decimal `json:"tax"`
}

// Payment records money received or paid against a bill or invoice.
type Payment struct {
	DocumentID uuid.UUID       `json:"document_id"`
	ContactID  uuid.UUID       `json:"contact_id"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  uuid.UUID       `json:"account_id"`
	Reference  string          `json:"reference,omitempty"`
}

// Advance reconciles a previously-recorded advance against a bill or invoice.
type Advance struct {
	DocumentID uuid.UUID       `json:"document_id"`
	ContactID  uuid.UUID       `json:"contact_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// AgeingEntry is one row of the payables ageing report.
type AgeingEntry struct {
	PartyID uuid.UUID       `json:"party_id"`
	Due     decimal.Decimal `json:"due"`
}

// Sink is the consumed surface of the external accounting system. The engines
// never depend on its concrete implementation.
type Sink interface {
	RecordPurchaseCost(ctx context.Context, posting CostPosting) error
	RecordSalesRevenue(ctx context.Context, posting RevenuePosting) error
	RecordPaymentAgainstBill(ctx context.Context, payment Payment) error
	RecordPaymentAgainstInvoice(ctx context.Context, payment Payment) error
	ReconcileAdvanceToBill(ctx context.Context, advance Advance) error
	ReconcileAdvanceToInvoice(ctx context.Context, advance Advance) error
	PayablesAgeing(ctx context.Context) ([]AgeingEntry, error)
}

// Queue is the narrow surface the engines use to hand postings off after a
// stock mutation commits. Dispatch happens outside any ledger critical
// section, so a downed accounting dependency never blocks stock.
type Queue interface {
	EnqueueCost(posting CostPosting) error
	EnqueueRevenue(posting RevenuePosting) error
	EnqueueBillPayment(payment Payment) error
	EnqueueInvoicePayment(payment Payment) error
	EnqueueBillAdvance(advance Advance) error
	EnqueueInvoiceAdvance(advance Advance) error
}
