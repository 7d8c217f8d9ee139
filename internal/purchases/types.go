package purchases

import (
	"time"

	"github.com/furniq/furniq-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is a vendor registered under one company.
type Supplier struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	ContactID uuid.UUID `json:"contact_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LineItem is one product line of a purchase document.
//
// Invariants held by the engine: ReceivedQty <= OrderedQty and
// BilledQty <= min(OrderedQty, ReceivedQty).
type LineItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	Description string          `json:"description,omitempty"`
	OrderedQty  int             `json:"ordered_qty"`
	ReceivedQty int             `json:"received_qty"`
	BilledQty   int             `json:"billed_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	GSTEnabled  bool            `json:"gst_enabled"`
	GSTRate     decimal.Decimal `json:"gst_rate"`
}

// GRNLine is one received line within a goods receipt note.
type GRNLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// GRNRecord is the append-only audit record of one goods receipt.
type GRNRecord struct {
	ID         uuid.UUID       `json:"id"`
	Reference  string          `json:"reference"`
	Warehouse  enums.Warehouse `json:"warehouse"`
	Lines      []GRNLine       `json:"lines"`
	ActorID    uuid.UUID       `json:"actor_id"`
	ReceivedAt time.Time       `json:"received_at"`
}

// BillLine is one billed line within a vendor bill.
type BillLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// BillRecord is the append-only audit record of one vendor bill.
type BillRecord struct {
	ID       uuid.UUID       `json:"id"`
	BillNo   string          `json:"bill_no"`
	Lines    []BillLine      `json:"lines"`
	Amount   decimal.Decimal `json:"amount"`
	Tax      decimal.Decimal `json:"tax"`
	ActorID  uuid.UUID       `json:"actor_id"`
	BilledAt time.Time       `json:"billed_at"`
}

// Transaction is a company-scoped purchase document. Cancellation freezes the
// document; nothing is ever deleted.
type Transaction struct {
	ID            uuid.UUID            `json:"id"`
	CompanyID     uuid.UUID            `json:"company_id"`
	DocumentNo    string               `json:"document_no"`
	PORef         string               `json:"po_ref,omitempty"`
	SupplierID    uuid.UUID            `json:"supplier_id"`
	ContactID     uuid.UUID            `json:"contact_id"`
	PartyName     string               `json:"party_name"`
	Status        enums.PurchaseStatus `json:"status"`
	Items         []LineItem           `json:"items"`
	GRNHistory    []GRNRecord          `json:"grn_history"`
	BillHistory   []BillRecord         `json:"bill_history"`
	GrandTotal    decimal.Decimal      `json:"grand_total"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
	PaymentStatus enums.PaymentStatus  `json:"payment_status"`
	// Historical marks a migrated shadow document that skips every stock and
	// accounting side effect.
	Historical bool      `json:"historical"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t *Transaction) line(productID uuid.UUID) *LineItem {
	for i := range t.Items {
		if t.Items[i].ProductID == productID {
			return &t.Items[i]
		}
	}
	return nil
}

func (t *Transaction) aggregates() (ordered, received, billed int) {
	for _, item := range t.Items {
		ordered += item.OrderedQty
		received += item.ReceivedQty
		billed += item.BilledQty
	}
	return ordered, received, billed
}
