package sales

import (
	"time"

	"github.com/furniq/furniq-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is a buyer registered under one company.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	ContactID uuid.UUID `json:"contact_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LineItem is one product line of a sales document. Discount is a per-unit
// amount taken off the price before tax.
//
// Invariants held by the engine: DeliveredQty <= OrderedQty and
// InvoicedQty <= OrderedQty.
type LineItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Description  string          `json:"description,omitempty"`
	OrderedQty   int             `json:"ordered_qty"`
	DeliveredQty int             `json:"delivered_qty"`
	InvoicedQty  int             `json:"invoiced_qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	GSTEnabled   bool            `json:"gst_enabled"`
	GSTRate      decimal.Decimal `json:"gst_rate"`
}

// DeliveryLine is one delivered line within a delivery note.
type DeliveryLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// DeliveryRecord is the append-only audit record of one delivery note.
// Deliveries are document-only; reserved stock leaves the ledger at invoicing.
type DeliveryRecord struct {
	ID          uuid.UUID       `json:"id"`
	Reference   string          `json:"reference"`
	Warehouse   enums.Warehouse `json:"warehouse,omitempty"`
	Lines       []DeliveryLine  `json:"lines"`
	ActorID     uuid.UUID       `json:"actor_id"`
	DeliveredAt time.Time       `json:"delivered_at"`
}

// InvoiceLine is one invoiced line within a sales invoice.
type InvoiceLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// InvoiceRecord is the append-only audit record of one sales invoice.
type InvoiceRecord struct {
	ID         string          `json:"id"`
	Lines      []InvoiceLine   `json:"lines"`
	Amount     decimal.Decimal `json:"amount"`
	Tax        decimal.Decimal `json:"tax"`
	ActorID    uuid.UUID       `json:"actor_id"`
	InvoicedAt time.Time       `json:"invoiced_at"`
}

// LogEntry is one line of the order's append-only activity trail.
type LogEntry struct {
	Action  string    `json:"action"`
	Note    string    `json:"note,omitempty"`
	ActorID uuid.UUID `json:"actor_id"`
	At      time.Time `json:"at"`
}

// Order is a company-scoped sales document from quotation through invoicing.
// Cancellation releases the unsold reservation and freezes the document.
type Order struct {
	ID              uuid.UUID           `json:"id"`
	CompanyID       uuid.UUID           `json:"company_id"`
	DocumentNo      string              `json:"document_no"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	ContactID       uuid.UUID           `json:"contact_id"`
	CustomerName    string              `json:"customer_name"`
	Status          enums.SalesStatus   `json:"status"`
	SourceWarehouse enums.Warehouse     `json:"source_warehouse"`
	Items           []LineItem          `json:"items"`
	DeliveryHistory []DeliveryRecord    `json:"delivery_history"`
	InvoiceHistory  []InvoiceRecord     `json:"invoice_history"`
	Logs            []LogEntry          `json:"logs"`
	GrandTotal      decimal.Decimal     `json:"grand_total"`
	AmountReceived  decimal.Decimal     `json:"amount_received"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	// Historical marks a migrated shadow document that skips every stock and
	// accounting side effect.
	Historical bool      `json:"historical"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// source is the bucket stock is reserved from, defaulting to godown for
// documents restored without one.
func (o *Order) source() enums.Warehouse {
	if o.SourceWarehouse == "" {
		return enums.WarehouseGodown
	}
	return o.SourceWarehouse
}

func (o *Order) line(productID uuid.UUID) *LineItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

func (o *Order) aggregates() (ordered, delivered, invoiced int) {
	for _, item := range o.Items {
		ordered += item.OrderedQty
		delivered += item.DeliveredQty
		invoiced += item.InvoicedQty
	}
	return ordered, delivered, invoiced
}

func (o *Order) appendLog(action, note string, actorID uuid.UUID, at time.Time) {
	o.Logs = append(o.Logs, LogEntry{Action: action, Note: note, ActorID: actorID, At: at})
}
