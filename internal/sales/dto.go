package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuotationLineInput is one requested line of a new quotation. Discount is a
// per-unit amount off the price.
type QuotationLineInput struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	Description string          `json:"description"`
	OrderedQty  int             `json:"ordered_qty" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	GSTEnabled  bool            `json:"gst_enabled"`
	GSTRate     decimal.Decimal `json:"gst_rate"`
}

// CreateQuotationInput captures the data required to open a sales document.
// Warehouse is the source bucket stock is reserved from at confirmation;
// empty means godown.
type CreateQuotationInput struct {
	DocumentNo   string               `json:"document_no" validate:"required"`
	CustomerID   uuid.UUID            `json:"customer_id" validate:"required"`
	ContactID    uuid.UUID            `json:"contact_id"`
	CustomerName string               `json:"customer_name" validate:"required"`
	Warehouse    string               `json:"warehouse"`
	Items        []QuotationLineInput `json:"items" validate:"required,min=1,dive"`
	Historical   bool                 `json:"historical"`
	ActorID      uuid.UUID            `json:"actor_id"`
}

// UpdateQuotationInput replaces the line set of an unconfirmed quotation.
type UpdateQuotationInput struct {
	Items   []QuotationLineInput `json:"items" validate:"required,min=1,dive"`
	ActorID uuid.UUID            `json:"actor_id"`
}

// DeliveryLineInput is one delivered line of a delivery note.
type DeliveryLineInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// RecordDeliveryInput captures a delivery note against a confirmed order.
// Warehouse is informational on the note; deliveries never move stock.
type RecordDeliveryInput struct {
	Reference string              `json:"reference" validate:"required"`
	Warehouse string              `json:"warehouse"`
	Lines     []DeliveryLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorID   uuid.UUID           `json:"actor_id"`
}

// InvoiceLineInput is one invoiced line of a sales invoice.
type InvoiceLineInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// CreateInvoiceInput captures an incremental sales invoice.
type CreateInvoiceInput struct {
	Lines   []InvoiceLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorID uuid.UUID          `json:"actor_id"`
}

// PaymentInput records money received against the order.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	AccountID uuid.UUID       `json:"account_id"`
	Reference string          `json:"reference"`
}
