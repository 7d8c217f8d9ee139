package purchases

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RFQLineInput is one requested line of a new RFQ.
type RFQLineInput struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	Description string          `json:"description"`
	OrderedQty  int             `json:"ordered_qty" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	GSTEnabled  bool            `json:"gst_enabled"`
	GSTRate     decimal.Decimal `json:"gst_rate"`
}

// CreateRFQInput captures the data required to open a purchase document.
type CreateRFQInput struct {
	DocumentNo string         `json:"document_no" validate:"required"`
	SupplierID uuid.UUID      `json:"supplier_id" validate:"required"`
	ContactID  uuid.UUID      `json:"contact_id"`
	PartyName  string         `json:"party_name" validate:"required"`
	Items      []RFQLineInput `json:"items" validate:"required,min=1,dive"`
	Historical bool           `json:"historical"`
	ActorID    uuid.UUID      `json:"actor_id"`
}

// GRNDeliveryInput is one delivered line of a goods receipt.
type GRNDeliveryInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// RecordGRNInput captures a goods receipt against a confirmed PO.
type RecordGRNInput struct {
	Reference  string             `json:"reference" validate:"required"`
	Warehouse  string             `json:"warehouse" validate:"required"`
	Deliveries []GRNDeliveryInput `json:"deliveries" validate:"required,min=1,dive"`
	ActorID    uuid.UUID          `json:"actor_id"`
}

// BillItemInput is one billed line of a vendor bill.
type BillItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// CreateBillInput captures an incremental vendor bill.
type CreateBillInput struct {
	BillNo  string          `json:"bill_no" validate:"required"`
	Items   []BillItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID uuid.UUID       `json:"actor_id"`
}

// PaymentInput records money paid against the document.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	AccountID uuid.UUID       `json:"account_id"`
	Reference string          `json:"reference"`
}
