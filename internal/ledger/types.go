package ledger

import (
	"time"

	"github.com/furniq/furniq-backend/pkg/enums"
	"github.com/google/uuid"
)

// Row is the quantity of one product in one warehouse bucket.
type Row struct {
	ProductID uuid.UUID       `json:"product_id"`
	CompanyID uuid.UUID       `json:"company_id"`
	Warehouse enums.Warehouse `json:"warehouse"`
	Quantity  int             `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transfer is the immutable audit record of a successful stock transfer.
// Created only as a side effect of a transfer; never mutated or deleted.
type Transfer struct {
	ID        uuid.UUID       `json:"id"`
	CompanyID uuid.UUID       `json:"company_id"`
	ProductID uuid.UUID       `json:"product_id"`
	From      enums.Warehouse `json:"from"`
	To        enums.Warehouse `json:"to"`
	Quantity  int             `json:"quantity"`
	Reference string          `json:"reference,omitempty"`
	ActorID   uuid.UUID       `json:"actor_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// ManualEntry records an out-of-workflow receipt or delivery applied directly
// against the ledger.
type ManualEntry struct {
	ID        uuid.UUID             `json:"id"`
	CompanyID uuid.UUID             `json:"company_id"`
	ProductID uuid.UUID             `json:"product_id"`
	Kind      enums.ManualEntryKind `json:"kind"`
	Warehouse enums.Warehouse       `json:"warehouse"`
	Quantity  int                   `json:"quantity"`
	Reference string                `json:"reference,omitempty"`
	Notes     string                `json:"notes,omitempty"`
	ActorID   uuid.UUID             `json:"actor_id"`
	CreatedAt time.Time             `json:"created_at"`
}

// TransferInput describes one requested stock transfer.
type TransferInput struct {
	ProductID uuid.UUID
	From      enums.Warehouse
	To        enums.Warehouse
	Qty       int
	Reference string
	ActorID   uuid.UUID
}

// Movement describes one requested single-warehouse mutation.
type Movement struct {
	ProductID uuid.UUID
	Warehouse enums.Warehouse
	Qty       int
}

// LineViolation reports one offending line of a rejected batch. The caller
// receives every violating line, not just the first.
type LineViolation struct {
	Line      int       `json:"line"`
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}
