package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry scoped to one company.
type Product struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TrackInventory bool            `json:"track_inventory"`
	// Historical marks migrated shadow records excluded from the live catalog
	// and from all stock and accounting side effects.
	Historical bool      `json:"historical"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParticipatesInStock reports whether ledger mutations apply to the product.
func (p Product) ParticipatesInStock() bool {
	return p.TrackInventory && !p.Historical
}
