package enums

import "fmt"

// Warehouse identifies a logical stock bucket.
type Warehouse string

const (
	WarehouseGodown     Warehouse = "godown"
	WarehouseDisplay    Warehouse = "display"
	WarehouseBooked     Warehouse = "booked"
	WarehouseRepair     Warehouse = "repair"
	WarehouseHistorical Warehouse = "historical"
)

var validWarehouses = []Warehouse{
	WarehouseGodown,
	WarehouseDisplay,
	WarehouseBooked,
	WarehouseRepair,
	WarehouseHistorical,
}

// String implements fmt.Stringer.
func (w Warehouse) String() string {
	return string(w)
}

// IsValid reports whether the value is a known Warehouse.
func (w Warehouse) IsValid() bool {
	for _, candidate := range validWarehouses {
		if candidate == w {
			return true
		}
	}
	return false
}

// IsSellable reports whether stock in the bucket counts toward sellable totals.
// Reserved, in-repair and archived stock is excluded.
func (w Warehouse) IsSellable() bool {
	return w == WarehouseGodown || w == WarehouseDisplay
}

// ParseWarehouse converts raw input into a Warehouse.
func ParseWarehouse(value string) (Warehouse, error) {
	for _, candidate := range validWarehouses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid warehouse %q", value)
}
