package enums

import "fmt"

// PurchaseStatus tracks the lifecycle of a purchase document.
type PurchaseStatus string

const (
	PurchaseStatusRFQ          PurchaseStatus = "rfq"
	PurchaseStatusPO           PurchaseStatus = "po"
	PurchaseStatusGRNPartial   PurchaseStatus = "grn_partial"
	PurchaseStatusGRNCompleted PurchaseStatus = "grn_completed"
	PurchaseStatusBilled       PurchaseStatus = "billed"
	PurchaseStatusCancelled    PurchaseStatus = "cancelled"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusRFQ,
	PurchaseStatusPO,
	PurchaseStatusGRNPartial,
	PurchaseStatusGRNCompleted,
	PurchaseStatusBilled,
	PurchaseStatusCancelled,
}

// String implements fmt.Stringer.
func (p PurchaseStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PurchaseStatus.
func (p PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the document accepts no further mutations.
func (p PurchaseStatus) IsTerminal() bool {
	return p == PurchaseStatusBilled || p == PurchaseStatusCancelled
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
