package enums

import "fmt"

// SalesStatus tracks the lifecycle of a sales document.
type SalesStatus string

const (
	SalesStatusQuotation          SalesStatus = "quotation"
	SalesStatusQuotationSent      SalesStatus = "quotation_sent"
	SalesStatusOrder              SalesStatus = "sales_order"
	SalesStatusPartiallyDelivered SalesStatus = "partially_delivered"
	SalesStatusFullyDelivered     SalesStatus = "fully_delivered"
	SalesStatusPartiallyBilled    SalesStatus = "partially_billed"
	SalesStatusFullyBilled        SalesStatus = "fully_billed"
	SalesStatusCancelled          SalesStatus = "cancelled"
)

var validSalesStatuses = []SalesStatus{
	SalesStatusQuotation,
	SalesStatusQuotationSent,
	SalesStatusOrder,
	SalesStatusPartiallyDelivered,
	SalesStatusFullyDelivered,
	SalesStatusPartiallyBilled,
	SalesStatusFullyBilled,
	SalesStatusCancelled,
}

// String implements fmt.Stringer.
func (s SalesStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SalesStatus.
func (s SalesStatus) IsValid() bool {
	for _, candidate := range validSalesStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsQuotation reports whether the document is still editable quotation state.
func (s SalesStatus) IsQuotation() bool {
	return s == SalesStatusQuotation || s == SalesStatusQuotationSent
}

// IsConfirmed reports whether stock has been reserved for the document.
func (s SalesStatus) IsConfirmed() bool {
	switch s {
	case SalesStatusOrder, SalesStatusPartiallyDelivered, SalesStatusFullyDelivered,
		SalesStatusPartiallyBilled, SalesStatusFullyBilled:
		return true
	}
	return false
}

// IsCancellable reports whether the document may still be cancelled. A fully
// billed order is settled and stays; partial billing only freezes the
// invoiced quantity.
func (s SalesStatus) IsCancellable() bool {
	switch s {
	case SalesStatusOrder, SalesStatusPartiallyDelivered, SalesStatusFullyDelivered,
		SalesStatusPartiallyBilled:
		return true
	}
	return false
}

// ParseSalesStatus converts raw input into a SalesStatus.
func ParseSalesStatus(value string) (SalesStatus, error) {
	for _, candidate := range validSalesStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sales status %q", value)
}
