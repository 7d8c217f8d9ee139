package enums

import "fmt"

// ManualEntryKind classifies an out-of-workflow stock mutation.
type ManualEntryKind string

const (
	ManualEntryReceipt  ManualEntryKind = "receipt"
	ManualEntryDelivery ManualEntryKind = "delivery"
)

var validManualEntryKinds = []ManualEntryKind{
	ManualEntryReceipt,
	ManualEntryDelivery,
}

// String implements fmt.Stringer.
func (m ManualEntryKind) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ManualEntryKind.
func (m ManualEntryKind) IsValid() bool {
	for _, candidate := range validManualEntryKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseManualEntryKind converts raw input into a ManualEntryKind.
func ParseManualEntryKind(value string) (ManualEntryKind, error) {
	for _, candidate := range validManualEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid manual entry kind %q", value)
}
