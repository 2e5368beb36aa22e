package enums

import "fmt"

// AccountKind distinguishes human holders from service integrations.
// Service accounts may expose a receiver endpoint that safe transfers probe.
type AccountKind string

const (
	AccountKindUser    AccountKind = "user"
	AccountKindService AccountKind = "service"
)

var validAccountKinds = []AccountKind{AccountKindUser, AccountKindService}

// IsValid reports whether the value matches the canonical account kind enum.
func (k AccountKind) IsValid() bool {
	for _, candidate := range validAccountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAccountKind converts raw input into AccountKind.
func ParseAccountKind(value string) (AccountKind, error) {
	for _, candidate := range validAccountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account kind %q", value)
}
