package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateProduct OutboxAggregateType = "product"
	AggregateLicense OutboxAggregateType = "license"
	AggregateAccount OutboxAggregateType = "account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProduct,
	AggregateLicense,
	AggregateAccount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventProductCreated           OutboxEventType = "product_created"
	EventProductInventoryAdjusted OutboxEventType = "product_inventory_adjusted"
	EventProductPriceChanged      OutboxEventType = "product_price_changed"
	EventProductRenewableChanged  OutboxEventType = "product_renewable_changed"
	EventLicenseIssued            OutboxEventType = "license_issued"
	EventLicenseRenewal           OutboxEventType = "license_renewal"
	EventApproval                 OutboxEventType = "approval"
	EventApprovalForAll           OutboxEventType = "approval_for_all"
	EventTransfer                 OutboxEventType = "transfer"
)

var validOutboxEventTypes = []OutboxEventType{
	EventProductCreated,
	EventProductInventoryAdjusted,
	EventProductPriceChanged,
	EventProductRenewableChanged,
	EventLicenseIssued,
	EventLicenseRenewal,
	EventApproval,
	EventApprovalForAll,
	EventTransfer,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
