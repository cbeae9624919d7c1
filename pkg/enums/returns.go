package enums

import "fmt"

// ReturnStatus tracks the seller's decision on a return request.
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "pending"
	ReturnStatusApproved ReturnStatus = "approved"
	ReturnStatusRejected ReturnStatus = "rejected"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusRejected,
}

// String implements fmt.Stringer.
func (r ReturnStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// PickupStatus tracks the reverse-logistics sub-states of an approved return.
// The chain is strictly forward: pending → scheduled → out_for_pickup →
// picked_up → in_transit → received_by_seller.
type PickupStatus string

const (
	PickupStatusPending          PickupStatus = "pending"
	PickupStatusScheduled        PickupStatus = "scheduled"
	PickupStatusOutForPickup     PickupStatus = "out_for_pickup"
	PickupStatusPickedUp         PickupStatus = "picked_up"
	PickupStatusInTransit        PickupStatus = "in_transit"
	PickupStatusReceivedBySeller PickupStatus = "received_by_seller"
)

var pickupStatusOrder = []PickupStatus{
	PickupStatusPending,
	PickupStatusScheduled,
	PickupStatusOutForPickup,
	PickupStatusPickedUp,
	PickupStatusInTransit,
	PickupStatusReceivedBySeller,
}

// String implements fmt.Stringer.
func (p PickupStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PickupStatus.
func (p PickupStatus) IsValid() bool {
	return p.rank() >= 0
}

// ParsePickupStatus converts raw input into a PickupStatus.
func ParsePickupStatus(value string) (PickupStatus, error) {
	for _, candidate := range pickupStatusOrder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup status %q", value)
}

// CanAdvanceTo reports whether target is strictly later in the pickup chain.
func (p PickupStatus) CanAdvanceTo(target PickupStatus) bool {
	current, next := p.rank(), target.rank()
	return current >= 0 && next >= 0 && next > current
}

func (p PickupStatus) rank() int {
	for i, candidate := range pickupStatusOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}
