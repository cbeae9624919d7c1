package types

import "time"

// StatusHistoryEntry is one append-only record of an order status change.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusHistory is the ordered list of status changes. Entries are only ever
// appended; nothing rewrites past history.
type StatusHistory []StatusHistoryEntry

// Append returns the history with a new entry added.
func (h StatusHistory) Append(entry StatusHistoryEntry) StatusHistory {
	return append(h, entry)
}

// Cancellation records who cancelled an order and why.
type Cancellation struct {
	Reason      string    `json:"reason"`
	CancelledBy string    `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// ReturnRequest is the post-delivery return sub-document on an order.
type ReturnRequest struct {
	IsRequested     bool          `json:"is_requested"`
	Reason          string        `json:"reason"`
	Status          string        `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	PickupStatus    string        `json:"pickup_status,omitempty"`
	RequestedAt     time.Time     `json:"requested_at"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	Images          []string      `json:"images,omitempty"`
	Video           string        `json:"video,omitempty"`
	ShiprocketReturn *ShipmentInfo `json:"shiprocket_return,omitempty"`
}

// ShipmentInfo captures the carrier-side identifiers persisted on an order
// once a shipment exists.
type ShipmentInfo struct {
	CarrierOrderID  int64      `json:"carrier_order_id,omitempty"`
	ShipmentID      int64      `json:"shipment_id,omitempty"`
	AWBCode         string     `json:"awb_code,omitempty"`
	CourierName     string     `json:"courier_name,omitempty"`
	PickupLocation  string     `json:"pickup_location,omitempty"`
	PickupScheduled bool       `json:"pickup_scheduled,omitempty"`
	LabelURL        string     `json:"label_url,omitempty"`
	TrackingURL     string     `json:"tracking_url,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}
