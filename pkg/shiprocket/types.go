package shiprocket

import "fmt"

// OrderItem is one line of a carrier order payload.
type OrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

// OrderParams is the forward (or return) order payload sent to the carrier.
// Address roles are from the carrier's perspective: pickup is where the
// parcel is collected, the top-level address is where it is delivered.
type OrderParams struct {
	OrderID         string      `json:"order_id"`
	OrderDate       string      `json:"order_date"`
	PickupLocation  string      `json:"pickup_location,omitempty"`
	ChannelID       string      `json:"channel_id,omitempty"`
	BillingName     string      `json:"billing_customer_name"`
	BillingAddress  string      `json:"billing_address"`
	BillingCity     string      `json:"billing_city"`
	BillingState    string      `json:"billing_state"`
	BillingPincode  string      `json:"billing_pincode"`
	BillingCountry  string      `json:"billing_country"`
	BillingPhone    string      `json:"billing_phone"`
	ShippingIsBilling bool      `json:"shipping_is_billing"`
	Items           []OrderItem `json:"order_items"`
	PaymentMethod   string      `json:"payment_method"`
	SubTotal        float64     `json:"sub_total"`
	Length          float64     `json:"length"`
	Breadth         float64     `json:"breadth"`
	Height          float64     `json:"height"`
	Weight          float64     `json:"weight"`

	// Return orders carry an explicit pickup address instead of a
	// registered pickup location nickname.
	PickupName    string `json:"pickup_customer_name,omitempty"`
	PickupAddress string `json:"pickup_address,omitempty"`
	PickupCity    string `json:"pickup_city,omitempty"`
	PickupState   string `json:"pickup_state,omitempty"`
	PickupPincode string `json:"pickup_pincode,omitempty"`
	PickupCountry string `json:"pickup_country,omitempty"`
	PickupPhone   string `json:"pickup_phone,omitempty"`
}

// OrderResult is the carrier's identifier pair for a created shipment.
type OrderResult struct {
	OrderID    int64 `json:"order_id"`
	ShipmentID int64 `json:"shipment_id"`
}

// AWBResult carries the assigned airway bill.
type AWBResult struct {
	AWBCode     string `json:"awb_code"`
	CourierName string `json:"courier_name"`
}

// PickupLocationParams registers a named pickup point with the carrier.
type PickupLocationParams struct {
	PickupLocation string `json:"pickup_location"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	Country        string `json:"country"`
	PinCode        string `json:"pin_code"`
}

// LabelResult is the generated label document.
type LabelResult struct {
	LabelURL string `json:"label_url"`
}

// TrackingEvent is one scan in the shipment's movement history.
type TrackingEvent struct {
	Date     string `json:"date"`
	Activity string `json:"activity"`
	Location string `json:"location"`
}

// TrackResult is the carrier's current view of a shipment.
type TrackResult struct {
	TrackURL string          `json:"track_url"`
	ETD      string          `json:"etd"`
	Status   string          `json:"current_status"`
	Events   []TrackingEvent `json:"shipment_track_activities"`
}

// APIError is a non-2xx carrier response with its body message preserved so
// callers can branch on carrier-specific failure text.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("shiprocket: status %d: %s", e.StatusCode, e.Message)
}
