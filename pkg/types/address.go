package types

import "strings"

// AddressSnapshot is the delivery address copied onto an order at checkout.
// It is intentionally detached from the live address book so later edits do
// not rewrite where an already-placed order ships.
type AddressSnapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country,omitempty"`
}

// IsZero reports whether the snapshot carries no usable address.
func (a AddressSnapshot) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.Pincode) == ""
}
