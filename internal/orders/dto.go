package orders

import (
	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

// Actor identifies who is performing an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// CreateOrderItemInput is one requested line at checkout.
type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Qty       int
	Selection map[string]string
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	BuyerID             uuid.UUID
	Items               []CreateOrderItemInput
	DeliveryAddress     types.AddressSnapshot
	PaymentMethod       enums.PaymentMethod
	DeliveryChargeCents int
	DiscountCents       int
}

// AdvanceInput moves an order to a new fulfillment status.
type AdvanceInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Note    string
	Actor   Actor
}

// CancelInput requests cancellation of an order that has not shipped.
type CancelInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   Actor
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status *enums.OrderStatus
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}
