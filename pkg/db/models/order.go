package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

// Order is the immutable record produced at checkout. Line items, pricing and
// the delivery address are snapshots; later catalog or address edits never
// flow back into an existing order. Mutable state is confined to status,
// history, payment flags and the cancellation/return/shipment sub-documents.
type Order struct {
	ID                  uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string                   `gorm:"column:order_number;not null;uniqueIndex"`
	BuyerID             uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID            uuid.UUID                `gorm:"column:seller_id;type:uuid;not null;index"`
	SubtotalCents       int                      `gorm:"column:subtotal_cents;not null"`
	DeliveryChargeCents int                      `gorm:"column:delivery_charge_cents;not null;default:0"`
	DiscountCents       int                      `gorm:"column:discount_cents;not null;default:0"`
	TotalCents          int                      `gorm:"column:total_cents;not null"`
	DeliveryAddress     types.AddressSnapshot    `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	PaymentMethod       enums.PaymentMethod      `gorm:"column:payment_method;not null;default:'cod'"`
	PaymentStatus       enums.OrderPaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	IsPaid              bool                     `gorm:"column:is_paid;not null;default:false"`
	Status              enums.OrderStatus        `gorm:"column:status;not null;default:'pending'"`
	StatusHistory       types.StatusHistory      `gorm:"column:status_history;type:jsonb;serializer:json"`
	Cancellation        *types.Cancellation      `gorm:"column:cancellation;type:jsonb;serializer:json"`
	ReturnRequest       *types.ReturnRequest     `gorm:"column:return_request;type:jsonb;serializer:json"`
	Shiprocket          *types.ShipmentInfo      `gorm:"column:shiprocket;type:jsonb;serializer:json"`
	ExpectedDelivery    *time.Time               `gorm:"column:expected_delivery"`
	ActualDelivery      *time.Time               `gorm:"column:actual_delivery"`
	Items               []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// HasReturnRequest reports whether a return was ever requested on the order.
func (o *Order) HasReturnRequest() bool {
	return o != nil && o.ReturnRequest != nil && o.ReturnRequest.IsRequested
}
