package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/enums"
)

// Payment is one payment attempt, keyed by the gateway's order id. Its
// lifecycle is independent of the Order it references: an order can outlive
// failed attempts and a payment record survives order status changes.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayOrderID   string              `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	Method           enums.PaymentMethod `gorm:"column:method;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	AmountCents      int                 `gorm:"column:amount_cents;not null"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
