package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

// OrderItem is the snapshot of one purchased line: title, unit price and
// image are copied from the catalog at purchase time.
type OrderItem struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID         `gorm:"column:variant_id;type:uuid"`
	Title          string             `gorm:"column:title;not null"`
	ImageURL       string             `gorm:"column:image_url;not null;default:''"`
	UnitPriceCents int                `gorm:"column:unit_price_cents;not null"`
	Qty            int                `gorm:"column:qty;not null"`
	Selection      types.AttributeMap `gorm:"column:selection;type:jsonb;serializer:json"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}
