package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

// ProductVariant is one concrete attribute combination of a product with its
// own price and stock. Identity for order matching is the attribute set, not
// the row id. Attributes are lowercased on write; LegacySize carries the old
// flat size field still present on rows imported from the previous catalog.
type ProductVariant struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        *string            `gorm:"column:sku"`
	Attributes types.AttributeMap `gorm:"column:attributes;type:jsonb;serializer:json"`
	LegacySize *string            `gorm:"column:legacy_size"`
	PriceCents int                `gorm:"column:price_cents;not null"`
	Stock      int                `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
