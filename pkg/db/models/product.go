package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a seller listing. Pricing is either flat (PriceCents/Stock) or
// variant-driven, discriminated by HasVariants. For variant products Stock is
// a maintained aggregate of the variant stocks, kept only for display.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID        `gorm:"column:seller_id;type:uuid;not null"`
	Title       string           `gorm:"column:title;not null"`
	Description *string          `gorm:"column:description"`
	ImageURL    string           `gorm:"column:image_url;not null;default:''"`
	HasVariants bool             `gorm:"column:has_variants;not null;default:false"`
	PriceCents  int              `gorm:"column:price_cents;not null;default:0"`
	Stock       int              `gorm:"column:stock;not null;default:0"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
