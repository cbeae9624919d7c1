package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
)

// SellerDirectory resolves the seller identity and pickup address a shipment
// needs.
type SellerDirectory interface {
	FindSeller(ctx context.Context, sellerID uuid.UUID) (*models.User, error)
	FindSellerAddress(ctx context.Context, sellerID uuid.UUID) (*models.Address, error)
}

type sellerDirectory struct {
	db *gorm.DB
}

// NewSellerDirectory builds a directory backed by the users and addresses
// tables.
func NewSellerDirectory(conn *gorm.DB) SellerDirectory {
	return &sellerDirectory{db: conn}
}

func (d *sellerDirectory) FindSeller(ctx context.Context, sellerID uuid.UUID) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("id = ?", sellerID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *sellerDirectory) FindSellerAddress(ctx context.Context, sellerID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := d.db.WithContext(ctx).
		Where("user_id = ?", sellerID).
		Order("is_default DESC, created_at ASC").
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}
