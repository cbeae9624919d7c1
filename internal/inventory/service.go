package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

// ResolvedLine is a priced, stocked line for one requested product/selection.
type ResolvedLine struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	SellerID       uuid.UUID
	Title          string
	ImageURL       string
	UnitPriceCents int
	Stock          int
	Selection      types.AttributeMap
}

// StockRef identifies the row whose stock a decrement/restore targets.
func (l ResolvedLine) StockRef() StockRef {
	return StockRef{ProductID: l.ProductID, VariantID: l.VariantID}
}

// StockRef points at either a flat product stock or a single variant stock.
type StockRef struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

// Service resolves product selections to stocked lines and performs the
// stock mutations of the order flow. All methods run against the caller's
// transaction so a multi-line order commits or rolls back as a unit.
type Service struct{}

// NewService builds the inventory resolver.
func NewService() *Service {
	return &Service{}
}

// Resolve maps a product id plus optional variant selection to a priced line.
func (s *Service) Resolve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, selection map[string]string) (*ResolvedLine, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	var product models.Product
	err := tx.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if !product.HasVariants {
		return &ResolvedLine{
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			Title:          product.Title,
			ImageURL:       product.ImageURL,
			UnitPriceCents: product.PriceCents,
			Stock:          product.Stock,
		}, nil
	}

	if len(selection) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSelection, "product requires a variant selection").
			WithDetails(map[string]any{"product_id": productID})
	}

	variant := matchVariant(product.Variants, selection)
	if variant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSelection, "no variant matches the requested selection").
			WithDetails(map[string]any{"product_id": productID, "selection": selection})
	}

	variantID := variant.ID
	return &ResolvedLine{
		ProductID:      product.ID,
		VariantID:      &variantID,
		SellerID:       product.SellerID,
		Title:          product.Title,
		ImageURL:       product.ImageURL,
		UnitPriceCents: variant.PriceCents,
		Stock:          variant.Stock,
		Selection:      types.NormalizeAttributes(selection),
	}, nil
}

// matchVariant walks the fallback chain for catalogs whose sellers named
// attributes freely: exact key, case-insensitive key, case-insensitive value
// ignoring keys, then the legacy flat size column. New variants are
// normalized on write, so well-formed rows match on the first step.
func matchVariant(variants []models.ProductVariant, selection map[string]string) *models.ProductVariant {
	for i := range variants {
		if attributesMatchExact(variants[i].Attributes, selection) {
			return &variants[i]
		}
	}
	for i := range variants {
		if attributesMatchFold(variants[i].Attributes, selection) {
			return &variants[i]
		}
	}
	for i := range variants {
		if attributesContainValues(variants[i].Attributes, selection) {
			return &variants[i]
		}
	}
	if len(selection) == 1 {
		for _, want := range selection {
			for i := range variants {
				if variants[i].LegacySize != nil && strings.EqualFold(*variants[i].LegacySize, want) {
					return &variants[i]
				}
			}
		}
	}
	return nil
}

func attributesMatchExact(attrs types.AttributeMap, selection map[string]string) bool {
	if len(attrs) == 0 {
		return false
	}
	for key, want := range selection {
		got, ok := attrs[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func attributesMatchFold(attrs types.AttributeMap, selection map[string]string) bool {
	if len(attrs) == 0 {
		return false
	}
	for key, want := range selection {
		got, ok := attrs.Lookup(key)
		if !ok || !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

func attributesContainValues(attrs types.AttributeMap, selection map[string]string) bool {
	if len(attrs) == 0 {
		return false
	}
	for _, want := range selection {
		if !attrs.ContainsValue(want) {
			return false
		}
	}
	return true
}

// Decrement atomically reduces stock for the referenced row. The guard is a
// single conditional UPDATE, so two concurrent orders on the same scarce
// stock can never both pass the check.
func (s *Service) Decrement(ctx context.Context, tx *gorm.DB, ref StockRef, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	if ref.VariantID != nil {
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND stock >= ?", *ref.VariantID, qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement variant stock")
		}
		if res.RowsAffected == 0 {
			return s.insufficientStock(ctx, tx, ref)
		}
		return s.recomputeAggregate(ctx, tx, ref.ProductID)
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", ref.ProductID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement product stock")
	}
	if res.RowsAffected == 0 {
		return s.insufficientStock(ctx, tx, ref)
	}
	return nil
}

// Restore adds stock back for a cancelled or returned line. Restores are
// unconditionally additive and never fail on quantity.
func (s *Service) Restore(ctx context.Context, tx *gorm.DB, ref StockRef, qty int) error {
	if qty <= 0 {
		return nil
	}

	if ref.VariantID != nil {
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ?", *ref.VariantID).
			UpdateColumn("stock", gorm.Expr("stock + ?", qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore variant stock")
		}
		return s.recomputeAggregate(ctx, tx, ref.ProductID)
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", ref.ProductID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore product stock")
	}
	return nil
}

// recomputeAggregate keeps the parent product's display stock in sync with
// the sum of its variant stocks.
func (s *Service) recomputeAggregate(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	err := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = (
			SELECT COALESCE(SUM(stock), 0)
			FROM product_variants
			WHERE product_id = ?
		)
		WHERE id = ?
	`, productID, productID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute aggregate stock")
	}
	return nil
}

func (s *Service) insufficientStock(ctx context.Context, tx *gorm.DB, ref StockRef) error {
	details := map[string]any{"product_id": ref.ProductID}

	var product models.Product
	if err := tx.WithContext(ctx).Select("title", "stock").Where("id = ?", ref.ProductID).First(&product).Error; err == nil {
		details["title"] = product.Title
		details["available"] = product.Stock
	}
	if ref.VariantID != nil {
		var variant models.ProductVariant
		if err := tx.WithContext(ctx).Select("stock").Where("id = ?", *ref.VariantID).First(&variant).Error; err == nil {
			details["available"] = variant.Stock
		}
	}

	title, _ := details["title"].(string)
	msg := "insufficient stock"
	if title != "" {
		msg = "insufficient stock for " + title
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(details)
}
