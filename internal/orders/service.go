package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/inventory"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/pagination"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

const orderCounterName = "orders"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Inventory covers the stock operations the order flow needs. The concrete
// implementation lives in internal/inventory; tests substitute a stub.
type Inventory interface {
	Resolve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, selection map[string]string) (*inventory.ResolvedLine, error)
	Decrement(ctx context.Context, tx *gorm.DB, ref inventory.StockRef, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, ref inventory.StockRef, qty int) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error)
	Advance(ctx context.Context, input AdvanceInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
}

// Options tune order creation.
type Options struct {
	NumberPrefix    string
	DeliveryEtaDays int
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory Inventory
	opts      Options
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, inv Inventory, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "ORD"
	}
	if opts.DeliveryEtaDays <= 0 {
		opts.DeliveryEtaDays = 7
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inv,
		opts:      opts,
		now:       time.Now,
	}, nil
}

// Create places an order: every line is priced and decremented inside one
// transaction, so a failure on any line leaves no stock consumed.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if input.DeliveryAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var (
			sellerID uuid.UUID
			subtotal int
			items    []models.OrderItem
		)
		for _, item := range input.Items {
			line, err := s.inventory.Resolve(ctx, tx, item.ProductID, item.Selection)
			if err != nil {
				return err
			}
			if sellerID == uuid.Nil {
				sellerID = line.SellerID
			} else if line.SellerID != sellerID {
				return pkgerrors.New(pkgerrors.CodeValidation, "all items must belong to the same seller").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			if err := s.inventory.Decrement(ctx, tx, line.StockRef(), item.Qty); err != nil {
				return err
			}

			subtotal += line.UnitPriceCents * item.Qty
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				ProductID:      line.ProductID,
				VariantID:      line.VariantID,
				Title:          line.Title,
				ImageURL:       line.ImageURL,
				UnitPriceCents: line.UnitPriceCents,
				Qty:            item.Qty,
				Selection:      line.Selection,
			})
		}

		total := subtotal + input.DeliveryChargeCents - input.DiscountCents
		if total < 0 {
			total = 0
		}

		seq, err := repo.NextOrderSequence(ctx, orderCounterName)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		now := s.now().UTC()
		eta := now.AddDate(0, 0, s.opts.DeliveryEtaDays)
		created := &models.Order{
			ID:                  uuid.New(),
			OrderNumber:         fmt.Sprintf("%s%06d", s.opts.NumberPrefix, seq),
			BuyerID:             input.BuyerID,
			SellerID:            sellerID,
			SubtotalCents:       subtotal,
			DeliveryChargeCents: input.DeliveryChargeCents,
			DiscountCents:       input.DiscountCents,
			TotalCents:          total,
			DeliveryAddress:     input.DeliveryAddress,
			PaymentMethod:       input.PaymentMethod,
			PaymentStatus:       enums.OrderPaymentStatusPending,
			Status:              enums.OrderStatusPending,
			StatusHistory: types.StatusHistory{{
				Status:    enums.OrderStatusPending.String(),
				Note:      "Order placed",
				Actor:     enums.ActorRoleBuyer.String(),
				Timestamp: now,
			}},
			ExpectedDelivery: &eta,
		}
		if _, err := repo.CreateOrder(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].OrderID = created.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		created.Items = items
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := authorizeRead(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	list, err := s.repo.ListBuyerOrders(ctx, buyerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return list, nil
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}
	list, err := s.repo.ListSellerOrders(ctx, sellerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller orders")
	}
	return list, nil
}

// Advance sets the order's fulfillment status. Sellers may move freely
// between fulfillment states; cancellation and returns have their own guarded
// flows and are rejected here.
func (s *service) Advance(ctx context.Context, input AdvanceInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	switch input.Target {
	case enums.OrderStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "use the cancellation flow to cancel an order")
	case enums.OrderStatusReturned:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "orders become returned through the return flow")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorizeSeller(loaded, input.Actor); err != nil {
			return err
		}
		switch loaded.Status {
		case enums.OrderStatusCancelled, enums.OrderStatusReturned:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
		}
		if loaded.Status == input.Target {
			order = loaded
			return nil
		}

		now := s.now().UTC()
		history := loaded.StatusHistory.Append(types.StatusHistoryEntry{
			Status:    input.Target.String(),
			Note:      input.Note,
			Actor:     input.Actor.Role.String(),
			Timestamp: now,
		})
		updates := map[string]any{
			"status":         input.Target,
			"status_history": history,
		}
		if input.Target == enums.OrderStatusDelivered {
			updates["actual_delivery"] = now
		}
		if err := repo.UpdateOrder(ctx, loaded.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		loaded.Status = input.Target
		loaded.StatusHistory = history
		if input.Target == enums.OrderStatusDelivered {
			loaded.ActualDelivery = &now
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel rejects orders that already shipped and restores every line's stock
// in the same transaction that flips the status.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := authorizeCancel(loaded, input.Actor); err != nil {
			return err
		}
		if !loaded.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": loaded.Status})
		}

		for _, item := range loaded.Items {
			ref := inventory.StockRef{ProductID: item.ProductID, VariantID: item.VariantID}
			if err := s.inventory.Restore(ctx, tx, ref, item.Qty); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		history := loaded.StatusHistory.Append(types.StatusHistoryEntry{
			Status:    enums.OrderStatusCancelled.String(),
			Note:      input.Reason,
			Actor:     input.Actor.Role.String(),
			Timestamp: now,
		})
		cancellation := &types.Cancellation{
			Reason:      input.Reason,
			CancelledBy: input.Actor.Role.String(),
			CancelledAt: now,
		}
		updates := map[string]any{
			"status":         enums.OrderStatusCancelled,
			"status_history": history,
			"cancellation":   cancellation,
		}
		if err := repo.UpdateOrder(ctx, loaded.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		loaded.Status = enums.OrderStatusCancelled
		loaded.StatusHistory = history
		loaded.Cancellation = cancellation
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func authorizeRead(order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID == actor.UserID {
			return nil
		}
	case enums.ActorRoleSeller:
		if order.SellerID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
}

func authorizeSeller(order *models.Order, actor Actor) error {
	if actor.Role == enums.ActorRoleAdmin {
		return nil
	}
	if actor.Role == enums.ActorRoleSeller && order.SellerID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can update this order")
}

func authorizeCancel(order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleAdmin:
		return nil
	case enums.ActorRoleBuyer:
		if order.BuyerID == actor.UserID {
			return nil
		}
	case enums.ActorRoleSeller:
		if order.SellerID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
}
