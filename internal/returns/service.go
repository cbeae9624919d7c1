package returns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/inventory"
	"github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReturnShipper books the reverse shipment when a return is approved.
type ReturnShipper interface {
	CreateReturnShipment(ctx context.Context, order *models.Order) (*types.ShipmentInfo, error)
}

// Service drives the post-delivery return flow on an order.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Order, error)
	Decide(ctx context.Context, input DecideInput) (*models.Order, error)
	UpdatePickup(ctx context.Context, input PickupInput) (*models.Order, error)
}

// RequestInput is a buyer's return request on a delivered order.
type RequestInput struct {
	OrderID uuid.UUID
	Reason  string
	Images  []string
	Video   string
	Actor   orders.Actor
}

// Decision is the seller's verdict on a return request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecideInput carries the seller's decision on a pending return.
type DecideInput struct {
	OrderID         uuid.UUID
	Decision        Decision
	RejectionReason string
	Actor           orders.Actor
}

// PickupInput moves the reverse-logistics chain forward.
type PickupInput struct {
	OrderID uuid.UUID
	Target  enums.PickupStatus
	Actor   orders.Actor
}

type service struct {
	repo      orders.Repository
	tx        txRunner
	inventory orders.Inventory
	shipper   ReturnShipper
	log       *logger.Logger
	now       func() time.Time
}

// NewService builds the return service. The shipper is optional; without one
// approved returns simply skip carrier booking.
func NewService(repo orders.Repository, tx txRunner, inv orders.Inventory, shipper ReturnShipper, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inv,
		shipper:   shipper,
		log:       log,
		now:       time.Now,
	}, nil
}

// Request opens a return on a delivered order. One return per order; repeat
// requests conflict regardless of the outcome of the first.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if loaded.BuyerID != input.Actor.UserID && input.Actor.Role != enums.ActorRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
		}
		if loaded.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned").
				WithDetails(map[string]any{"status": loaded.Status})
		}
		if loaded.HasReturnRequest() {
			return pkgerrors.New(pkgerrors.CodeConflict, "a return was already requested for this order")
		}

		request := &types.ReturnRequest{
			IsRequested: true,
			Reason:      input.Reason,
			Status:      enums.ReturnStatusPending.String(),
			RequestedAt: s.now().UTC(),
			Images:      input.Images,
			Video:       input.Video,
		}
		if err := repo.UpdateOrder(ctx, loaded.ID, map[string]any{"return_request": request}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save return request")
		}

		loaded.ReturnRequest = request
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Decide settles a pending return. Rejection needs a reason so the buyer
// learns why; approval schedules the pickup and books the reverse shipment
// when a carrier is wired. Carrier failure does not undo the approval.
func (s *service) Decide(ctx context.Context, input DecideInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Decision != DecisionApprove && input.Decision != DecisionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}
	if input.Decision == DecisionReject && strings.TrimSpace(input.RejectionReason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeSeller(loaded, input.Actor); err != nil {
			return err
		}
		if !loaded.HasReturnRequest() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no return requested on this order")
		}
		request := loaded.ReturnRequest
		if request.Status != enums.ReturnStatusPending.String() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return request already decided").
				WithDetails(map[string]any{"status": request.Status})
		}

		now := s.now().UTC()
		request.DecidedAt = &now
		if input.Decision == DecisionReject {
			request.Status = enums.ReturnStatusRejected.String()
			request.RejectionReason = input.RejectionReason
		} else {
			request.Status = enums.ReturnStatusApproved.String()
			request.PickupStatus = enums.PickupStatusScheduled.String()
		}

		if err := repo.UpdateOrder(ctx, loaded.ID, map[string]any{"return_request": request}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save return decision")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.ReturnRequest.Status == enums.ReturnStatusApproved.String() && s.shipper != nil {
		s.bookReturnShipment(ctx, order)
	}
	return order, nil
}

// bookReturnShipment is best effort. The pickup can still be run manually if
// the carrier rejects the booking.
func (s *service) bookReturnShipment(ctx context.Context, order *models.Order) {
	lctx := s.log.WithOrderID(ctx, order.ID.String())
	info, err := s.shipper.CreateReturnShipment(ctx, order)
	if err != nil {
		s.log.Error(lctx, "book return shipment", err)
		return
	}
	order.ReturnRequest.ShiprocketReturn = info
	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{"return_request": order.ReturnRequest}); err != nil {
		s.log.Error(lctx, "save return shipment info", err)
	}
}

// UpdatePickup advances the reverse-logistics chain. The chain only moves
// forward; reaching received_by_seller restores stock and closes the order
// as returned in the same transaction.
func (s *service) UpdatePickup(ctx context.Context, input PickupInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pickup status")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeSeller(loaded, input.Actor); err != nil {
			return err
		}
		if !loaded.HasReturnRequest() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no return requested on this order")
		}
		request := loaded.ReturnRequest
		if request.Status != enums.ReturnStatusApproved.String() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return is not approved")
		}
		current, err := enums.ParsePickupStatus(request.PickupStatus)
		if err != nil {
			current = enums.PickupStatusPending
		}
		if !current.CanAdvanceTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup status can only move forward").
				WithDetails(map[string]any{"current": current, "target": input.Target})
		}

		request.PickupStatus = input.Target.String()
		updates := map[string]any{"return_request": request}

		if input.Target == enums.PickupStatusReceivedBySeller {
			for _, item := range loaded.Items {
				ref := inventory.StockRef{ProductID: item.ProductID, VariantID: item.VariantID}
				if err := s.inventory.Restore(ctx, tx, ref, item.Qty); err != nil {
					return err
				}
			}
			now := s.now().UTC()
			request.CompletedAt = &now
			history := loaded.StatusHistory.Append(types.StatusHistoryEntry{
				Status:    enums.OrderStatusReturned.String(),
				Note:      "Return received by seller",
				Actor:     input.Actor.Role.String(),
				Timestamp: now,
			})
			updates["status"] = enums.OrderStatusReturned
			updates["status_history"] = history
			loaded.Status = enums.OrderStatusReturned
			loaded.StatusHistory = history
		}

		if err := repo.UpdateOrder(ctx, loaded.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pickup status")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) loadOrder(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func authorizeSeller(order *models.Order, actor orders.Actor) error {
	if actor.Role == enums.ActorRoleAdmin {
		return nil
	}
	if actor.Role == enums.ActorRoleSeller && order.SellerID == actor.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can act on this return")
}
