package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/pkg/db"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway is the slice of the payment gateway client this service needs.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.GatewayOrder, error)
	KeySecret() string
}

// Service handles payment intents and gateway callbacks.
type Service interface {
	CreateIntent(ctx context.Context, input IntentInput) (*IntentResult, error)
	Verify(ctx context.Context, input VerifyInput) (*models.Payment, error)
	RecordCOD(ctx context.Context, input CODInput) (*models.Payment, error)
	MarkCODCollected(ctx context.Context, input CODCollectedInput) (*models.Payment, error)
}

// IntentInput asks for a gateway order against an existing order.
type IntentInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

// IntentResult pairs the stored payment record with the gateway order the
// checkout page needs.
type IntentResult struct {
	Payment      *models.Payment
	GatewayOrder *razorpay.GatewayOrder
}

// VerifyInput is the signed callback payload after a gateway payment.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// CODInput opens the cash-on-delivery record for an order.
type CODInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

// CODCollectedInput marks cash as collected on delivery.
type CODCollectedInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	tx         txRunner
	gateway    Gateway
	now        func() time.Time
}

// NewService builds the payment service with the required dependencies.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, gateway Gateway) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		tx:         tx,
		gateway:    gateway,
		now:        time.Now,
	}, nil
}

// CreateIntent opens a gateway order for an online payment and stores the
// pending payment record keyed by the gateway's order id.
func (s *service) CreateIntent(ctx context.Context, input IntentInput) (*IntentResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.Actor.UserID && input.Actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not payable online")
	}
	if order.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderParams{
		AmountCents: order.TotalCents,
		Currency:    "INR",
		Receipt:     order.OrderNumber,
		Notes:       map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrder.ID,
		Method:         enums.PaymentMethodOnline,
		Status:         enums.PaymentStatusPending,
		AmountCents:    order.TotalCents,
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
	}
	return &IntentResult{Payment: payment, GatewayOrder: gatewayOrder}, nil
}

// Verify settles a gateway callback. Verification is idempotent: replaying a
// callback for an already-completed payment succeeds without touching
// anything, and a bad signature mutates nothing.
func (s *service) Verify(ctx context.Context, input VerifyInput) (*models.Payment, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature required")
	}

	payment, err := s.repo.FindPaymentByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusCompleted {
		return payment, nil
	}

	if !razorpay.VerifySignature(s.gateway.KeySecret(), input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "payment signature verification failed")
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":             enums.PaymentStatusCompleted,
			"gateway_payment_id": input.GatewayPaymentID,
			"paid_at":            now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
		}
		ordersRepo := s.ordersRepo.WithTx(tx)
		if err := ordersRepo.UpdateOrder(ctx, payment.OrderID, map[string]any{
			"payment_status": enums.OrderPaymentStatusPaid,
			"is_paid":        true,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment.Status = enums.PaymentStatusCompleted
	payment.GatewayPaymentID = &input.GatewayPaymentID
	payment.PaidAt = &now
	return payment, nil
}

// RecordCOD stores the pending cash-on-delivery record for a fresh order.
// COD never settles automatically; collection is reported explicitly.
func (s *service) RecordCOD(ctx context.Context, input CODInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != input.Actor.UserID && input.Actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
	}
	if order.PaymentMethod != enums.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not cash on delivery")
	}

	if existing, err := s.repo.FindLatestPaymentByOrder(ctx, order.ID); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded for order")
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: "cod_" + order.ID.String(),
		Method:         enums.PaymentMethodCOD,
		Status:         enums.PaymentStatusPending,
		AmountCents:    order.TotalCents,
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already recorded for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cod payment record")
	}
	return payment, nil
}

// MarkCODCollected settles the cash record once the courier hands over the
// money. Only the seller of the order or an admin may report collection.
func (s *service) MarkCODCollected(ctx context.Context, input CODCollectedInput) (*models.Payment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.Actor.Role != enums.ActorRoleAdmin &&
		(input.Actor.Role != enums.ActorRoleSeller || order.SellerID != input.Actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can report cash collection")
	}
	if order.PaymentMethod != enums.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not cash on delivery")
	}

	payment, err := s.repo.FindLatestPaymentByOrder(ctx, order.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusCompleted {
		return payment, nil
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":  enums.PaymentStatusCompleted,
			"paid_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete cod payment")
		}
		ordersRepo := s.ordersRepo.WithTx(tx)
		if err := ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status": enums.OrderPaymentStatusPaid,
			"is_paid":        true,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment.Status = enums.PaymentStatusCompleted
	payment.PaidAt = &now
	return payment, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.ordersRepo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
