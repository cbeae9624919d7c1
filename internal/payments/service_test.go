package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/pagination"
	"github.com/bazaarly/bazaarly-backend/pkg/razorpay"
)

type stubPaymentsRepo struct {
	payment        *models.Payment
	created        *models.Payment
	createErr      error
	paymentUpdates map[string]any
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPaymentsRepo) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = payment
	return payment, nil
}

func (s *stubPaymentsRepo) FindPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	if s.payment == nil || s.payment.GatewayOrderID != gatewayOrderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if s.payment == nil || s.payment.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentsRepo) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	if s.payment == nil || s.payment.ID != paymentID {
		return gorm.ErrRecordNotFound
	}
	s.paymentUpdates = updates
	return nil
}

type stubOrderStore struct {
	order        *models.Order
	orderUpdates map[string]any
}

func (s *stubOrderStore) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubOrderStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrderStore) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	panic("not implemented")
}

func (s *stubOrderStore) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrderStore) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrderStore) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubOrderStore) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubOrderStore) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	s.orderUpdates = updates
	return nil
}

func (s *stubOrderStore) NextOrderSequence(ctx context.Context, name string) (int64, error) {
	panic("not implemented")
}

type stubGateway struct {
	secret      string
	order       *razorpay.GatewayOrder
	err         error
	createCalls []razorpay.OrderParams
}

func (s *stubGateway) CreateOrder(ctx context.Context, params razorpay.OrderParams) (*razorpay.GatewayOrder, error) {
	s.createCalls = append(s.createCalls, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubGateway) KeySecret() string {
	return s.secret
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func onlineOrder(buyerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD000042",
		BuyerID:       buyerID,
		SellerID:      uuid.New(),
		TotalCents:    4400,
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.OrderPaymentStatusPending,
		Status:        enums.OrderStatusPending,
	}
}

func TestCreateIntentCreatesPendingPayment(t *testing.T) {
	buyerID := uuid.New()
	order := onlineOrder(buyerID)
	ordersRepo := &stubOrderStore{order: order}
	repo := &stubPaymentsRepo{}
	gateway := &stubGateway{
		secret: "secret",
		order:  &razorpay.GatewayOrder{ID: "order_rzp1", Amount: 4400, Currency: "INR", Status: "created"},
	}
	svc, err := NewService(repo, ordersRepo, stubTxRunner{}, gateway)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	result, err := svc.CreateIntent(context.Background(), IntentInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.GatewayOrder.ID != "order_rzp1" {
		t.Fatalf("unexpected gateway order %+v", result.GatewayOrder)
	}
	if repo.created == nil || repo.created.GatewayOrderID != "order_rzp1" {
		t.Fatalf("payment record not stored: %+v", repo.created)
	}
	if repo.created.Status != enums.PaymentStatusPending || repo.created.AmountCents != 4400 {
		t.Fatalf("unexpected payment record %+v", repo.created)
	}
	if len(gateway.createCalls) != 1 || gateway.createCalls[0].Receipt != "ORD000042" {
		t.Fatalf("unexpected gateway call %+v", gateway.createCalls)
	}
}

func TestCreateIntentForbiddenForOtherBuyer(t *testing.T) {
	order := onlineOrder(uuid.New())
	svc, _ := NewService(&stubPaymentsRepo{}, &stubOrderStore{order: order}, stubTxRunner{}, &stubGateway{secret: "s"})

	_, err := svc.CreateIntent(context.Background(), IntentInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCreateIntentRejectsCOD(t *testing.T) {
	buyerID := uuid.New()
	order := onlineOrder(buyerID)
	order.PaymentMethod = enums.PaymentMethodCOD
	svc, _ := NewService(&stubPaymentsRepo{}, &stubOrderStore{order: order}, stubTxRunner{}, &stubGateway{secret: "s"})

	_, err := svc.CreateIntent(context.Background(), IntentInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestVerifyCompletesPaymentAndOrder(t *testing.T) {
	order := onlineOrder(uuid.New())
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: "order_rzp9",
		Method:         enums.PaymentMethodOnline,
		Status:         enums.PaymentStatusPending,
		AmountCents:    order.TotalCents,
	}
	repo := &stubPaymentsRepo{payment: payment}
	ordersRepo := &stubOrderStore{order: order}
	gateway := &stubGateway{secret: "topsecret"}
	svc, _ := NewService(repo, ordersRepo, stubTxRunner{}, gateway)

	signature := razorpay.SignPayload("topsecret", "order_rzp9", "pay_123")
	verified, err := svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_rzp9",
		GatewayPaymentID: "pay_123",
		Signature:        signature,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if verified.Status != enums.PaymentStatusCompleted {
		t.Fatalf("unexpected status %s", verified.Status)
	}
	if verified.PaidAt == nil || verified.GatewayPaymentID == nil || *verified.GatewayPaymentID != "pay_123" {
		t.Fatalf("payment not settled: %+v", verified)
	}
	if repo.paymentUpdates["status"] != enums.PaymentStatusCompleted {
		t.Fatalf("payment row not updated: %+v", repo.paymentUpdates)
	}
	if ordersRepo.orderUpdates["is_paid"] != true {
		t.Fatalf("order not marked paid: %+v", ordersRepo.orderUpdates)
	}
}

func TestVerifyIdempotentOnReplay(t *testing.T) {
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		GatewayOrderID: "order_rzp9",
		Status:         enums.PaymentStatusCompleted,
	}
	repo := &stubPaymentsRepo{payment: payment}
	svc, _ := NewService(repo, &stubOrderStore{}, stubTxRunner{}, &stubGateway{secret: "topsecret"})

	verified, err := svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_rzp9",
		GatewayPaymentID: "pay_123",
		Signature:        "does-not-matter-on-replay",
	})
	if err != nil {
		t.Fatalf("replay must succeed, got %v", err)
	}
	if verified.ID != payment.ID {
		t.Fatalf("unexpected payment %+v", verified)
	}
	if repo.paymentUpdates != nil {
		t.Fatalf("replay must not mutate: %+v", repo.paymentUpdates)
	}
}

func TestVerifyBadSignatureMutatesNothing(t *testing.T) {
	order := onlineOrder(uuid.New())
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: "order_rzp9",
		Status:         enums.PaymentStatusPending,
	}
	repo := &stubPaymentsRepo{payment: payment}
	ordersRepo := &stubOrderStore{order: order}
	svc, _ := NewService(repo, ordersRepo, stubTxRunner{}, &stubGateway{secret: "topsecret"})

	_, err := svc.Verify(context.Background(), VerifyInput{
		GatewayOrderID:   "order_rzp9",
		GatewayPaymentID: "pay_123",
		Signature:        "forged",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidSignature {
		t.Fatalf("unexpected error %v", err)
	}
	if repo.paymentUpdates != nil || ordersRepo.orderUpdates != nil {
		t.Fatal("bad signature must not mutate state")
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment status changed: %s", payment.Status)
	}
}

func TestRecordCODCreatesPendingRecord(t *testing.T) {
	buyerID := uuid.New()
	order := onlineOrder(buyerID)
	order.PaymentMethod = enums.PaymentMethodCOD
	repo := &stubPaymentsRepo{}
	svc, _ := NewService(repo, &stubOrderStore{order: order}, stubTxRunner{}, &stubGateway{secret: "s"})

	payment, err := svc.RecordCOD(context.Background(), CODInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payment.Status != enums.PaymentStatusPending || payment.Method != enums.PaymentMethodCOD {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if payment.GatewayOrderID != "cod_"+order.ID.String() {
		t.Fatalf("unexpected gateway order id %s", payment.GatewayOrderID)
	}
	if repo.created == nil {
		t.Fatal("payment record not stored")
	}
}

func TestRecordCODForbiddenForOtherBuyer(t *testing.T) {
	order := onlineOrder(uuid.New())
	order.PaymentMethod = enums.PaymentMethodCOD
	repo := &stubPaymentsRepo{}
	svc, _ := NewService(repo, &stubOrderStore{order: order}, stubTxRunner{}, &stubGateway{secret: "s"})

	_, err := svc.RecordCOD(context.Background(), CODInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
	if repo.created != nil {
		t.Fatalf("payment must not be stored: %+v", repo.created)
	}
}

func TestRecordCODDuplicateIsConflict(t *testing.T) {
	buyerID := uuid.New()
	order := onlineOrder(buyerID)
	order.PaymentMethod = enums.PaymentMethodCOD
	existing := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: "cod_" + order.ID.String(),
		Method:         enums.PaymentMethodCOD,
		Status:         enums.PaymentStatusPending,
	}
	actor := orders.Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}

	svc, _ := NewService(&stubPaymentsRepo{payment: existing}, &stubOrderStore{order: order}, stubTxRunner{}, &stubGateway{secret: "s"})
	_, err := svc.RecordCOD(context.Background(), CODInput{OrderID: order.ID, Actor: actor})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("existing payment must conflict, got %v", err)
	}

	// A concurrent insert that slips past the lookup surfaces as a unique
	// violation on the gateway order id and must map the same way.
	raced := &stubPaymentsRepo{createErr: errors.New(`duplicate key value violates unique constraint "idx_payments_gateway_order_id"`)}
	svc, _ = NewService(raced, &stubOrderStore{order: order}, stubTxRunner{}, &stubGateway{secret: "s"})
	_, err = svc.RecordCOD(context.Background(), CODInput{OrderID: order.ID, Actor: actor})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unique violation must conflict, got %v", err)
	}
}

func TestMarkCODCollected(t *testing.T) {
	sellerID := uuid.New()
	order := onlineOrder(uuid.New())
	order.SellerID = sellerID
	order.PaymentMethod = enums.PaymentMethodCOD
	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: "cod_" + order.ID.String(),
		Method:         enums.PaymentMethodCOD,
		Status:         enums.PaymentStatusPending,
	}
	repo := &stubPaymentsRepo{payment: payment}
	ordersRepo := &stubOrderStore{order: order}
	svc, _ := NewService(repo, ordersRepo, stubTxRunner{}, &stubGateway{secret: "s"})

	_, err := svc.MarkCODCollected(context.Background(), CODCollectedInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleSeller},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("foreign seller must be rejected, got %v", err)
	}

	settled, err := svc.MarkCODCollected(context.Background(), CODCollectedInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: sellerID, Role: enums.ActorRoleSeller},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if settled.Status != enums.PaymentStatusCompleted || settled.PaidAt == nil {
		t.Fatalf("payment not settled %+v", settled)
	}
	if ordersRepo.orderUpdates["payment_status"] != enums.OrderPaymentStatusPaid {
		t.Fatalf("order not marked paid: %+v", ordersRepo.orderUpdates)
	}
}
