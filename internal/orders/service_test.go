package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/inventory"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/pagination"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

type stubOrdersRepo struct {
	order        *models.Order
	createdOrder *models.Order
	createdItems []models.OrderItem
	orderUpdates map[string]any
	sequence     int64
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.createdOrder = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	s.createdItems = append(s.createdItems, items...)
	return nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if s.order == nil || s.order.OrderNumber != orderNumber {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters ListFilters) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	s.orderUpdates = updates
	return nil
}

func (s *stubOrdersRepo) NextOrderSequence(ctx context.Context, name string) (int64, error) {
	s.sequence++
	return s.sequence, nil
}

type stockCall struct {
	ref inventory.StockRef
	qty int
}

type stubInventory struct {
	lines      map[uuid.UUID]*inventory.ResolvedLine
	stocks     map[uuid.UUID]int
	decrements []stockCall
	restores   []stockCall
}

func (s *stubInventory) Resolve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, selection map[string]string) (*inventory.ResolvedLine, error) {
	line, ok := s.lines[productID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return line, nil
}

func (s *stubInventory) Decrement(ctx context.Context, tx *gorm.DB, ref inventory.StockRef, qty int) error {
	if s.stocks != nil {
		if available, ok := s.stocks[ref.ProductID]; ok && available < qty {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
		}
		s.stocks[ref.ProductID] -= qty
	}
	s.decrements = append(s.decrements, stockCall{ref: ref, qty: qty})
	return nil
}

func (s *stubInventory) Restore(ctx context.Context, tx *gorm.DB, ref inventory.StockRef, qty int) error {
	if s.stocks != nil {
		s.stocks[ref.ProductID] += qty
	}
	s.restores = append(s.restores, stockCall{ref: ref, qty: qty})
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testAddress() types.AddressSnapshot {
	return types.AddressSnapshot{
		Name:    "Asha Rao",
		Phone:   "9876543210",
		Line1:   "14 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	}
}

func TestCreateOrderSnapshotsLines(t *testing.T) {
	sellerID := uuid.New()
	productID := uuid.New()
	variantID := uuid.New()
	repo := &stubOrdersRepo{}
	inv := &stubInventory{
		lines: map[uuid.UUID]*inventory.ResolvedLine{
			productID: {
				ProductID:      productID,
				VariantID:      &variantID,
				SellerID:       sellerID,
				Title:          "Cotton Tee",
				UnitPriceCents: 1500,
				Selection:      types.AttributeMap{"size": "m"},
			},
		},
	}
	svc, err := NewService(repo, stubTxRunner{}, inv, Options{NumberPrefix: "ORD", DeliveryEtaDays: 7})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	order, err := svc.Create(context.Background(), CreateOrderInput{
		BuyerID:             uuid.New(),
		Items:               []CreateOrderItemInput{{ProductID: productID, Qty: 2, Selection: map[string]string{"size": "M"}}},
		DeliveryAddress:     testAddress(),
		PaymentMethod:       enums.PaymentMethodCOD,
		DeliveryChargeCents: 500,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.SellerID != sellerID {
		t.Fatalf("unexpected seller %s", order.SellerID)
	}
	if order.SubtotalCents != 3000 || order.TotalCents != 3500 {
		t.Fatalf("unexpected totals %d/%d", order.SubtotalCents, order.TotalCents)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD") || len(order.OrderNumber) != 9 {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Note != "Order placed" {
		t.Fatalf("unexpected history %+v", order.StatusHistory)
	}
	if order.ExpectedDelivery == nil {
		t.Fatal("expected delivery eta")
	}
	if len(repo.createdItems) != 1 {
		t.Fatalf("expected one line item got %d", len(repo.createdItems))
	}
	item := repo.createdItems[0]
	if item.Title != "Cotton Tee" || item.UnitPriceCents != 1500 || item.Qty != 2 {
		t.Fatalf("unexpected snapshot %+v", item)
	}
	if item.VariantID == nil || *item.VariantID != variantID {
		t.Fatalf("variant not snapshotted: %+v", item)
	}
	if len(inv.decrements) != 1 || inv.decrements[0].qty != 2 {
		t.Fatalf("unexpected decrement calls %+v", inv.decrements)
	}
}

func TestCreateOrderRejectsMixedSellers(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	repo := &stubOrdersRepo{}
	inv := &stubInventory{
		lines: map[uuid.UUID]*inventory.ResolvedLine{
			productA: {ProductID: productA, SellerID: uuid.New(), Title: "A", UnitPriceCents: 100},
			productB: {ProductID: productB, SellerID: uuid.New(), Title: "B", UnitPriceCents: 200},
		},
	}
	svc, _ := NewService(repo, stubTxRunner{}, inv, Options{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		BuyerID: uuid.New(),
		Items: []CreateOrderItemInput{
			{ProductID: productA, Qty: 1},
			{ProductID: productB, Qty: 1},
		},
		DeliveryAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	if repo.createdOrder != nil {
		t.Fatal("order should not be created")
	}
}

func TestCreateOrderInsufficientStockAborts(t *testing.T) {
	productID := uuid.New()
	repo := &stubOrdersRepo{}
	inv := &stubInventory{
		lines: map[uuid.UUID]*inventory.ResolvedLine{
			productID: {ProductID: productID, SellerID: uuid.New(), Title: "Scarce", UnitPriceCents: 900},
		},
		stocks: map[uuid.UUID]int{productID: 3},
	}
	svc, _ := NewService(repo, stubTxRunner{}, inv, Options{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		Items:           []CreateOrderItemInput{{ProductID: productID, Qty: 5}},
		DeliveryAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error %v", err)
	}
	if repo.createdOrder != nil {
		t.Fatal("order should not be created")
	}
	if inv.stocks[productID] != 3 {
		t.Fatalf("stock should be untouched, got %d", inv.stocks[productID])
	}
}

func TestAdvanceDeliveredStampsActualDelivery(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		ID:       uuid.New(),
		SellerID: sellerID,
		BuyerID:  uuid.New(),
		Status:   enums.OrderStatusOutForDelivery,
	}
	repo := &stubOrdersRepo{order: order}
	svc, _ := NewService(repo, stubTxRunner{}, &stubInventory{}, Options{})

	updated, err := svc.Advance(context.Background(), AdvanceInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusDelivered,
		Actor:   Actor{UserID: sellerID, Role: enums.ActorRoleSeller},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusDelivered {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.ActualDelivery == nil {
		t.Fatal("expected actual delivery stamp")
	}
	if repo.orderUpdates["actual_delivery"] == nil {
		t.Fatalf("updates missing delivery stamp: %+v", repo.orderUpdates)
	}
}

func TestAdvanceRejectsTerminalTargets(t *testing.T) {
	svc, _ := NewService(&stubOrdersRepo{}, stubTxRunner{}, &stubInventory{}, Options{})

	for _, target := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusReturned} {
		_, err := svc.Advance(context.Background(), AdvanceInput{
			OrderID: uuid.New(),
			Target:  target,
			Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
		})
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("expected state conflict for %s, got %v", target, err)
		}
	}
}

func TestAdvanceForbiddenForOtherSeller(t *testing.T) {
	order := &models.Order{
		ID:       uuid.New(),
		SellerID: uuid.New(),
		Status:   enums.OrderStatusPending,
	}
	repo := &stubOrdersRepo{order: order}
	svc, _ := NewService(repo, stubTxRunner{}, &stubInventory{}, Options{})

	_, err := svc.Advance(context.Background(), AdvanceInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusConfirmed,
		Actor:   Actor{UserID: uuid.New(), Role: enums.ActorRoleSeller},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	buyerID := uuid.New()
	productID := uuid.New()
	variantID := uuid.New()
	order := &models.Order{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Status:  enums.OrderStatusConfirmed,
		Items: []models.OrderItem{
			{ProductID: productID, VariantID: &variantID, Qty: 2},
		},
	}
	repo := &stubOrdersRepo{order: order}
	inv := &stubInventory{}
	svc, _ := NewService(repo, stubTxRunner{}, inv, Options{})

	updated, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "changed my mind",
		Actor:   Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.Cancellation == nil || updated.Cancellation.Reason != "changed my mind" {
		t.Fatalf("unexpected cancellation doc %+v", updated.Cancellation)
	}
	if len(inv.restores) != 1 || inv.restores[0].qty != 2 {
		t.Fatalf("unexpected restore calls %+v", inv.restores)
	}
	if inv.restores[0].ref.VariantID == nil || *inv.restores[0].ref.VariantID != variantID {
		t.Fatalf("restore missing variant ref %+v", inv.restores[0].ref)
	}
}

func TestCancelAfterShippedRejected(t *testing.T) {
	buyerID := uuid.New()
	order := &models.Order{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Status:  enums.OrderStatusShipped,
		Items:   []models.OrderItem{{ProductID: uuid.New(), Qty: 1}},
	}
	repo := &stubOrdersRepo{order: order}
	inv := &stubInventory{}
	svc, _ := NewService(repo, stubTxRunner{}, inv, Options{})

	_, err := svc.Cancel(context.Background(), CancelInput{
		OrderID: order.ID,
		Reason:  "too slow",
		Actor:   Actor{UserID: buyerID, Role: enums.ActorRoleBuyer},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
	if len(inv.restores) != 0 {
		t.Fatal("stock must not be restored on rejected cancel")
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	buyerID := uuid.New()
	order := &models.Order{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		SellerID: uuid.New(),
		Status:   enums.OrderStatusPending,
	}
	repo := &stubOrdersRepo{order: order}
	svc, _ := NewService(repo, stubTxRunner{}, &stubInventory{}, Options{})

	if _, err := svc.Get(context.Background(), order.ID, Actor{UserID: buyerID, Role: enums.ActorRoleBuyer}); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	_, err := svc.Get(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}
