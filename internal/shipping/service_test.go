package shipping

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/pkg/config"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/pagination"
	"github.com/bazaarly/bazaarly-backend/pkg/shiprocket"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

type stubShippingRepo struct {
	order        *models.Order
	orderUpdates map[string]any
}

func (s *stubShippingRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubShippingRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubShippingRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	panic("not implemented")
}

func (s *stubShippingRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubShippingRepo) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubShippingRepo) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubShippingRepo) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubShippingRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	s.orderUpdates = updates
	return nil
}

func (s *stubShippingRepo) NextOrderSequence(ctx context.Context, name string) (int64, error) {
	panic("not implemented")
}

type stubSellers struct {
	seller  *models.User
	address *models.Address
}

func (s *stubSellers) FindSeller(ctx context.Context, sellerID uuid.UUID) (*models.User, error) {
	if s.seller == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.seller, nil
}

func (s *stubSellers) FindSellerAddress(ctx context.Context, sellerID uuid.UUID) (*models.Address, error) {
	if s.address == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.address, nil
}

type stubCarrier struct {
	pickupErrs    []error
	pickupParams  []shiprocket.PickupLocationParams
	orderParams   []shiprocket.OrderParams
	orderResult   *shiprocket.OrderResult
	orderErr      error
	returnParams  []shiprocket.OrderParams
	returnResult  *shiprocket.OrderResult
	awbResult     *shiprocket.AWBResult
	awbErr        error
	pickupCalls   [][]int64
	labelResult   *shiprocket.LabelResult
	trackResult   *shiprocket.TrackResult
}

func (s *stubCarrier) CreatePickupLocation(ctx context.Context, params shiprocket.PickupLocationParams) error {
	s.pickupParams = append(s.pickupParams, params)
	if len(s.pickupErrs) > 0 {
		err := s.pickupErrs[0]
		s.pickupErrs = s.pickupErrs[1:]
		return err
	}
	return nil
}

func (s *stubCarrier) CreateOrder(ctx context.Context, params shiprocket.OrderParams) (*shiprocket.OrderResult, error) {
	s.orderParams = append(s.orderParams, params)
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	return s.orderResult, nil
}

func (s *stubCarrier) CreateReturnOrder(ctx context.Context, params shiprocket.OrderParams) (*shiprocket.OrderResult, error) {
	s.returnParams = append(s.returnParams, params)
	return s.returnResult, nil
}

func (s *stubCarrier) AssignAWB(ctx context.Context, shipmentID int64, courierID *int64) (*shiprocket.AWBResult, error) {
	if s.awbErr != nil {
		return nil, s.awbErr
	}
	return s.awbResult, nil
}

func (s *stubCarrier) GeneratePickup(ctx context.Context, shipmentIDs []int64) error {
	s.pickupCalls = append(s.pickupCalls, shipmentIDs)
	return nil
}

func (s *stubCarrier) GenerateLabel(ctx context.Context, shipmentIDs []int64) (*shiprocket.LabelResult, error) {
	return s.labelResult, nil
}

func (s *stubCarrier) Track(ctx context.Context, shipmentID int64) (*shiprocket.TrackResult, error) {
	return s.trackResult, nil
}

func testConfig() config.ShiprocketConfig {
	return config.ShiprocketConfig{
		FallbackPincode:  "110001",
		DefaultWeightKg:  0.5,
		DefaultDimension: 10,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func packedOrder(sellerID uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD000042",
		BuyerID:     uuid.New(),
		SellerID:    sellerID,
		Status:      enums.OrderStatusPacked,
		SubtotalCents: 3000,
		TotalCents:    3500,
		PaymentMethod: enums.PaymentMethodCOD,
		DeliveryAddress: types.AddressSnapshot{
			Name:    "Asha Rao",
			Phone:   "+91-98765 43210",
			Line1:   "14 MG Road",
			City:    "Bengaluru",
			State:   "Karnataka",
			Pincode: "560001",
		},
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Title: "Cotton Tee", UnitPriceCents: 1500, Qty: 2},
		},
	}
}

func sellerFixtures(sellerID uuid.UUID) *stubSellers {
	return &stubSellers{
		seller: &models.User{ID: sellerID, Name: "Seller Co", Email: "seller@example.com"},
		address: &models.Address{
			UserID:  sellerID,
			Name:    "Seller Co",
			Phone:   "9000000000",
			Line1:   "Plot 7 Industrial Area",
			City:    "Delhi",
			State:   "Delhi",
			Pincode: "bad-pin",
		},
	}
}

func newTestService(t *testing.T, repo *stubShippingRepo, sellers SellerDirectory, carrier Carrier) Service {
	t.Helper()
	svc, err := NewService(repo, sellers, carrier, testConfig(), testLogger())
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestCreateForwardShipmentBooksAndStoresInfo(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{orderResult: &shiprocket.OrderResult{OrderID: 77, ShipmentID: 88}}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)
	actor := orders.Actor{UserID: sellerID, Role: enums.ActorRoleSeller}

	updated, err := svc.CreateForwardShipment(context.Background(), ShipmentInput{OrderID: order.ID, Actor: actor})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Shiprocket == nil || updated.Shiprocket.ShipmentID != 88 {
		t.Fatalf("shipment info not stored: %+v", updated.Shiprocket)
	}

	params := carrier.orderParams[0]
	if params.BillingPhone != "9876543210" {
		t.Fatalf("phone not sanitized: %q", params.BillingPhone)
	}
	if params.BillingPincode != "560001" {
		t.Fatalf("unexpected pincode %q", params.BillingPincode)
	}
	if params.PaymentMethod != "COD" {
		t.Fatalf("unexpected payment method %q", params.PaymentMethod)
	}
	if params.SubTotal != 30.0 {
		t.Fatalf("unexpected subtotal %v", params.SubTotal)
	}
	// Seller address has a malformed pincode; registration falls back.
	if carrier.pickupParams[0].PinCode != "110001" {
		t.Fatalf("fallback pincode not applied: %q", carrier.pickupParams[0].PinCode)
	}

	_, err = svc.CreateForwardShipment(context.Background(), ShipmentInput{OrderID: order.ID, Actor: actor})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("second booking must conflict, got %v", err)
	}
}

func TestEnsurePickupLocationRegeneratesInactiveNickname(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{
		pickupErrs:  []error{&shiprocket.APIError{StatusCode: 400, Message: "pickup location is inactive"}},
		orderResult: &shiprocket.OrderResult{OrderID: 1, ShipmentID: 2},
	}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)

	updated, err := svc.CreateForwardShipment(context.Background(), ShipmentInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: sellerID, Role: enums.ActorRoleSeller},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(carrier.pickupParams) != 2 {
		t.Fatalf("expected nickname retry, got %d attempts", len(carrier.pickupParams))
	}
	first, second := carrier.pickupParams[0].PickupLocation, carrier.pickupParams[1].PickupLocation
	if first == second {
		t.Fatalf("nickname not regenerated: %q", second)
	}
	if updated.Shiprocket.PickupLocation != second {
		t.Fatalf("order must carry the active nickname, got %q", updated.Shiprocket.PickupLocation)
	}
}

func TestEnsurePickupLocationTreatsExistingAsSuccess(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{
		pickupErrs:  []error{&shiprocket.APIError{StatusCode: 400, Message: "Address nick name already in use"}},
		orderResult: &shiprocket.OrderResult{OrderID: 1, ShipmentID: 2},
	}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)

	_, err := svc.CreateForwardShipment(context.Background(), ShipmentInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: sellerID, Role: enums.ActorRoleSeller},
	})
	if err != nil {
		t.Fatalf("existing nickname must be reused, got %v", err)
	}
	if len(carrier.pickupParams) != 1 {
		t.Fatalf("no retry expected, got %d attempts", len(carrier.pickupParams))
	}
}

func TestAssignAWBMovesOrderToShipped(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	order.Shiprocket = &types.ShipmentInfo{CarrierOrderID: 77, ShipmentID: 88}
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{awbResult: &shiprocket.AWBResult{AWBCode: "AWB123", CourierName: "Delhivery"}}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)

	updated, err := svc.AssignAWB(context.Background(), AWBInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: sellerID, Role: enums.ActorRoleSeller},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	if updated.Shiprocket.AWBCode != "AWB123" || updated.Shiprocket.CourierName != "Delhivery" {
		t.Fatalf("awb not stored: %+v", updated.Shiprocket)
	}
}

func TestAssignAWBFailureLeavesOrderUntouched(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	order.Shiprocket = &types.ShipmentInfo{CarrierOrderID: 77, ShipmentID: 88}
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{awbErr: &shiprocket.APIError{StatusCode: 422, Message: "no couriers serviceable"}}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)

	_, err := svc.AssignAWB(context.Background(), AWBInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: sellerID, Role: enums.ActorRoleSeller},
	})
	if err == nil {
		t.Fatal("expected carrier error")
	}
	if repo.orderUpdates != nil {
		t.Fatalf("order must not change on failure: %+v", repo.orderUpdates)
	}
	if order.Status != enums.OrderStatusPacked {
		t.Fatalf("status changed: %s", order.Status)
	}
}

func TestTrackRefreshesEtaAndTrackingURL(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	order.Shiprocket = &types.ShipmentInfo{ShipmentID: 88}
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{trackResult: &shiprocket.TrackResult{
		TrackURL: "https://track.example/88",
		ETD:      "2026-09-04 18:00:00",
		Status:   "In Transit",
	}}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)

	result, err := svc.Track(context.Background(), ShipmentInput{
		OrderID: order.ID,
		Actor:   orders.Actor{UserID: order.BuyerID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.Status != "In Transit" {
		t.Fatalf("unexpected status %q", result.Status)
	}
	if order.Shiprocket.TrackingURL != "https://track.example/88" {
		t.Fatalf("tracking url not stored: %q", order.Shiprocket.TrackingURL)
	}
	if order.ExpectedDelivery == nil || order.ExpectedDelivery.Day() != 4 {
		t.Fatalf("eta not refreshed: %v", order.ExpectedDelivery)
	}
}

func TestCreateReturnShipmentSwapsAddresses(t *testing.T) {
	sellerID := uuid.New()
	order := packedOrder(sellerID)
	repo := &stubShippingRepo{order: order}
	carrier := &stubCarrier{returnResult: &shiprocket.OrderResult{OrderID: 9, ShipmentID: 10}}
	svc := newTestService(t, repo, sellerFixtures(sellerID), carrier)

	info, err := svc.CreateReturnShipment(context.Background(), order)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if info.ShipmentID != 10 {
		t.Fatalf("unexpected shipment info %+v", info)
	}

	params := carrier.returnParams[0]
	if params.OrderID != "R-ORD000042" {
		t.Fatalf("unexpected return order id %q", params.OrderID)
	}
	if params.PickupCity != "Bengaluru" || params.PickupPhone != "9876543210" {
		t.Fatalf("pickup must be the buyer address: %+v", params)
	}
	if params.BillingCity != "Delhi" {
		t.Fatalf("destination must be the seller address: %+v", params)
	}
	if params.BillingPincode != "110001" {
		t.Fatalf("seller pincode fallback not applied: %q", params.BillingPincode)
	}
}
