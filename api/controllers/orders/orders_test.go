package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/api/middleware"
	internalorders "github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	"github.com/bazaarly/bazaarly-backend/pkg/pagination"
)

type stubOrdersService struct {
	create  func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	advance func(ctx context.Context, input internalorders.AdvanceInput) (*models.Order, error)
	cancel  func(ctx context.Context, input internalorders.CancelInput) (*models.Order, error)
}

func (s stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	if s.create != nil {
		return s.create(ctx, input)
	}
	panic("unexpected Create call")
}

func (s stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error) {
	panic("unimplemented")
}

func (s stubOrdersService) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	panic("unimplemented")
}

func (s stubOrdersService) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	panic("unimplemented")
}

func (s stubOrdersService) Advance(ctx context.Context, input internalorders.AdvanceInput) (*models.Order, error) {
	if s.advance != nil {
		return s.advance(ctx, input)
	}
	panic("unexpected Advance call")
}

func (s stubOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	if s.cancel != nil {
		return s.cancel(ctx, input)
	}
	panic("unexpected Cancel call")
}

func authedRequest(method, target, body string, role enums.ActorRole) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestCreateOrderMapsRequest(t *testing.T) {
	productID := uuid.New()
	var captured internalorders.CreateOrderInput
	handler := Create(stubOrdersService{
		create: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			captured = input
			return &models.Order{ID: uuid.New(), OrderNumber: "ORD000001"}, nil
		},
	}, nil)

	body := `{
		"items": [{"product_id": "` + productID.String() + `", "qty": 2, "selection": {"size": "M"}}],
		"delivery_address": {"name": "Asha", "phone": "9876543210", "line1": "12 MG Road", "city": "Pune", "state": "MH", "pincode": "411001"},
		"payment_method": "cod"
	}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/orders", body, enums.ActorRoleBuyer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductID != productID || captured.Items[0].Qty != 2 {
		t.Fatalf("unexpected items %+v", captured.Items)
	}
	if captured.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("unexpected payment method %q", captured.PaymentMethod)
	}
	if captured.BuyerID == uuid.Nil {
		t.Fatal("buyer id not taken from context")
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	handler := Create(stubOrdersService{}, nil)

	body := `{
		"items": [],
		"delivery_address": {"name": "Asha", "phone": "9876543210", "line1": "12 MG Road", "city": "Pune", "state": "MH", "pincode": "411001"},
		"payment_method": "cod"
	}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/orders", body, enums.ActorRoleBuyer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdvanceParsesStatus(t *testing.T) {
	orderID := uuid.New()
	var captured internalorders.AdvanceInput
	handler := Advance(stubOrdersService{
		advance: func(ctx context.Context, input internalorders.AdvanceInput) (*models.Order, error) {
			captured = input
			return &models.Order{ID: orderID, Status: input.Target}, nil
		},
	}, nil)

	req := authedRequest(http.MethodPut, "/orders/"+orderID.String()+"/status", `{"status": "packed"}`, enums.ActorRoleSeller)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID || captured.Target != enums.OrderStatusPacked {
		t.Fatalf("unexpected advance input %+v", captured)
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusPacked {
		t.Fatalf("unexpected status in response %q", envelope.Data.Status)
	}
}

func TestAdvanceRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	handler := Advance(stubOrdersService{}, nil)

	req := authedRequest(http.MethodPut, "/orders/"+orderID.String()+"/status", `{"status": "teleported"}`, enums.ActorRoleSeller)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	orderID := uuid.New()
	handler := Cancel(stubOrdersService{}, nil)

	req := authedRequest(http.MethodPost, "/orders/"+orderID.String()+"/cancel", `{}`, enums.ActorRoleBuyer)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
