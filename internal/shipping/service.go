package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/pkg/config"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/shiprocket"
	"github.com/bazaarly/bazaarly-backend/pkg/types"
)

const (
	carrierDateLayout = "2006-01-02 15:04:05"
	maxNicknameTries  = 3
)

// Carrier is the slice of the carrier client this service drives.
type Carrier interface {
	CreatePickupLocation(ctx context.Context, params shiprocket.PickupLocationParams) error
	CreateOrder(ctx context.Context, params shiprocket.OrderParams) (*shiprocket.OrderResult, error)
	CreateReturnOrder(ctx context.Context, params shiprocket.OrderParams) (*shiprocket.OrderResult, error)
	AssignAWB(ctx context.Context, shipmentID int64, courierID *int64) (*shiprocket.AWBResult, error)
	GeneratePickup(ctx context.Context, shipmentIDs []int64) error
	GenerateLabel(ctx context.Context, shipmentIDs []int64) (*shiprocket.LabelResult, error)
	Track(ctx context.Context, shipmentID int64) (*shiprocket.TrackResult, error)
}

// Service books and tracks shipments for orders.
type Service interface {
	CreateForwardShipment(ctx context.Context, input ShipmentInput) (*models.Order, error)
	AssignAWB(ctx context.Context, input AWBInput) (*models.Order, error)
	RequestPickup(ctx context.Context, input ShipmentInput) (*models.Order, error)
	GenerateLabel(ctx context.Context, input ShipmentInput) (*models.Order, error)
	Track(ctx context.Context, input ShipmentInput) (*shiprocket.TrackResult, error)
	CreateReturnShipment(ctx context.Context, order *models.Order) (*types.ShipmentInfo, error)
}

// ShipmentInput identifies the order and who is acting on it.
type ShipmentInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

// AWBInput optionally pins the courier when assigning the airway bill.
type AWBInput struct {
	OrderID   uuid.UUID
	CourierID *int64
	Actor     orders.Actor
}

type service struct {
	ordersRepo orders.Repository
	sellers    SellerDirectory
	carrier    Carrier
	cfg        config.ShiprocketConfig
	log        *logger.Logger
	now        func() time.Time
}

// NewService builds the shipping service.
func NewService(ordersRepo orders.Repository, sellers SellerDirectory, carrier Carrier, cfg config.ShiprocketConfig, log *logger.Logger) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if sellers == nil {
		return nil, fmt.Errorf("seller directory required")
	}
	if carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ordersRepo: ordersRepo,
		sellers:    sellers,
		carrier:    carrier,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}, nil
}

// CreateForwardShipment registers the order with the carrier. One shipment
// per order; a second booking conflicts instead of duplicating the parcel.
func (s *service) CreateForwardShipment(ctx context.Context, input ShipmentInput) (*models.Order, error) {
	order, err := s.loadSellerOrder(ctx, input.OrderID, input.Actor)
	if err != nil {
		return nil, err
	}
	if order.Shiprocket != nil && order.Shiprocket.ShipmentID != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipment already created for this order").
			WithDetails(map[string]any{"shipment_id": order.Shiprocket.ShipmentID})
	}

	pickupLocation, err := s.ensurePickupLocation(ctx, order.SellerID)
	if err != nil {
		return nil, err
	}

	params := s.forwardParams(order, pickupLocation)
	result, err := s.carrier.CreateOrder(ctx, params)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	info := &types.ShipmentInfo{
		CarrierOrderID: result.OrderID,
		ShipmentID:     result.ShipmentID,
		PickupLocation: pickupLocation,
		CreatedAt:      &now,
	}
	if err := s.ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{"shiprocket": info}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save shipment info")
	}
	order.Shiprocket = info
	return order, nil
}

// AssignAWB asks the carrier for an airway bill. On success the order moves
// to shipped; a carrier failure changes nothing so the call can be retried.
func (s *service) AssignAWB(ctx context.Context, input AWBInput) (*models.Order, error) {
	order, err := s.loadSellerOrder(ctx, input.OrderID, input.Actor)
	if err != nil {
		return nil, err
	}
	if order.Shiprocket == nil || order.Shiprocket.ShipmentID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "create the shipment before assigning an airway bill")
	}
	if order.Shiprocket.AWBCode != "" {
		return order, nil
	}

	awb, err := s.carrier.AssignAWB(ctx, order.Shiprocket.ShipmentID, input.CourierID)
	if err != nil {
		return nil, err
	}

	info := order.Shiprocket
	info.AWBCode = awb.AWBCode
	info.CourierName = awb.CourierName

	now := s.now().UTC()
	history := order.StatusHistory.Append(types.StatusHistoryEntry{
		Status:    enums.OrderStatusShipped.String(),
		Note:      fmt.Sprintf("AWB %s assigned via %s", awb.AWBCode, awb.CourierName),
		Actor:     input.Actor.Role.String(),
		Timestamp: now,
	})
	updates := map[string]any{
		"shiprocket":     info,
		"status":         enums.OrderStatusShipped,
		"status_history": history,
	}
	if err := s.ordersRepo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save airway bill")
	}
	order.Status = enums.OrderStatusShipped
	order.StatusHistory = history
	return order, nil
}

// RequestPickup schedules the courier pickup for a booked shipment.
func (s *service) RequestPickup(ctx context.Context, input ShipmentInput) (*models.Order, error) {
	order, err := s.loadSellerOrder(ctx, input.OrderID, input.Actor)
	if err != nil {
		return nil, err
	}
	if order.Shiprocket == nil || order.Shiprocket.ShipmentID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "create the shipment before requesting pickup")
	}
	if order.Shiprocket.PickupScheduled {
		return order, nil
	}

	if err := s.carrier.GeneratePickup(ctx, []int64{order.Shiprocket.ShipmentID}); err != nil {
		return nil, err
	}

	info := order.Shiprocket
	info.PickupScheduled = true
	if err := s.ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{"shiprocket": info}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pickup state")
	}
	return order, nil
}

// GenerateLabel fetches the shipping label document for a booked shipment.
func (s *service) GenerateLabel(ctx context.Context, input ShipmentInput) (*models.Order, error) {
	order, err := s.loadSellerOrder(ctx, input.OrderID, input.Actor)
	if err != nil {
		return nil, err
	}
	if order.Shiprocket == nil || order.Shiprocket.ShipmentID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "create the shipment before generating a label")
	}
	if order.Shiprocket.LabelURL != "" {
		return order, nil
	}

	label, err := s.carrier.GenerateLabel(ctx, []int64{order.Shiprocket.ShipmentID})
	if err != nil {
		return nil, err
	}

	info := order.Shiprocket
	info.LabelURL = label.LabelURL
	if err := s.ordersRepo.UpdateOrder(ctx, order.ID, map[string]any{"shiprocket": info}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save label url")
	}
	return order, nil
}

// Track reads the carrier's view of the shipment and refreshes the tracking
// URL and delivery estimate on the order as a side effect.
func (s *service) Track(ctx context.Context, input ShipmentInput) (*shiprocket.TrackResult, error) {
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(order, input.Actor); err != nil {
		return nil, err
	}
	if order.Shiprocket == nil || order.Shiprocket.ShipmentID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no shipment exists for this order")
	}

	result, err := s.carrier.Track(ctx, order.Shiprocket.ShipmentID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if result.TrackURL != "" && result.TrackURL != order.Shiprocket.TrackingURL {
		order.Shiprocket.TrackingURL = result.TrackURL
		updates["shiprocket"] = order.Shiprocket
	}
	if result.ETD != "" {
		if etd, perr := time.Parse(carrierDateLayout, result.ETD); perr == nil {
			updates["expected_delivery"] = etd
			order.ExpectedDelivery = &etd
		}
	}
	if len(updates) > 0 {
		if err := s.ordersRepo.UpdateOrder(ctx, order.ID, updates); err != nil {
			s.log.Error(s.log.WithOrderID(ctx, order.ID.String()), "refresh tracking info", err)
		}
	}
	return result, nil
}

// CreateReturnShipment books the reverse parcel: picked up at the buyer's
// delivery address, delivered back to the seller.
func (s *service) CreateReturnShipment(ctx context.Context, order *models.Order) (*types.ShipmentInfo, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	sellerAddr, err := s.sellers.FindSellerAddress(ctx, order.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller has no pickup address")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller address")
	}

	params := s.forwardParams(order, "")
	params.OrderID = "R-" + order.OrderNumber
	// Reverse roles: the buyer's delivery address becomes the pickup point
	// and the seller's address the destination.
	params.PickupName = order.DeliveryAddress.Name
	params.PickupAddress = strings.TrimSpace(order.DeliveryAddress.Line1 + " " + order.DeliveryAddress.Line2)
	params.PickupCity = order.DeliveryAddress.City
	params.PickupState = order.DeliveryAddress.State
	params.PickupPincode = sanitizePincode(order.DeliveryAddress.Pincode, s.cfg.FallbackPincode)
	params.PickupCountry = "India"
	params.PickupPhone = sanitizePhone(order.DeliveryAddress.Phone)
	params.BillingName = sellerAddr.Name
	params.BillingAddress = sellerAddr.Line1
	params.BillingCity = sellerAddr.City
	params.BillingState = sellerAddr.State
	params.BillingPincode = sanitizePincode(sellerAddr.Pincode, s.cfg.FallbackPincode)
	params.BillingCountry = "India"
	params.BillingPhone = sanitizePhone(sellerAddr.Phone)
	params.PickupLocation = ""

	result, err := s.carrier.CreateReturnOrder(ctx, params)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return &types.ShipmentInfo{
		CarrierOrderID: result.OrderID,
		ShipmentID:     result.ShipmentID,
		CreatedAt:      &now,
	}, nil
}

// ensurePickupLocation registers the seller's pickup point with the carrier.
// Registration is idempotent; a nickname the carrier deactivated gets a
// fresh suffix, and all attempts' errors are reported together if none
// sticks.
func (s *service) ensurePickupLocation(ctx context.Context, sellerID uuid.UUID) (string, error) {
	seller, err := s.sellers.FindSeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	addr, err := s.sellers.FindSellerAddress(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "seller has no pickup address")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller address")
	}

	base := pickupNickname(sellerID, 0)
	var failures error
	for attempt := 0; attempt < maxNicknameTries; attempt++ {
		nickname := pickupNickname(sellerID, attempt)
		err := s.carrier.CreatePickupLocation(ctx, shiprocket.PickupLocationParams{
			PickupLocation: nickname,
			Name:           seller.Name,
			Email:          seller.Email,
			Phone:          sanitizePhone(addr.Phone),
			Address:        addr.Line1,
			City:           addr.City,
			State:          addr.State,
			Country:        "India",
			PinCode:        sanitizePincode(addr.Pincode, s.cfg.FallbackPincode),
		})
		if err == nil {
			return nickname, nil
		}

		var apiErr *shiprocket.APIError
		if errors.As(err, &apiErr) {
			msg := strings.ToLower(apiErr.Message)
			if strings.Contains(msg, "already") {
				return nickname, nil
			}
			if strings.Contains(msg, "inactive") {
				failures = multierr.Append(failures, err)
				continue
			}
		}
		return "", err
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeDependency, failures,
		fmt.Sprintf("pickup location %s could not be activated", base))
}

func (s *service) forwardParams(order *models.Order, pickupLocation string) shiprocket.OrderParams {
	items := make([]shiprocket.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		sku := item.ProductID.String()
		if item.VariantID != nil {
			sku = item.VariantID.String()
		}
		items = append(items, shiprocket.OrderItem{
			Name:         item.Title,
			SKU:          sku,
			Units:        item.Qty,
			SellingPrice: centsToRupees(item.UnitPriceCents),
		})
	}

	paymentMethod := "Prepaid"
	if order.PaymentMethod == enums.PaymentMethodCOD {
		paymentMethod = "COD"
	}

	dimension := float64(s.cfg.DefaultDimension)
	return shiprocket.OrderParams{
		OrderID:           order.OrderNumber,
		OrderDate:         order.CreatedAt.UTC().Format(carrierDateLayout),
		PickupLocation:    pickupLocation,
		ChannelID:         s.cfg.ChannelID,
		BillingName:       order.DeliveryAddress.Name,
		BillingAddress:    strings.TrimSpace(order.DeliveryAddress.Line1 + " " + order.DeliveryAddress.Line2),
		BillingCity:       order.DeliveryAddress.City,
		BillingState:      order.DeliveryAddress.State,
		BillingPincode:    sanitizePincode(order.DeliveryAddress.Pincode, s.cfg.FallbackPincode),
		BillingCountry:    "India",
		BillingPhone:      sanitizePhone(order.DeliveryAddress.Phone),
		ShippingIsBilling: true,
		Items:             items,
		PaymentMethod:     paymentMethod,
		SubTotal:          centsToRupees(order.SubtotalCents),
		Length:            dimension,
		Breadth:           dimension,
		Height:            dimension,
		Weight:            s.cfg.DefaultWeightKg,
	}
}

func (s *service) loadSellerOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.ActorRoleAdmin {
		return order, nil
	}
	if actor.Role == enums.ActorRoleSeller && order.SellerID == actor.UserID {
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can manage this shipment")
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.ordersRepo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func authorizeRead(order *models.Order, actor orders.Actor) error {
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

func pickupNickname(sellerID uuid.UUID, attempt int) string {
	base := "seller-" + strings.Split(sellerID.String(), "-")[0]
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, attempt)
}

// sanitizePhone keeps the last ten digits, dropping country codes and
// formatting separators the carrier rejects.
func sanitizePhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return string(digits)
}

// sanitizePincode accepts exactly six digits; anything else falls back to the
// configured serviceable pincode so the booking is not rejected outright.
func sanitizePincode(pincode, fallback string) string {
	trimmed := strings.TrimSpace(pincode)
	if len(trimmed) == 6 {
		allDigits := true
		for _, r := range trimmed {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return trimmed
		}
	}
	return fallback
}

func centsToRupees(cents int) float64 {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).InexactFloat64()
}
