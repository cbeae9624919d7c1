package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarly/bazaarly-backend/api/middleware"
	"github.com/bazaarly/bazaarly-backend/api/responses"
	"github.com/bazaarly/bazaarly-backend/api/validators"
	"github.com/bazaarly/bazaarly-backend/internal/returns"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

type returnRequestBody struct {
	Reason string   `json:"reason" validate:"required"`
	Images []string `json:"images" validate:"max=5"`
	Video  string   `json:"video"`
}

// RequestReturn opens a return window on a delivered order.
func RequestReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req returnRequestBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Request(r.Context(), returns.RequestInput{
			OrderID: orderID,
			Reason:  req.Reason,
			Images:  req.Images,
			Video:   req.Video,
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type returnStatusBody struct {
	Decision        string `json:"decision" validate:"omitempty,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason"`
	PickupStatus    string `json:"pickup_status"`
}

// UpdateReturnStatus handles both the seller's verdict on a pending return
// and subsequent reverse-logistics pickup updates, depending on which field
// the body carries.
func UpdateReturnStatus(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req returnStatusBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())

		switch {
		case req.Decision != "" && req.PickupStatus != "":
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "provide either decision or pickup_status, not both"))
			return

		case req.Decision != "":
			order, err := svc.Decide(r.Context(), returns.DecideInput{
				OrderID:         orderID,
				Decision:        returns.Decision(req.Decision),
				RejectionReason: req.RejectionReason,
				Actor:           actor,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, order)

		case req.PickupStatus != "":
			target, err := enums.ParsePickupStatus(req.PickupStatus)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup status"))
				return
			}
			order, err := svc.UpdatePickup(r.Context(), returns.PickupInput{
				OrderID: orderID,
				Target:  target,
				Actor:   actor,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, order)

		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "decision or pickup_status is required"))
		}
	}
}
