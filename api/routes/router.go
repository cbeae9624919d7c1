package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarly/bazaarly-backend/api/controllers"
	ordercontrollers "github.com/bazaarly/bazaarly-backend/api/controllers/orders"
	paymentcontrollers "github.com/bazaarly/bazaarly-backend/api/controllers/payments"
	shippingcontrollers "github.com/bazaarly/bazaarly-backend/api/controllers/shipping"
	"github.com/bazaarly/bazaarly-backend/api/middleware"
	"github.com/bazaarly/bazaarly-backend/internal/orders"
	"github.com/bazaarly/bazaarly-backend/internal/payments"
	"github.com/bazaarly/bazaarly-backend/internal/returns"
	"github.com/bazaarly/bazaarly-backend/internal/shipping"
	"github.com/bazaarly/bazaarly-backend/pkg/config"
	"github.com/bazaarly/bazaarly-backend/pkg/db"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/metrics"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Orders   orders.Service
	Returns  returns.Service
	Payments payments.Service
	Shipping shipping.Service
	Metrics  *metrics.HTTPMetrics
	MetricsH http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, logg))
	})

	if deps.MetricsH != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsH)
	}

	buyer := string(enums.ActorRoleBuyer)
	seller := string(enums.ActorRoleSeller)
	admin := string(enums.ActorRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(buyer, logg)).Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Get("/", ordercontrollers.ListMine(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.With(middleware.RequireAnyRole(logg, seller, admin)).
				Put("/{orderId}/status", ordercontrollers.Advance(deps.Orders, logg))
			r.Put("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))

			r.With(middleware.RequireAnyRole(logg, buyer, admin)).
				Post("/{orderId}/return", ordercontrollers.RequestReturn(deps.Returns, logg))
			r.With(middleware.RequireAnyRole(logg, seller, admin)).
				Put("/{orderId}/return-status", ordercontrollers.UpdateReturnStatus(deps.Returns, logg))
		})

		r.With(middleware.RequireAnyRole(logg, seller, admin)).
			Get("/seller/orders", ordercontrollers.ListSeller(deps.Orders, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create", paymentcontrollers.CreateIntent(deps.Payments, logg))
			r.Post("/verify", paymentcontrollers.Verify(deps.Payments, logg))
			r.Post("/cod", paymentcontrollers.RecordCOD(deps.Payments, logg))
			r.With(middleware.RequireAnyRole(logg, seller, admin)).
				Post("/cod/collected", paymentcontrollers.MarkCODCollected(deps.Payments, logg))
		})

		r.Route("/shipping", func(r chi.Router) {
			r.Get("/track/{orderId}", shippingcontrollers.Track(deps.Shipping, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, seller, admin))

				r.Post("/create-order/{orderId}", shippingcontrollers.CreateShipment(deps.Shipping, logg))
				r.Post("/generate-awb", shippingcontrollers.AssignAWB(deps.Shipping, logg))
				r.Post("/pickup", shippingcontrollers.RequestPickup(deps.Shipping, logg))
				r.Post("/label", shippingcontrollers.GenerateLabel(deps.Shipping, logg))
			})
		})
	})

	return r
}
