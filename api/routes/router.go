package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codmtracker/codm-backend/api/controllers"
	cartcontrollers "github.com/codmtracker/codm-backend/api/controllers/cart"
	ordercontrollers "github.com/codmtracker/codm-backend/api/controllers/orders"
	webhookcontrollers "github.com/codmtracker/codm-backend/api/controllers/webhooks"
	"github.com/codmtracker/codm-backend/api/middleware"
	"github.com/codmtracker/codm-backend/internal/cart"
	"github.com/codmtracker/codm-backend/internal/orders"
	"github.com/codmtracker/codm-backend/internal/payments"
	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/pkg/config"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/metrics"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Dependencies are the collaborators the HTTP surface dispatches to.
// RedisPinger, Idempotency and WebhookVerifier may be nil: Redis is optional
// and a missing gateway key disables signature checks (every delivery is
// rejected).
type Dependencies struct {
	DBPinger    Pinger
	RedisPinger Pinger
	Idempotency IdempotencyStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Products        product.Service
	Cart            cart.Service
	Orders          orders.Service
	Payments        payments.Service
	Tournaments     tournaments.Service
	PaystackEvents  webhookcontrollers.PaystackEventHandler
	WebhookVerifier webhookcontrollers.SignatureVerifier
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var idempotent func(http.Handler) http.Handler = func(next http.Handler) http.Handler { return next }
	if deps.Idempotency != nil {
		idempotent = middleware.Idempotency(deps.Idempotency, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Gateway-facing endpoints carry no bearer token.
		r.HandleFunc("/webhooks/paystack", webhookcontrollers.PaystackWebhook(deps.PaystackEvents, deps.WebhookVerifier, logg))
		r.Get("/payments/callback", controllers.PaymentCallback(deps.Payments, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/products", controllers.ProductList(deps.Products, logg))
			r.Get("/products/{productID}", controllers.ProductDetail(deps.Products, logg))
			r.Get("/categories", controllers.CategoryList(deps.Products, logg))
			r.Get("/tournaments", controllers.TournamentList(deps.Tournaments, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
				r.Get("/count", cartcontrollers.CartCount(deps.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
				r.Patch("/items/{lineID}", cartcontrollers.CartUpdateLine(deps.Cart, logg))
				r.Delete("/items/{lineID}", cartcontrollers.CartRemoveLine(deps.Cart, logg))
			})

			r.With(idempotent).Post("/checkout", ordercontrollers.Checkout(deps.Orders, logg))
			r.Get("/orders", ordercontrollers.RecentOrders(deps.Orders, logg))

			r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
				r.With(idempotent).Post("/register", controllers.TournamentRegister(deps.Tournaments, logg))
				r.Get("/registration", controllers.TournamentRegistration(deps.Tournaments, logg))
			})
		})
	})

	return r
}
