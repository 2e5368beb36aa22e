package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokenforge/licensecore/api/controllers"
	"github.com/tokenforge/licensecore/api/middleware"
	"github.com/tokenforge/licensecore/pkg/config"
	"github.com/tokenforge/licensecore/pkg/logger"
	pkgredis "github.com/tokenforge/licensecore/pkg/redis"
)

// NewRouter wires every HTTP surface: health probes, public catalog and
// ledger reads, authenticated custody and purchase operations, and the
// admin subtree.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database controllers.Pinger,
	cache controllers.Pinger,
	idempotencyStore pkgredis.IdempotencyStore,
	catalogService controllers.CatalogService,
	custodyService controllers.CustodyService,
	salesService controllers.SalesService,
	registryService controllers.RegistryService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(database, cache, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(catalogService, logg))
			r.Get("/{productId}", controllers.GetProduct(catalogService, logg))
			r.Get("/{productId}/cost", controllers.GetProductCost(catalogService, logg))
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/summary", controllers.GetLedgerSummary(custodyService, catalogService, logg))
			r.Get("/tokens/{index}", controllers.GetTokenAt(custodyService, logg))
		})

		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.Get("/licenses", controllers.ListAccountLicenses(custodyService, logg))
			r.Get("/licenses/{index}", controllers.GetAccountLicenseAt(custodyService, logg))
			r.Get("/operators/{operatorId}", controllers.GetOperatorApproval(custodyService, logg))
		})

		// License reads and mutations share the /licenses/{tokenId}
		// prefix across auth boundaries, so they stay flat routes.
		r.Get("/licenses/{tokenId}", controllers.GetLicense(custodyService, logg))
		r.Get("/licenses/{tokenId}/owner", controllers.GetLicenseOwner(custodyService, logg))
		r.Get("/licenses/{tokenId}/approval", controllers.GetLicenseApproval(custodyService, logg))

		// Everything below requires an authenticated account.
		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.Idempotency(idempotencyStore, logg),
			)

			r.Post("/purchases", controllers.Purchase(salesService, logg))
			r.Post("/operators", controllers.SetOperator(custodyService, logg))

			r.Post("/licenses/{tokenId}/renew", controllers.RenewLicense(salesService, logg))
			r.Post("/licenses/{tokenId}/transfer", controllers.TransferLicense(custodyService, logg))
			r.Post("/licenses/{tokenId}/approve", controllers.ApproveLicense(custodyService, logg))
			r.Post("/licenses/{tokenId}/take", controllers.TakeLicense(custodyService, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Route("/products", func(r chi.Router) {
					r.Post("/", controllers.CreateProduct(catalogService, logg))
					r.Route("/{productId}", func(r chi.Router) {
						r.Post("/inventory/increment", controllers.IncrementInventory(catalogService, logg))
						r.Post("/inventory/decrement", controllers.DecrementInventory(catalogService, logg))
						r.Post("/inventory/clear", controllers.ClearInventory(catalogService, logg))
						r.Put("/price", controllers.SetPrice(catalogService, logg))
						r.Put("/renewable", controllers.SetRenewable(catalogService, logg))
					})
				})

				r.Route("/promotions", func(r chi.Router) {
					r.Post("/purchase", controllers.PromotionalPurchase(salesService, logg))
					r.Post("/renew", controllers.PromotionalRenewal(salesService, logg))
				})

				r.Route("/registry", func(r chi.Router) {
					r.Get("/", controllers.GetRegistryState(registryService, logg))
					r.Post("/pause", controllers.PauseRegistry(registryService, logg))
					r.Post("/unpause", controllers.UnpauseRegistry(registryService, logg))
					r.Put("/controller", controllers.SetRegistryController(registryService, logg))
					r.Put("/withdrawal", controllers.SetRegistryWithdrawal(registryService, logg))
					r.Post("/withdraw", controllers.WithdrawProceeds(registryService, logg))
				})
			})
		})
	})

	return r
}
