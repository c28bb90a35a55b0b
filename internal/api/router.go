package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adilrza0/qusamba-sub001/internal/api/handlers"
	"github.com/adilrza0/qusamba-sub001/internal/api/middleware"
	"github.com/adilrza0/qusamba-sub001/internal/metrics"
	"github.com/adilrza0/qusamba-sub001/internal/service"
)

type Deps struct {
	Coupons  *service.CouponService
	Checkout *service.CheckoutService
	Carts    service.CartStore
	Metrics  *metrics.Collectors
	Log      *zap.Logger
}

// NewRouter builds the HTTP router for the storefront service
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.Metrics(d.Metrics))

	couponHandler := handlers.NewCouponHandler(d.Coupons, d.Log)
	cartHandler := handlers.NewCartHandler(d.Carts, d.Log)
	checkoutHandler := handlers.NewCheckoutHandler(d.Checkout, d.Log)

	// Public coupon endpoints
	r.Route("/coupons", func(r chi.Router) {
		r.Get("/applicable", couponHandler.GetApplicableCoupons)
		r.Post("/validate", couponHandler.ValidateCoupon)
	})

	// Admin endpoints
	r.Route("/admin/coupons", func(r chi.Router) {
		r.Post("/", couponHandler.CreateCoupon)
		r.Get("/{code}", couponHandler.GetCoupon)
		r.Put("/{code}", couponHandler.UpdateCoupon)
		r.Post("/{code}/deactivate", couponHandler.DeactivateCoupon)
	})

	r.Route("/carts/{session}", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/items", cartHandler.AddItem)
		r.Patch("/items", cartHandler.UpdateQuantity)
		r.Delete("/items", cartHandler.RemoveItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/quote", checkoutHandler.Quote)
		r.Post("/confirm", checkoutHandler.Confirm)
	})

	r.Handle("/metrics", d.Metrics.Handler())

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
