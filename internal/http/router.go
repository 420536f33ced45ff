package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Cart    *CartHandler
	Orders  *OrdersHandler
	Auth    *AuthHandler
	Catalog *CatalogHandler
}

// NewRouter wires every storefront route. requestTimeout bounds each request.
func NewRouter(h Handlers, auth Authenticator, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/register", h.Auth.Register)

		r.Get("/products", h.Catalog.Search)
		r.Get("/products/suggestions", h.Catalog.Suggestions)
		r.Get("/products/{product_id}", h.Catalog.GetProduct)
		r.Get("/products/{product_id}/reviews", h.Catalog.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(auth))

			r.Get("/auth/me", h.Auth.Me)
			r.Post("/auth/logout", h.Auth.Logout)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Post("/items/{product_id}/remove", h.Cart.RemoveItem)
				r.Delete("/items/{product_id}", h.Cart.ClearItem)
				r.Post("/availability", h.Cart.CheckAvailability)
			})

			r.Post("/products/{product_id}/reviews", h.Catalog.CreateReview)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListMyOrders)
				r.Get("/{id}", h.Orders.GetMyOrder)
				r.Post("/{id}/refund", h.Orders.SubmitRefundRequest)
				r.Post("/{id}/return-shipping", h.Orders.SubmitReturnShippingInfo)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/notifications", h.Orders.Notifications)
				r.Patch("/reviews/{review_id}/reply", h.Catalog.ReplyReview)
				r.Delete("/reviews/{review_id}", h.Catalog.DeleteReview)
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", h.Orders.ListOrders)
					r.Get("/stats", h.Orders.Stats)
					r.Get("/by-status", h.Orders.OrdersByStatus)
					r.Get("/pending", h.Orders.Pending)
					r.Get("/export", h.Orders.Export)
					r.Post("/reload", h.Orders.Reload)
					r.Post("/reconcile", h.Orders.Reconcile)

					r.Get("/{id}", h.Orders.GetOrder)
					r.Delete("/{id}", h.Orders.DeleteOrder)
					r.Patch("/{id}/status", h.Orders.UpdateStatus)
					r.Patch("/{id}/payment-status", h.Orders.UpdatePaymentStatus)
					r.Post("/{id}/refund/decision", h.Orders.ProcessRefundRequest)
					r.Post("/{id}/return-shipping/approve", h.Orders.ApproveReturnShipping)
					r.Post("/{id}/return-received", h.Orders.ConfirmReturnReceived)
					r.Post("/{id}/refund-payment", h.Orders.ProcessRefundPayment)
					r.Post("/{id}/refund/complete", h.Orders.CompleteRefund)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
