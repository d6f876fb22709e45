package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/avolkov/coffeedash-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.GetProducts)
			r.Post("/", h.CreateProduct)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.GetCustomers)
			r.Post("/", h.CreateCustomer)
			r.Put("/", h.UpdateCustomer)
			r.Delete("/", h.DeleteCustomer)
			r.Get("/drift", h.GetCustomerDrift)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.GetOrders)
			r.Post("/", h.CreateOrder)
			r.Post("/import", h.ImportOrders)
			r.Delete("/clear", h.ClearOrders)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/overview", h.GetOverview)
			r.Get("/sales", h.GetSalesReport)
			r.Get("/financial", h.GetFinancialReport)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", h.GetFinancialMetrics)
			r.Post("/", h.CreateFinancialMetric)
		})

		r.Route("/research", func(r chi.Router) {
			r.Get("/", h.GetMarketResearch)
			r.Post("/", h.CreateMarketResearch)
		})

		r.Get("/analytics", h.GetAnalytics)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
