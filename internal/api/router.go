package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().(http.HandlerFunc))
	r.Get("/api/health", s.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Timeout(10 * time.Minute)).Route("/scraper", func(r chi.Router) {
			r.Post("/run", s.handleRunScraper)
			r.Post("/run-healthy", s.handleRunHealthyScraper)
		})

		r.With(middleware.Timeout(30 * time.Second)).Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Get("/search", s.handleSearchProducts)
			r.Get("/{productID}", s.handleGetProduct)
			r.Delete("/{productID}", s.handleDeleteProduct)
		})

		r.With(middleware.Timeout(30 * time.Second)).Route("/pricehistory", func(r chi.Router) {
			r.Get("/drops", s.handlePriceDrops)
			r.Get("/{productID}", s.handlePriceHistory)
		})
	})

	return r
}
