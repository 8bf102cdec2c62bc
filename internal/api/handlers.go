package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricewatch/internal/domain"
	"pricewatch/internal/storage"
)

func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		s.respondWithError(w, http.StatusBadRequest, "term query parameter is required")
		return
	}

	s.logger.Info("scrape triggered", zap.String("term", term))
	report, err := s.orchestrator.RunAllSources(r.Context(), term)
	if err != nil {
		s.logger.Error("scrape run aborted", zap.String("term", term), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Scrape run aborted")
		return
	}
	s.respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) handleRunHealthyScraper(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	if term == "" {
		s.respondWithError(w, http.StatusBadRequest, "term query parameter is required")
		return
	}

	report, err := s.orchestrator.RunHealthySources(r.Context(), term)
	if err != nil {
		s.logger.Error("healthy scrape run aborted", zap.String("term", term), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Scrape run aborted")
		return
	}
	s.respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondWithError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	products, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not search products")
		return
	}
	s.respondWithJSON(w, http.StatusOK, products)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context(), 100)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve products")
		return
	}
	s.respondWithJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	product, err := s.store.GetProduct(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get product", zap.Int64("product_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve product")
		return
	}
	s.respondWithJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteProduct(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete product", zap.Int64("product_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not delete product")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.productID(w, r)
	if !ok {
		return
	}
	start, err := parseTimeParam(r, "start")
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "start must be RFC 3339")
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "end must be RFC 3339")
		return
	}

	samples, err := s.history.History(r.Context(), id, start, end)
	if err != nil {
		s.logger.Error("failed to get price history", zap.Int64("product_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve price history")
		return
	}
	stats, err := s.history.Stats(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get price stats", zap.Int64("product_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve price history")
		return
	}

	if samples == nil {
		samples = []domain.PriceSample{}
	}
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": id,
		"history":    samples,
		"statistics": stats,
	})
}

func (s *Server) handlePriceDrops(w http.ResponseWriter, r *http.Request) {
	threshold := decimal.NewFromInt(10)
	if v := r.URL.Query().Get("threshold"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			s.respondWithError(w, http.StatusBadRequest, "threshold must be a non-negative number")
			return
		}
		threshold = d
	}
	daysBack := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondWithError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		daysBack = n
	}

	products, err := s.history.ProductsWithDrops(r.Context(), threshold, daysBack)
	if err != nil {
		s.logger.Error("failed to get price drops", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve price drops")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"threshold": threshold,
		"days_back": daysBack,
		"count":     len(products),
		"products":  products,
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.store.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.redisCache.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	if healthStatus["postgres"] != "healthy" || healthStatus["redis"] != "healthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "productID must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
