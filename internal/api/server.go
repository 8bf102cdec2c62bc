package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pricewatch/internal/cache"
	"pricewatch/internal/config"
	"pricewatch/internal/history"
	"pricewatch/internal/scraper"
	"pricewatch/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config       *config.Config
	router       http.Handler
	httpServer   *http.Server
	orchestrator *scraper.Service
	search       *cache.SearchService
	history      *history.Engine
	store        *storage.Store
	redisCache   *cache.RedisCache
	logger       *zap.Logger
}

func NewServer(cfg *config.Config, orch *scraper.Service, search *cache.SearchService, hist *history.Engine, store *storage.Store, rc *cache.RedisCache, logger *zap.Logger) *Server {
	s := &Server{
		config:       cfg,
		orchestrator: orch,
		search:       search,
		history:      hist,
		store:        store,
		redisCache:   rc,
		logger:       logger,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // scrape runs pause between sources
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
