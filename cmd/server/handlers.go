package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sector-view-api/internal/config"
	"sector-view-api/internal/dto"
	"sector-view-api/internal/models"
	"sector-view-api/internal/refresh"
	"sector-view-api/internal/storage"
	"sector-view-api/internal/ws"
)

const refreshTimeout = time.Hour

// Server holds all HTTP dependencies
type Server struct {
	router  *gin.Engine
	config  *config.Config
	service *refresh.Service
	store   *storage.Store
	hub     *ws.Hub
	log     *logrus.Entry
}

func newServer(cfg *config.Config, service *refresh.Service, store *storage.Store, hub *ws.Hub, log *logrus.Entry) *Server {
	s := &Server{
		router:  gin.New(),
		config:  cfg,
		service: service,
		store:   store,
		hub:     hub,
		log:     log,
	}
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/progress", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request)
	})

	api := s.router.Group("/api/v1")
	{
		api.GET("/sectors", s.handleListSectors)
		api.GET("/sectors/performance", s.handleSectorPerformance)
		api.GET("/sectors/:id/stocks", s.handleSectorStocks)
		api.GET("/sectors/:id/outliers", s.handleSectorOutliers)
		api.GET("/outliers", s.handleAllOutliers)
		api.GET("/stats", s.handleStats)

		api.POST("/refresh", s.handleRefresh)
		api.POST("/refresh/russell", s.handleRefreshRussell)
		api.POST("/refresh/sectors/:symbol", s.handleRefreshSector)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "healthy",
		"service":             "sector-view-api",
		"timestamp":           time.Now().Unix(),
		"refresh_in_progress": s.service.RefreshInProgress(),
		"ws_clients":          s.hub.ClientCount(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.GetStats())
}

func (s *Server) handleListSectors(c *gin.Context) {
	sectors, err := s.store.ListSectors(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to list sectors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sectors, "count": len(sectors)})
}

func (s *Server) handleSectorStocks(c *gin.Context) {
	sectorID, ok := s.sectorID(c)
	if !ok {
		return
	}

	stocks, err := s.store.ListStocksBySector(c.Request.Context(), sectorID)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to list stocks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stocks, "count": len(stocks)})
}

func (s *Server) handleSectorPerformance(c *gin.Context) {
	var query dto.SummaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	universe := query.Universe
	if universe == "" {
		universe = models.UniverseSP500
	}

	summaries, err := s.service.SectorPerformance(c.Request.Context(), universe)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Failed to load sector performance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries, "universe": universe})
}

func (s *Server) handleAllOutliers(c *gin.Context) {
	universe, threshold, ok := s.outlierParams(c)
	if !ok {
		return
	}

	results, err := s.service.DetectAllOutliers(c.Request.Context(), universe, threshold)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Outlier detection failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      results,
		"universe":  universe,
		"threshold": threshold,
	})
}

func (s *Server) handleSectorOutliers(c *gin.Context) {
	sectorID, ok := s.sectorID(c)
	if !ok {
		return
	}
	universe, threshold, ok := s.outlierParams(c)
	if !ok {
		return
	}

	results, err := s.service.DetectSectorOutliers(c.Request.Context(), sectorID, universe, threshold)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "Outlier detection failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      results,
		"universe":  universe,
		"threshold": threshold,
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.startRefresh(c, models.UniverseSP500, func(ctx context.Context) error {
		_, err := s.service.RefreshAll(ctx)
		return err
	})
}

func (s *Server) handleRefreshRussell(c *gin.Context) {
	s.startRefresh(c, models.UniverseRussell, func(ctx context.Context) error {
		_, err := s.service.RefreshRussell(ctx)
		return err
	})
}

func (s *Server) handleRefreshSector(c *gin.Context) {
	symbol := c.Param("symbol")
	s.startRefresh(c, models.UniverseSP500, func(ctx context.Context) error {
		_, err := s.service.RefreshSector(ctx, symbol)
		return err
	})
}

// startRefresh kicks off a refresh in the background and replies 202.
// The service enforces single-flight across HTTP and scheduled runs; the
// pre-check here exists only to answer 409 instead of a silent no-op.
func (s *Server) startRefresh(c *gin.Context, universe string, run func(ctx context.Context) error) {
	if s.service.RefreshInProgress() {
		s.fail(c, http.StatusConflict, "A refresh is already in progress", nil)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if err := run(ctx); err != nil {
			if errors.Is(err, refresh.ErrRefreshInProgress) {
				s.log.WithField("universe", universe).Info("refresh already running, request dropped")
				return
			}
			s.log.WithError(err).WithField("universe", universe).Error("refresh failed")
		}
	}()

	c.JSON(http.StatusAccepted, dto.RefreshAccepted{
		Status:   "accepted",
		Universe: universe,
		Message:  "refresh started, progress available on /ws/progress",
	})
}

func (s *Server) sectorID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		s.fail(c, http.StatusBadRequest, "Invalid sector id", err)
		return 0, false
	}
	return id, true
}

func (s *Server) outlierParams(c *gin.Context) (string, float64, bool) {
	var query dto.OutlierQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.fail(c, http.StatusBadRequest, "Invalid query parameters", err)
		return "", 0, false
	}

	universe := query.Universe
	if universe == "" {
		universe = models.UniverseSP500
	}
	threshold := s.config.DefaultThreshold(universe)
	if query.Threshold != nil {
		threshold = *query.Threshold
	}
	return universe, threshold, true
}

func (s *Server) fail(c *gin.Context, status int, message string, err error) {
	resp := dto.ErrorResponse{
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		resp.Message = err.Error()
		if status >= http.StatusInternalServerError {
			s.log.WithError(err).Error(message)
		}
	}
	c.JSON(status, resp)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Accept, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
