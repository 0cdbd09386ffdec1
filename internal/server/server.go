package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nasmon/internal/handlers"

	"github.com/gin-gonic/gin"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router         *gin.Engine
	alertHandler   *handlers.AlertHandler
	serviceHandler *handlers.ServiceHandler
	classHandler   *handlers.ClassHandler
	peerHandler    *handlers.PeerHandler
	healthHandler  *handlers.HealthHandler
	port           int

	httpServer *http.Server
}

func New(alertHandler *handlers.AlertHandler, serviceHandler *handlers.ServiceHandler,
	classHandler *handlers.ClassHandler, peerHandler *handlers.PeerHandler,
	healthHandler *handlers.HealthHandler, port int) *Server {

	return &Server{
		router:         gin.Default(),
		alertHandler:   alertHandler,
		serviceHandler: serviceHandler,
		classHandler:   classHandler,
		peerHandler:    peerHandler,
		healthHandler:  healthHandler,
		port:           port,
	}
}

func (s *Server) SetupRoutes() {
	// Health check
	s.router.GET("/health/database", s.healthHandler.CheckDatabase)

	// Prometheus metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Alert routes
	alerts := s.router.Group("/api/v1/alerts")
	{
		alerts.GET("", s.alertHandler.List)
		alerts.POST("/:id/dismiss", s.alertHandler.Dismiss)
		alerts.POST("/:id/restore", s.alertHandler.Restore)
		alerts.POST("/oneshot", s.alertHandler.OneshotCreate)
		alerts.DELETE("/oneshot", s.alertHandler.OneshotDelete)
		alerts.POST("/flush", s.alertHandler.Flush)
	}

	// Source administration
	srcs := s.router.Group("/api/v1/alertsources")
	{
		srcs.GET("/stats", s.alertHandler.SourcesStats)
		srcs.GET("/blocked", s.alertHandler.BlockedSources)
		srcs.POST("/:name/run", s.alertHandler.RunSource)
		srcs.POST("/:name/block", s.alertHandler.BlockSource)
		srcs.DELETE("/blocks/:id", s.alertHandler.UnblockSource)
	}

	// Alert service (delivery channel) configuration
	svcs := s.router.Group("/api/v1/alertservices")
	{
		svcs.GET("", s.serviceHandler.List)
		svcs.POST("", s.serviceHandler.Create)
		svcs.PUT("/:id", s.serviceHandler.Update)
		svcs.DELETE("/:id", s.serviceHandler.Delete)
		svcs.POST("/test", s.serviceHandler.Test)
	}

	// Class catalog and per-class configuration
	cls := s.router.Group("/api/v1/alertclasses")
	{
		cls.GET("/categories", s.classHandler.Categories)
		cls.GET("/policies", s.classHandler.Policies)
		cls.GET("", s.classHandler.List)
		cls.GET("/:class", s.classHandler.Get)
		cls.PUT("/:class", s.classHandler.Update)
	}

	// Peer RPC surface used by the other controller
	peer := s.router.Group("/api/v1/peer")
	{
		peer.GET("/version", s.peerHandler.Version)
		peer.GET("/state", s.peerHandler.State)
		peer.GET("/status", s.peerHandler.Status)
		peer.GET("/uptime", s.peerHandler.Uptime)
		peer.POST("/run_source/:name", s.peerHandler.RunSource)
	}
}

func (s *Server) Start() error {
	s.SetupRoutes()
	fmt.Printf("Starting server on port %d...\n", s.port)

	s.httpServer = &http.Server{
		Addr:    ":" + strconv.Itoa(s.port),
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
