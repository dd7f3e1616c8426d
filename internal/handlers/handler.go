package handlers

import (
	"net/http"

	"printer_monitor/internal/logger"
	"printer_monitor/internal/models"
	"printer_monitor/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// EventSource streams engine state events. *publisher.Hub implements it.
type EventSource interface {
	Subscribe(buffer int) (<-chan models.StateEvent, func())
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	events   EventSource
	metrics  http.Handler
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. events and
// metrics may be nil; the corresponding routes are then not registered.
func NewHandler(services *service.Service, events EventSource, metrics http.Handler, log *logger.Logger) *Handler {
	return &Handler{services: services, events: events, metrics: metrics, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	if h.events != nil {
		router.GET("/ws", h.wsConnect)
	}

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerPrinterRoutes(api)
		api.GET("/history", h.getHistory)
	}
}

func (h *Handler) registerPrinterRoutes(api *gin.RouterGroup) {
	printers := api.Group("/printers")
	{
		printers.GET("", h.listPrinters)
		printers.GET("/:id", h.getPrinter)
		printers.GET("/:id/history", h.getHistory)
		// Body example: {"on":true}
		printers.POST("/:id/switch", h.setSwitch)
		printers.POST("/:id/reset", h.resetCounters)
	}
}
