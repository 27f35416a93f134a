package api

import (
	"context"
	"net/http"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// OrderService is the checkout and order lifecycle surface
type OrderService interface {
	PlaceOrder(ctx context.Context, principal models.Principal) (*service.OrderDetails, error)
	GetOrder(ctx context.Context, principal models.Principal, orderID int64) (*service.OrderDetails, error)
	ListOrders(ctx context.Context, principal models.Principal) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, next models.OrderStatus) (*service.OrderDetails, error)
	OrderStats(ctx context.Context) (*models.OrderStats, error)
}

// CartService is the per-user cart surface
type CartService interface {
	GetCart(ctx context.Context, principal models.Principal) (*service.Cart, error)
	AddItem(ctx context.Context, principal models.Principal, productID int64, quantity int) (*service.Cart, error)
	UpdateItem(ctx context.Context, principal models.Principal, lineID int64, quantity int) (*service.Cart, error)
	RemoveItem(ctx context.Context, principal models.Principal, lineID int64) (*service.Cart, error)
}

// PaymentService is the gateway session and callback surface
type PaymentService interface {
	CreateSession(ctx context.Context, principal models.Principal, orderID int64) (*service.PaymentSession, error)
	Verify(ctx context.Context, cb service.PaymentCallback) (*service.VerifyResult, error)
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders   OrderService
	carts    CartService
	payments PaymentService
	deps     map[string]Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are pinged by /ready.
func NewHandler(orders OrderService, carts CartService, payments PaymentService, deps map[string]Pinger) *Handler {
	return &Handler{
		orders:   orders,
		carts:    carts,
		payments: payments,
		deps:     deps,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(util.ServiceName))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The callback is authenticated by its signature, not by a principal.
	router.POST("/payments/verify", h.verifyPayment)

	authed := router.Group("/", principalMiddleware())
	{
		authed.GET("/cart", h.getCart)
		authed.POST("/cart", h.addCartItem)
		authed.PUT("/cart/:lineId", h.updateCartItem)
		authed.DELETE("/cart/:lineId", h.removeCartItem)

		authed.POST("/orders/place", h.placeOrder)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
		authed.PUT("/orders/:id/status", requireAdmin(), h.updateOrderStatus)

		authed.POST("/payments/create-order/:orderId", h.createPaymentSession)
	}

	admin := authed.Group("/admin", requireAdmin())
	{
		admin.GET("/orders", h.listAllOrders)
		admin.GET("/orders/status/:status", h.listOrdersByStatus)
		admin.PUT("/orders/:id/status", h.updateOrderStatus)
		admin.GET("/dashboard/stats", h.orderStats)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}
