package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shoepalace/internal/auth"
	"shoepalace/internal/redisclient"
	"shoepalace/internal/service"
	"shoepalace/internal/store"
	"shoepalace/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog   *service.Catalog
	cart      *service.Cart
	checkout  *service.CheckoutEngine
	lifecycle *service.OrderLifecycle
	verifier  *auth.Verifier
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.Catalog,
	cart *service.Cart,
	checkout *service.CheckoutEngine,
	lifecycle *service.OrderLifecycle,
	verifier *auth.Verifier,
) *Handler {
	return &Handler{
		catalog:   catalog,
		cart:      cart,
		checkout:  checkout,
		lifecycle: lifecycle,
		verifier:  verifier,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
	}

	authed := v1.Group("")
	authed.Use(h.verifier.Middleware())
	{
		authed.GET("/cart", h.listCart)
		authed.POST("/cart/items", h.addCartLine)
		authed.PUT("/cart/items/:id", h.updateCartLine)
		authed.DELETE("/cart/items/:id", h.removeCartLine)
		authed.DELETE("/cart", h.clearCart)

		authed.POST("/checkout", h.placeOrder)

		authed.GET("/orders", h.listOwnOrders)
		authed.GET("/orders/:id", h.getOrder)

		authed.GET("/notifications", h.listNotifications)
		authed.PUT("/notifications/:id/read", h.markNotificationRead)
		authed.DELETE("/notifications", h.clearNotifications)
	}

	admin := v1.Group("/admin")
	admin.Use(h.verifier.Middleware(), auth.RequireAdmin())
	{
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.GET("/orders", h.listOrders)
		admin.PUT("/orders/:id/status", h.setOrderStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) listCart(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	lines, err := h.cart.List(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lines, "count": len(lines)})
}

type addCartLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Color     string `json:"color" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addCartLine(c *gin.Context) {
	var req addCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, _ := auth.FromContext(c)
	line, err := h.cart.AddLine(c.Request.Context(), identity, req.ProductID, req.Size, req.Color, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

type updateCartLineRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) updateCartLine(c *gin.Context) {
	var req updateCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, _ := auth.FromContext(c)
	line, err := h.cart.UpdateQuantity(c.Request.Context(), identity, c.Param("id"), req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *Handler) removeCartLine(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	if err := h.cart.RemoveLine(c.Request.Context(), identity, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	if err := h.cart.Clear(c.Request.Context(), identity); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type checkoutRequest struct {
	service.ShippingForm
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	identity, _ := auth.FromContext(c)
	lines, err := h.cart.List(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.checkout.PlaceOrder(c.Request.Context(), identity, lines, req.ShippingForm, req.IdempotencyKey)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOwnOrders(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	orders, err := h.lifecycle.ListOwnOrders(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

func (h *Handler) getOrder(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	order, err := h.lifecycle.GetOrder(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listNotifications(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	notifications, err := h.lifecycle.ListNotifications(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "total": len(notifications)})
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	if err := h.lifecycle.MarkNotificationRead(c.Request.Context(), identity, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearNotifications(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	if err := h.lifecycle.ClearNotifications(c.Request.Context(), identity); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps service errors onto HTTP statuses. Checkout failures
// keep their structured detail so the storefront can show availability.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validation *service.ValidationError
	var unavailable *service.ProductUnavailableError
	var insufficient *service.InsufficientStockError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error":      unavailable.Error(),
			"product_id": unavailable.ProductID,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":      insufficient.Error(),
			"product_id": insufficient.ProductID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store temporarily unavailable, please retry"})
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrNotificationNotFound),
		errors.Is(err, redisclient.ErrCartLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
