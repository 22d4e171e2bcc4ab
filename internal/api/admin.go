package api

import (
	"net/http"

	"shoepalace/internal/auth"
	"shoepalace/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createProduct(c *gin.Context) {
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, _ := auth.FromContext(c)
	product, err := h.catalog.CreateProduct(c.Request.Context(), identity, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, _ := auth.FromContext(c)
	product, err := h.catalog.UpdateProduct(c.Request.Context(), identity, c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) listOrders(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	orders, err := h.lifecycle.ListOrders(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) setOrderStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, _ := auth.FromContext(c)
	if err := h.lifecycle.SetStatus(c.Request.Context(), identity, c.Param("id"), req.Status); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "status": req.Status})
}
