package api

import (
	"net/http"
	"strconv"

	"checkout-service/internal/models"

	"github.com/gin-gonic/gin"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// placeOrder converts the caller's cart into an order
func (h *Handler) placeOrder(c *gin.Context) {
	details, err := h.orders.PlaceOrder(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newOrderDetailsResponse(details))
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	details, err := h.orders.GetOrder(c.Request.Context(), principalFrom(c), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderDetailsResponse(details))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAllOrders(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) listOrdersByStatus(c *gin.Context) {
	status, err := models.ParseOrderStatus(c.Param("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders, err := h.orders.ListOrdersByStatus(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderListResponse(orders))
}

func (h *Handler) orderStats(c *gin.Context) {
	stats, err := h.orders.OrderStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, OrderStatsResponse{
		TotalOrders:  stats.TotalOrders,
		TotalRevenue: stats.TotalRevenue,
		RecentOrders: newOrderListResponse(stats.RecentOrders),
	})
}

// updateOrderStatus applies an administrative transition
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "BadRequest", "body must be {\"status\": <status>}")
		return
	}

	next, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	details, err := h.orders.UpdateOrderStatus(c.Request.Context(), orderID, next)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderDetailsResponse(details))
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "BadRequest", "invalid "+param)
		return 0, false
	}
	return id, true
}
