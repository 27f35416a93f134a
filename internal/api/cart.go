package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "BadRequest", "body must be {\"productId\": <id>, \"quantity\": <n>}")
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), principalFrom(c), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) updateCartItem(c *gin.Context) {
	lineID, ok := parseID(c, "lineId")
	if !ok {
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "BadRequest", "body must be {\"quantity\": <n>}")
		return
	}

	cart, err := h.carts.UpdateItem(c.Request.Context(), principalFrom(c), lineID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	lineID, ok := parseID(c, "lineId")
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), principalFrom(c), lineID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}
