package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/services"
)

// WishlistHandlers serves the server-side wishlist of registered users
type WishlistHandlers struct {
	responder
	users *services.UserService
}

// NewWishlistHandlers creates the wishlist handler group
func NewWishlistHandlers(users *services.UserService, log *logrus.Logger, debug bool) *WishlistHandlers {
	return &WishlistHandlers{responder: responder{log: log, debug: debug}, users: users}
}

// GetWishlist retrieves the user's wishlist
func (h *WishlistHandlers) GetWishlist(c *gin.Context) {
	items, err := h.users.GetWishlist(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "wishlist": items})
}

// AddToWishlist adds a product to the user's wishlist
func (h *WishlistHandlers) AddToWishlist(c *gin.Context) {
	if err := h.users.AddToWishlist(c.Request.Context(), identity(c).UserID, c.Param("productId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Added to wishlist"})
}

// RemoveFromWishlist removes a product from the user's wishlist
func (h *WishlistHandlers) RemoveFromWishlist(c *gin.Context) {
	if err := h.users.RemoveFromWishlist(c.Request.Context(), identity(c).UserID, c.Param("productId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Removed from wishlist"})
}
