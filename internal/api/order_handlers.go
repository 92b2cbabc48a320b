package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/services"
)

// OrderHandlers serves checkout, order lookups and the admin order views
type OrderHandlers struct {
	responder
	orders    *services.OrderService
	dashboard *services.DashboardService
}

// NewOrderHandlers creates the order handler group
func NewOrderHandlers(orders *services.OrderService, dashboard *services.DashboardService, log *logrus.Logger, debug bool) *OrderHandlers {
	return &OrderHandlers{
		responder: responder{log: log, debug: debug},
		orders:    orders,
		dashboard: dashboard,
	}
}

// PlaceOrder accepts only the canonical orderItems/totalPrice payload.
func (h *OrderHandlers) PlaceOrder(c *gin.Context) {
	var req services.PlaceOrderInput
	if !h.decodeStrict(c, &req) {
		return
	}

	result, err := h.orders.PlaceOrder(c.Request.Context(), req, identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"message":       "Order placed successfully",
		"order":         result.Order,
		"notifications": result.Dispatch.Results,
	})
}

// GetOrder returns one order to its owner, an admin, or anyone holding a
// guest order id.
func (h *OrderHandlers) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// TrackOrder looks an order up by its public tracking id.
func (h *OrderHandlers) TrackOrder(c *gin.Context) {
	order, err := h.orders.GetByTrackingID(c.Request.Context(), c.Param("trackingId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// GetUserOrders lists the signed-in user's orders.
func (h *OrderHandlers) GetUserOrders(c *gin.Context) {
	orders, err := h.orders.ListUserOrders(c.Request.Context(), identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders, "count": len(orders)})
}

// GetGuestOrders lists guest orders for ?email=.
func (h *OrderHandlers) GetGuestOrders(c *gin.Context) {
	orders, err := h.orders.ListGuestOrders(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders, "count": len(orders)})
}

// UpdateOrderStatus applies an admin status change. Notification failures
// are reported but never change the status code.
func (h *OrderHandlers) UpdateOrderStatus(c *gin.Context) {
	var req services.StatusUpdateInput
	if !h.bindJSON(c, &req) {
		return
	}

	id := identity(c)
	result, err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("orderId"), req, id.Email)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Order status updated",
		"order":         result.Order,
		"notifications": result.Dispatch.Results,
	})
}

// DeleteOrder removes an order.
func (h *OrderHandlers) DeleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("orderId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order deleted"})
}

// GetStats returns the dashboard aggregates.
func (h *OrderHandlers) GetStats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// ExportOrders streams every order as CSV.
func (h *OrderHandlers) ExportOrders(c *gin.Context) {
	filename := fmt.Sprintf("orders-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := h.dashboard.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		// headers are already sent
		h.log.WithError(err).Error("Order export aborted")
		_ = c.Error(err)
	}
}
