package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// NotificationHandlers serves inboxes for users, guests and admins
type NotificationHandlers struct {
	responder
	notifications *services.NotificationService
	users         *services.UserService
	broadcast     *services.BroadcastService
	hub           *services.NotificationHub
}

// NewNotificationHandlers creates the notification handler group
func NewNotificationHandlers(
	notifications *services.NotificationService,
	users *services.UserService,
	broadcast *services.BroadcastService,
	hub *services.NotificationHub,
	log *logrus.Logger,
	debug bool,
) *NotificationHandlers {
	return &NotificationHandlers{
		responder:     responder{log: log, debug: debug},
		notifications: notifications,
		users:         users,
		broadcast:     broadcast,
		hub:           hub,
	}
}

func (h *NotificationHandlers) recipient(c *gin.Context) (models.Recipient, bool) {
	r, ok := identity(c).Recipient()
	if !ok {
		h.fail(c, services.NewAuthError(services.CodeTokenMissing, "Sign in or provide a guest email"))
	}
	return r, ok
}

// GetNotifications lists the caller's inbox with optional type and read filters.
func (h *NotificationHandlers) GetNotifications(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}

	page, limit := pagination(c)
	in := services.ListNotificationsInput{
		Type:  models.NotificationType(c.Query("type")),
		Page:  page,
		Limit: limit,
	}
	if raw := c.Query("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(c, services.NewValidationError("read must be true or false"))
			return
		}
		in.Read = &read
	}

	result, err := h.notifications.List(c.Request.Context(), r, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": result.Items,
		"pagination": gin.H{
			"total":      result.Total,
			"page":       result.Page,
			"limit":      result.Limit,
			"totalPages": result.TotalPages,
		},
	})
}

// GetUnreadCount returns the number of unread live notifications.
func (h *NotificationHandlers) GetUnreadCount(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(c.Request.Context(), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// MarkAsRead marks one notification read. Repeating it is a no-op.
func (h *NotificationHandlers) MarkAsRead(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAsRead(c.Request.Context(), r, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notification": n})
}

// MarkClicked records a click, which also marks the notification read.
func (h *NotificationHandlers) MarkClicked(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkClicked(c.Request.Context(), r, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notification": n})
}

// MarkAllAsRead marks the whole inbox read.
func (h *NotificationHandlers) MarkAllAsRead(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}
	modified, err := h.notifications.MarkAllAsRead(c.Request.Context(), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": modified})
}

// DeleteNotification removes one notification from the inbox.
func (h *NotificationHandlers) DeleteNotification(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), r, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted"})
}

type registerPushRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// RegisterPushToken stores the device token of the signed-in user.
func (h *NotificationHandlers) RegisterPushToken(c *gin.Context) {
	var req registerPushRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.users.RegisterPushToken(c.Request.Context(), identity(c).UserID, req.Token, req.Platform); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Push token registered"})
}

// UpdatePreferences changes the user's channel toggles.
func (h *NotificationHandlers) UpdatePreferences(c *gin.Context) {
	var req services.PreferencesUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	prefs, err := h.users.UpdatePreferences(c.Request.Context(), identity(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "preferences": prefs})
}

// Broadcast sends an admin announcement to every reachable user.
func (h *NotificationHandlers) Broadcast(c *gin.Context) {
	var req services.BroadcastInput
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.broadcast.Send(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// Stream upgrades to a websocket that receives new notifications for the
// caller's inbox.
func (h *NotificationHandlers) Stream(c *gin.Context) {
	r, ok := h.recipient(c)
	if !ok {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, r); err != nil {
		// the upgrader already wrote the HTTP error
		h.log.WithError(err).Debug("Websocket upgrade failed")
	}
}
