package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"home-service-server/middleware"
	"home-service-server/models"
	"home-service-server/services"
)

// NotificationHandler serves the caller's notification inbox
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(router *gin.RouterGroup) {
	router.GET("", h.getNotifications)
	router.GET("/unread-count", h.getUnreadCount)
	router.POST("/:id/read", h.markAsRead)
	router.POST("/read-all", h.markAllAsRead)
}

func (h *NotificationHandler) getNotifications(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ns, err := h.notifications.List(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]models.NotificationResponse, 0, len(ns))
	for i := range ns {
		out = append(out, ns[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (h *NotificationHandler) getUnreadCount(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	count, err := h.notifications.UnreadCount(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *NotificationHandler) markAsRead(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) markAllAsRead(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}
