package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/campus-food/services"
	"github.com/yeremiapane/campus-food/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// GetMyNotifications -> inbox of the caller, ?unread=true for unread only
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var q struct {
		Unread bool `form:"unread"`
		Limit  int  `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	notifs, err := nc.Notifications.List(c.Request.Context(), userID, q.Unread, q.Limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	notifID, ok := paramID(c, "notif_id")
	if !ok {
		return
	}
	if err := nc.Notifications.MarkRead(c.Request.Context(), userID, notifID, time.Now().UTC()); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", nil)
}
