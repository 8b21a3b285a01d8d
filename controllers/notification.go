package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func GetNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	page, err := svc.Notifications.List(c.Request.Context(), actor(c).UserID, unreadOnly, queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func GetUnreadCount(c *gin.Context) {
	n, err := svc.Notifications.UnreadCount(c.Request.Context(), actor(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"count": n})
}

func MarkNotificationRead(c *gin.Context) {
	n, err := svc.Notifications.MarkRead(c.Request.Context(), actor(c).UserID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, n)
}

func MarkAllNotificationsRead(c *gin.Context) {
	n, err := svc.Notifications.MarkAllRead(c.Request.Context(), actor(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": n})
}

func DeleteNotification(c *gin.Context) {
	if err := svc.Notifications.Delete(c.Request.Context(), actor(c).UserID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RunNotificationScheduler emits deadline and pending-document reminders.
func RunNotificationScheduler(c *gin.Context) {
	summary, err := svc.Notifications.RunScheduler(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}
