package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthCheck reports the API and database status.
func HealthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbStatus := "ok"
		code := http.StatusOK
		if db == nil {
			dbStatus = "unavailable"
		} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			dbStatus = "unavailable"
		}
		if dbStatus != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"success": code == http.StatusOK,
			"data": gin.H{
				"status":    status,
				"database":  dbStatus,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}
}
