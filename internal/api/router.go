package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Toshin-unyu/Zimmeter/internal/auth"
)

func NewRouter(app App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), AccessLogMiddleware(app.Logger()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(auth.IdentityMiddleware(app.Identity(), app.Logger()))
	{
		api.GET("/users/me", GetMe(app))
		api.GET("/categories", GetCategories(app))
		api.GET("/layout", GetLayout(app))
		api.GET("/settings", GetSettings(app))
		api.PUT("/settings", PutSettings(app))

		api.GET("/logs/active", GetActive(app))
		api.POST("/logs/switch", PostSwitch(app))
		api.POST("/logs/stop", PostStop(app))
		api.POST("/logs/manual", PostManual(app))
		api.PATCH("/logs/:id", PatchEntry(app))
		api.GET("/logs/history", GetHistory(app))
		api.GET("/logs/timeline", GetTimeline(app))
		api.GET("/logs/stats", GetStats(app))

		api.GET("/status/today", GetToday(app))
		api.POST("/status/leave", PostLeave(app))
		api.POST("/status/resume", PostResume(app))
		api.GET("/status/check", GetCheck(app))
		api.POST("/status/fix", PostFix(app))
	}

	return router
}
