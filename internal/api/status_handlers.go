package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Toshin-unyu/Zimmeter/internal/auth"
	"github.com/Toshin-unyu/Zimmeter/internal/service"
)

func GetToday(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		st, err := app.Days().Today(c.Request.Context(), worker.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load today's status")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"date": st.Date, "has_left": st.HasLeft}, nil)
	}
}

func PostLeave(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		day, err := app.Days().Leave(c.Request.Context(), worker.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to record leave")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"date": day}, nil)
	}
}

func PostResume(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		if err := app.Days().Resume(c.Request.Context(), worker.ID); err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to resume")
			return
		}
		HandleSuccess(c, app.Logger(), gin.H{"date": app.Days().CurrentDay()}, nil)
	}
}

func GetCheck(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		st, err := app.Days().CheckPreviousDay(c.Request.Context(), worker.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to check previous day")
			return
		}
		if st == nil {
			HandleSuccess(c, app.Logger(), nil, map[string]any{"needs_fix": false})
			return
		}
		HandleSuccess(c, app.Logger(), st, map[string]any{"needs_fix": st.NeedsFix})
	}
}

func PostFix(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)

		var req service.FixRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := service.ValidateFixRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Validation failed")
			return
		}

		st, err := app.Days().Fix(c.Request.Context(), worker.ID, req.Date)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fix day")
			return
		}
		HandleSuccess(c, app.Logger(), st, nil)
	}
}
