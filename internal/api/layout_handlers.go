package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Toshin-unyu/Zimmeter/internal/auth"
	"github.com/Toshin-unyu/Zimmeter/internal/service"
)

func GetMe(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), auth.Worker(c), nil)
	}
}

func GetCategories(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := app.Store().ListCategories(c.Request.Context())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to list categories")
			return
		}
		HandleSuccess(c, app.Logger(), cats, nil)
	}
}

func GetLayout(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		layout, err := service.ResolveWorkerLayout(c.Request.Context(), app.Store(), auth.Worker(c))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to resolve layout")
			return
		}
		HandleSuccess(c, app.Logger(), layout, nil)
	}
}

func GetSettings(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		pref, err := service.GetSettings(c.Request.Context(), app.Store(), auth.Worker(c).ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load settings")
			return
		}
		HandleSuccess(c, app.Logger(), pref, nil)
	}
}

// PutSettings decodes strictly: unknown fields are rejected, not ignored.
func PutSettings(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.SettingsRequest
		dec := json.NewDecoder(c.Request.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid settings payload")
			return
		}

		pref, err := service.SaveSettings(c.Request.Context(), app.Store(), auth.Worker(c).ID, &req, app.Sessions().Now())
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save settings")
			return
		}
		HandleSuccess(c, app.Logger(), pref, nil)
	}
}
