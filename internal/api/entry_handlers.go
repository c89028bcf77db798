package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/auth"
	"github.com/Toshin-unyu/Zimmeter/internal/service"
)

type activeEntry struct {
	Entry          *internal.TimeEntry `json:"entry"`
	ElapsedSeconds int64               `json:"elapsed_seconds"`
}

func GetActive(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		entry, err := app.Sessions().Active(c.Request.Context(), worker.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to load active entry")
			return
		}
		if entry == nil {
			HandleSuccess(c, app.Logger(), nil, map[string]any{"active": false})
			return
		}
		HandleSuccess(c, app.Logger(), activeEntry{
			Entry:          entry,
			ElapsedSeconds: entry.ElapsedSeconds(app.Sessions().Now()),
		}, map[string]any{"active": true})
	}
}

func PostSwitch(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)

		var req service.SwitchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := service.ValidateSwitchRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Validation failed")
			return
		}

		result, err := app.Sessions().Switch(c.Request.Context(), worker.ID, req.CategoryID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to switch task")
			return
		}
		if result.Rejection != "" {
			HandleSuccess(c, app.Logger(), result, map[string]any{"rejected": true, "reason": result.Rejection})
			return
		}
		HandleSuccess(c, app.Logger(), result, nil)
	}
}

func PostStop(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		closed, err := app.Sessions().Stop(c.Request.Context(), worker.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to stop task")
			return
		}
		if closed == nil {
			HandleSuccess(c, app.Logger(), nil, map[string]any{"noop": true})
			return
		}
		HandleSuccess(c, app.Logger(), closed, nil)
	}
}

func PostManual(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)

		var req service.ManualEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := service.ValidateManualEntryRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Validation failed")
			return
		}

		entry, err := app.Sessions().CreateManual(c.Request.Context(), worker.ID, req.CategoryID, req.StartTime)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to create manual entry")
			return
		}
		HandleCreated(c, app.Logger(), entry)
	}
}

func PatchEntry(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		worker := auth.Worker(c)
		id, err := parseID(c.Param("id"))
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid entry id")
			return
		}

		var req service.EditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := service.ValidateEditRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Validation failed")
			return
		}

		actor := service.Actor{WorkerID: worker.ID, Role: worker.Role}
		entry, err := app.Sessions().Edit(c.Request.Context(), actor, id, &req)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to edit entry")
			return
		}
		HandleSuccess(c, app.Logger(), entry, nil)
	}
}

func GetHistory(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		workerID, err := targetWorkerID(c, app)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Invalid user")
			return
		}
		days := 7
		if raw := c.Query("days"); raw != "" {
			if days, err = strconv.Atoi(raw); err != nil {
				HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid days")
				return
			}
		}

		entries, err := app.Sessions().History(c.Request.Context(), workerID, days)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch history")
			return
		}
		HandleSuccess(c, app.Logger(), entries, map[string]any{"days": days, "count": len(entries)})
	}
}

func GetTimeline(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		workerID, err := targetWorkerID(c, app)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Invalid user")
			return
		}
		day, err := dayParam(c, "date", app.Sessions().Today())
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid date")
			return
		}

		segments, err := app.Sessions().Timeline(c.Request.Context(), workerID, day)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to build timeline")
			return
		}
		HandleSuccess(c, app.Logger(), segments, map[string]any{"date": day})
	}
}

func GetStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := targetWorkerIDs(c)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Invalid users")
			return
		}
		today := app.Sessions().Today()
		from, err := dayParam(c, "from", today)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid from date")
			return
		}
		to, err := dayParam(c, "to", today)
		if err != nil {
			HandleError(c, app.Logger(), err, http.StatusBadRequest, "Invalid to date")
			return
		}

		stats, err := app.Sessions().Stats(c.Request.Context(), ids, from, to)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to compute stats")
			return
		}
		HandleSuccess(c, app.Logger(), stats, map[string]any{"from": from, "to": to})
	}
}
