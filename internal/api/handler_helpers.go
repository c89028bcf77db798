package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Toshin-unyu/Zimmeter/internal"
	"github.com/Toshin-unyu/Zimmeter/internal/auth"
	"github.com/Toshin-unyu/Zimmeter/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	if status >= http.StatusInternalServerError {
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	} else {
		logger.Warnf("[request_id=%s] %s: %v", requestID, msg, err)
	}
	var resp response.APIResponse
	switch status {
	case http.StatusBadRequest:
		resp = response.BadRequest(msg + ": " + err.Error())
	case http.StatusNotFound:
		resp = response.NotFound(msg + ": " + err.Error())
	case http.StatusInternalServerError:
		resp = response.InternalError(msg)
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

// HandleServiceError derives the status from the error kind err wraps.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error, msg string) {
	HandleError(c, logger, err, internal.StatusFor(err), msg)
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Success", requestID)
	c.JSON(http.StatusOK, response.Success(data, meta))
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}) {
	requestID := c.GetString("request_id")
	logger.Debugf("[request_id=%s] Created", requestID)
	c.JSON(http.StatusCreated, response.Success(data, nil))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", internal.ErrValidation, raw)
	}
	return id, nil
}

// targetWorkerID returns the userId query value when present. Only admins
// may address another worker.
func targetWorkerID(c *gin.Context, app App) (int64, error) {
	self := auth.Worker(c)
	raw := c.Query("userId")
	if raw == "" {
		return self.ID, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return 0, err
	}
	if id == self.ID {
		return id, nil
	}
	if !self.IsAdmin() {
		return 0, fmt.Errorf("only admins may view other workers: %w", internal.ErrPermission)
	}
	if _, err := app.Store().GetWorker(c.Request.Context(), id); err != nil {
		return 0, err
	}
	return id, nil
}

// targetWorkerIDs parses a comma separated userIds list with the same rule.
func targetWorkerIDs(c *gin.Context) ([]int64, error) {
	self := auth.Worker(c)
	raw := strings.TrimSpace(c.Query("userIds"))
	if raw == "" {
		return []int64{self.ID}, nil
	}
	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		id, err := parseID(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if id != self.ID && !self.IsAdmin() {
			return nil, fmt.Errorf("only admins may view other workers: %w", internal.ErrPermission)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func dayParam(c *gin.Context, name string, fallback internal.Day) (internal.Day, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return internal.ParseDay(raw)
}
