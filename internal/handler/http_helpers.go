package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// handleServiceError 把服务层的哨兵错误映射成 HTTP 状态码。
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoBackend):
		respondError(c, http.StatusUnauthorized, "sign in or continue locally first")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoDataInRange):
		respondError(c, http.StatusNotFound, "No entries in selected date range")
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrNoActiveDate),
		errors.Is(err, service.ErrAPIKeyMissing),
		errors.Is(err, service.ErrNotEnoughData):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRemoteAnalysis):
		respondError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, service.ErrPersistence):
		logging.From(c).Warn("backend unavailable", "error", err)
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		logging.From(c).Error("unhandled error", "error", err)
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func setAttachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// persistenceError 给后端直接返回的错误补上 ErrPersistence，校验错误保持原样。
func persistenceError(err error) error {
	if errors.Is(err, service.ErrValidation) || errors.Is(err, service.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", service.ErrPersistence, err)
}
