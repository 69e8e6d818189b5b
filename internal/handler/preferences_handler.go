package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/service"
)

type preferencesResponse struct {
	Theme     string `json:"theme"`
	APIKeySet bool   `json:"apiKeySet"`
}

func newPreferencesResponse(p journal.Preferences) preferencesResponse {
	return preferencesResponse{Theme: p.Theme, APIKeySet: p.APIKey != ""}
}

// GetPreferences 返回偏好设置，API Key 只报告是否已设置。
func (a *API) GetPreferences(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	backend := s.Backend()
	if backend == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	prefs, err := backend.LoadPreferences(ctx)
	if err != nil {
		handleServiceError(c, persistenceError(err))
		return
	}
	c.JSON(http.StatusOK, newPreferencesResponse(prefs))
}

// UpdatePreferences 合并写入偏好设置，未提供的字段保持不变。
func (a *API) UpdatePreferences(c *gin.Context) {
	var update journal.PreferencesUpdate
	if !bindJSON(c, &update, "invalid payload") {
		return
	}
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	backend := s.Backend()
	if backend == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	prefs, err := backend.SavePreferences(ctx, update)
	if err != nil {
		handleServiceError(c, persistenceError(err))
		return
	}
	c.JSON(http.StatusOK, newPreferencesResponse(prefs))
}
