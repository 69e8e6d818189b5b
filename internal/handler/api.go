package handler

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/headachelog/internal/service"
)

// Deps 汇总处理器依赖的服务。
type Deps struct {
	DB        *gorm.DB
	Sessions  *service.SessionManager
	Auth      *service.AuthService
	Analysis  *service.AnalysisService
	Anthropic *service.AnthropicClient
	Clock     service.Clock
	Logger    *slog.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	sessions  *service.SessionManager
	auth      *service.AuthService
	analysis  *service.AnalysisService
	anthropic *service.AnthropicClient
	clock     service.Clock
	logger    *slog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Deps) *API {
	api := &API{
		db:        deps.DB,
		sessions:  deps.Sessions,
		auth:      deps.Auth,
		analysis:  deps.Analysis,
		anthropic: deps.Anthropic,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if api.clock == nil {
		api.clock = service.SystemClock()
	}
	if api.logger == nil {
		api.logger = slog.Default()
	}
	if api.auth == nil && api.db != nil {
		api.auth = service.NewAuthService(api.db)
	}
	if api.anthropic == nil {
		api.anthropic = service.NewAnthropicClient("", "", api.logger)
	}
	return api
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Sessions exposes the session manager for shutdown hooks.
func (a *API) Sessions() *service.SessionManager {
	return a.sessions
}
