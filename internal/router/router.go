package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/handler"
	"github.com/headachelog/internal/logging"
)

const cookieMaxAge = 365 * 24 * 60 * 60

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string, logger *slog.Logger) *gin.Engine {
	r := gin.Default()
	r.Use(logging.Middleware(logger))

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(handler.SessionCookieName, store))

	r.GET("/ping", handler.Ping)
	r.GET("/healthz", api.Healthz)

	// 分析代理不依赖会话
	r.POST("/api/analyze", api.AnalyzeProxy)

	apiGroup := r.Group("/api")
	apiGroup.Use(api.SessionRequired())
	{
		apiGroup.GET("/session", api.GetSession)

		auth := apiGroup.Group("/auth")
		{
			auth.POST("/signup", api.SignUp)
			auth.POST("/signin", api.SignIn)
			auth.POST("/local", api.UseLocal)
			auth.POST("/signout", api.SignOut)
		}

		editor := apiGroup.Group("/editor")
		{
			editor.GET("", api.GetEditor)
			editor.POST("/open", api.OpenDate)
			editor.POST("/shift", api.ShiftDate)
			editor.POST("/today", api.OpenToday)
			editor.PATCH("/fields", api.EditFields)
			editor.POST("/flush", api.FlushEditor)
		}

		apiGroup.GET("/entries", api.ListEntries)
		apiGroup.GET("/entries/:date", api.GetEntry)
		apiGroup.DELETE("/entries/:date", api.DeleteEntry)

		apiGroup.GET("/stats", api.GetStats)
		apiGroup.GET("/trends", api.GetTrends)
		apiGroup.GET("/calendar", api.GetCalendar)

		apiGroup.GET("/export/csv", api.ExportCSV)
		apiGroup.GET("/export/report", api.ExportReport)
		apiGroup.GET("/export/json", api.ExportJSON)
		apiGroup.POST("/import/json", api.ImportJSON)

		apiGroup.GET("/preferences", api.GetPreferences)
		apiGroup.PUT("/preferences", api.UpdatePreferences)

		apiGroup.POST("/analysis", api.GenerateAnalysis)
		apiGroup.GET("/analysis/reports", api.ListReports)
		apiGroup.DELETE("/analysis/reports/:id", api.DeleteReport)
	}

	return r
}
