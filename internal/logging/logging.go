package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	loggerContextKey contextKey = "logger"
	// RequestIDHeader 回写给客户端，便于对照日志。
	RequestIDHeader = "X-Request-ID"
	ginLoggerKey    = "logger"
)

// ParseLevel 把 debug/info/warn/error 转成 slog.Level，无法识别时为 info。
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 构造文本格式的结构化日志。
func New(w io.Writer, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// WithLogger 把 logger 放进 ctx。
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext 取出请求级 logger，没有时返回默认 logger。
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// From 取出 gin 请求上的 logger。
func From(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if logger, ok := v.(*slog.Logger); ok {
			return logger
		}
	}
	return FromContext(c.Request.Context())
}

// Extend 给当前请求的 logger 追加字段，后续中间件与处理器都能看到。
func Extend(c *gin.Context, args ...any) *slog.Logger {
	logger := From(c).With(args...)
	c.Set(ginLoggerKey, logger)
	c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), logger))
	return logger
}

// Middleware 为每个请求生成 request id，并在结束时记录状态码与耗时。
func Middleware(base *slog.Logger) gin.HandlerFunc {
	if base == nil {
		base = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		reqID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		logger := base.With(slog.String("request_id", reqID), slog.String("from", c.ClientIP()))
		c.Set(ginLoggerKey, logger)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), logger))

		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= 500 {
			level = slog.LevelWarn
		}
		From(c).Log(c.Request.Context(), level, "request handled",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
