package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr         string
	Port               string
	DatabasePath       string
	DatabaseURL        string
	SessionSecret      string
	GinMode            string
	LocalStorePath     string
	AutoSaveDelay      time.Duration
	AutoSaveTextDelay  time.Duration
	SessionIdleTimeout time.Duration
	AnalysisProxyURL   string
	AnthropicBaseURL   string
	AnthropicModel     string
	LogLevel           string
	InitUserEmail      string
	InitUserPassword   string
}

const (
	defaultAutoSaveDelay      = 500 * time.Millisecond
	defaultAutoSaveTextDelay  = 5 * time.Second
	defaultSessionIdleTimeout = 12 * time.Hour
	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-haiku-4-5-20251001"
)

// Load 读取可选的 .env 文件后，从环境变量构造配置，并为缺失项提供默认值。
func Load() AppConfig {
	// .env 不存在是正常情况
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv 只读取当前进程环境变量。
func FromEnv() AppConfig {
	port := getenv("PORT", "8080")
	listenAddr := getenv("LISTEN_ADDR", fmt.Sprintf(":%s", port))

	proxyURL := getenv("ANALYSIS_PROXY_URL", "")
	if proxyURL == "" {
		proxyURL = defaultProxyURL(listenAddr)
	}

	return AppConfig{
		ListenAddr:         listenAddr,
		Port:               port,
		DatabasePath:       getenv("DATABASE_PATH", "headachelog.db"),
		DatabaseURL:        getenv("DATABASE_URL", ""),
		SessionSecret:      getenv("SESSION_SECRET", "headachelog-dev-secret"),
		GinMode:            getenv("GIN_MODE", "release"),
		LocalStorePath:     getenv("LOCAL_STORE_PATH", "data/local"),
		AutoSaveDelay:      getduration("AUTOSAVE_DELAY", defaultAutoSaveDelay),
		AutoSaveTextDelay:  getduration("AUTOSAVE_TEXT_DELAY", defaultAutoSaveTextDelay),
		SessionIdleTimeout: getduration("SESSION_IDLE_TIMEOUT", defaultSessionIdleTimeout),
		AnalysisProxyURL:   proxyURL,
		AnthropicBaseURL:   strings.TrimRight(getenv("ANTHROPIC_BASE_URL", defaultAnthropicBaseURL), "/"),
		AnthropicModel:     getenv("ANTHROPIC_MODEL", defaultAnthropicModel),
		LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
		InitUserEmail:      getenv("INIT_USER_EMAIL", ""),
		InitUserPassword:   getenv("INIT_USER_PASSWORD", ""),
	}
}

func getenv(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

// getduration 接受 "750ms" 这类写法，纯数字按毫秒处理。
func getduration(key string, def time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	if ms, err := cast.ToInt64E(raw); err == nil {
		if ms <= 0 {
			return def
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := cast.ToDurationE(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func defaultProxyURL(listenAddr string) string {
	host := listenAddr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/api/analyze"
}
