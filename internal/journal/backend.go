package journal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTheme 是未设置主题时的取值。
const DefaultTheme = "default"

// Preferences 是每个命名空间唯一的偏好设置文档。
type Preferences struct {
	Theme  string `json:"theme"`
	APIKey string `json:"apiKey"`
}

// PreferencesUpdate 描述一次合并写入，nil 字段保持原值。
type PreferencesUpdate struct {
	Theme  *string `json:"theme"`
	APIKey *string `json:"apiKey"`
}

// Apply 把更新合并到当前偏好上。
func (u PreferencesUpdate) Apply(current Preferences) (Preferences, error) {
	if u.Theme != nil {
		theme := strings.TrimSpace(*u.Theme)
		if theme == "" {
			theme = DefaultTheme
		}
		if len(theme) > 32 {
			return current, fmt.Errorf("%w: theme is too long", ErrValidation)
		}
		current.Theme = theme
	}
	if u.APIKey != nil {
		current.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if current.Theme == "" {
		current.Theme = DefaultTheme
	}
	return current, nil
}

// AIReport 是一次叙述性分析的存档，生成后不再修改。
type AIReport struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
	Text        string    `json:"text"`
}

// Backend 是单个命名空间（远端账号或本地设备）的持久化接口。
type Backend interface {
	LoadEntries(ctx context.Context) (Collection, error)
	// PutEntry 整体覆盖当天记录，返回后端分配的 updatedAt。
	PutEntry(ctx context.Context, date string, entry Entry) (time.Time, error)
	DeleteEntry(ctx context.Context, date string) error

	LoadPreferences(ctx context.Context) (Preferences, error)
	SavePreferences(ctx context.Context, update PreferencesUpdate) (Preferences, error)

	// ListReports 按生成时间倒序返回。
	ListReports(ctx context.Context) ([]AIReport, error)
	AppendReport(ctx context.Context, report AIReport) error
	DeleteReport(ctx context.Context, id string) error
}
