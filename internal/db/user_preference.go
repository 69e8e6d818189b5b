package db

import "time"

// UserPreference 存储每个账号的偏好键值对。
type UserPreference struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_user_preferences_user_key"`
	Key       string `gorm:"size:100;not null;uniqueIndex:idx_user_preferences_user_key"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName 自定义表名以保持命名一致。
func (UserPreference) TableName() string {
	return "user_preferences"
}

const (
	// PreferenceKeyTheme 表示界面主题。
	PreferenceKeyTheme = "theme"
	// PreferenceKeyAnthropicAPIKey 表示用户自己的 Anthropic API Key。
	PreferenceKeyAnthropicAPIKey = "anthropic_api_key"
)
