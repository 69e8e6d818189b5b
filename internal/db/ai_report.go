package db

import "time"

// AIReportRecord 是一份分析报告存档，ID 为 UUID 字符串。
type AIReportRecord struct {
	ID          string    `gorm:"size:36;primaryKey"`
	UserID      uint      `gorm:"not null;index"`
	GeneratedAt time.Time `gorm:"not null;index"`
	Text        string    `gorm:"type:text;not null"`
}

// TableName 自定义表名以保持命名一致。
func (AIReportRecord) TableName() string {
	return "ai_reports"
}
