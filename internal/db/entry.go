package db

import "time"

// EntryRecord 保存某个账号某一天的记录，(user_id, date) 唯一。
type EntryRecord struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;uniqueIndex:idx_entries_user_date"`
	Date        string `gorm:"size:10;not null;uniqueIndex:idx_entries_user_date"`
	PainLevel   int    `gorm:"not null"`
	PeakPain    int    `gorm:"not null"`
	Tinnitus    int    `gorm:"not null"`
	Ocular      int    `gorm:"not null"`
	SleepIssues int    `gorm:"not null"`
	Paracetamol int    `gorm:"not null"`
	Ibuprofen   int    `gorm:"not null"`
	Aspirin     int    `gorm:"not null"`
	Triptan     int    `gorm:"not null"`
	Codeine     int    `gorm:"not null"`
	OtherMeds   string `gorm:"type:text"`
	Triggers    string `gorm:"type:text"`
	Notes       string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 自定义表名以保持命名一致。
func (EntryRecord) TableName() string {
	return "entries"
}

// EntryValueColumns 是 upsert 时需要覆盖的列。
var EntryValueColumns = []string{
	"pain_level", "peak_pain", "tinnitus", "ocular", "sleep_issues",
	"paracetamol", "ibuprofen", "aspirin", "triptan", "codeine",
	"other_meds", "triggers", "notes", "updated_at",
}
