package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/headachelog/internal/db"
	"github.com/headachelog/internal/journal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend 把单个账号的记录、偏好和分析报告保存在关系数据库中。
type GormBackend struct {
	db     *gorm.DB
	userID uint
	now    func() time.Time
}

var _ journal.Backend = (*GormBackend)(nil)

// NewGormBackend 构造 GormBackend，所有读写都限定在 userID 命名空间内。
func NewGormBackend(gdb *gorm.DB, userID uint) *GormBackend {
	return &GormBackend{db: gdb, userID: userID, now: time.Now}
}

// LoadEntries 读取账号的全部记录。
func (b *GormBackend) LoadEntries(ctx context.Context) (journal.Collection, error) {
	var records []db.EntryRecord
	if err := b.db.WithContext(ctx).Where("user_id = ?", b.userID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	out := make(journal.Collection, len(records))
	for _, record := range records {
		out[record.Date] = entryFromRecord(record)
	}
	return out, nil
}

// PutEntry 覆盖写入某天的记录。
func (b *GormBackend) PutEntry(ctx context.Context, date string, entry journal.Entry) (time.Time, error) {
	now := b.now().UTC()
	record := recordFromEntry(b.userID, date, entry)
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns(db.EntryValueColumns),
	}).Create(&record).Error; err != nil {
		return time.Time{}, fmt.Errorf("upsert entry %s: %w", date, err)
	}
	return now, nil
}

// DeleteEntry 删除某天的记录，记录不存在时视为成功。
func (b *GormBackend) DeleteEntry(ctx context.Context, date string) error {
	if err := b.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", b.userID, date).
		Delete(&db.EntryRecord{}).Error; err != nil {
		return fmt.Errorf("delete entry %s: %w", date, err)
	}
	return nil
}

// LoadPreferences 读取偏好设置，未设置时返回默认值。
func (b *GormBackend) LoadPreferences(ctx context.Context) (journal.Preferences, error) {
	return loadPreferences(b.db.WithContext(ctx), b.userID)
}

func loadPreferences(tx *gorm.DB, userID uint) (journal.Preferences, error) {
	prefs := journal.Preferences{Theme: journal.DefaultTheme}

	var records []db.UserPreference
	if err := tx.Where("user_id = ?", userID).Find(&records).Error; err != nil {
		return prefs, fmt.Errorf("load preferences: %w", err)
	}

	for _, record := range records {
		switch record.Key {
		case db.PreferenceKeyTheme:
			if record.Value != "" {
				prefs.Theme = record.Value
			}
		case db.PreferenceKeyAnthropicAPIKey:
			prefs.APIKey = record.Value
		}
	}
	return prefs, nil
}

// SavePreferences 合并写入偏好设置并返回合并后的结果。
func (b *GormBackend) SavePreferences(ctx context.Context, update journal.PreferencesUpdate) (journal.Preferences, error) {
	var merged journal.Preferences
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadPreferences(tx, b.userID)
		if err != nil {
			return err
		}
		merged, err = update.Apply(current)
		if err != nil {
			return err
		}
		if err := b.upsertPreference(tx, db.PreferenceKeyTheme, merged.Theme); err != nil {
			return err
		}
		return b.upsertPreference(tx, db.PreferenceKeyAnthropicAPIKey, merged.APIKey)
	})
	if err != nil {
		if errors.Is(err, journal.ErrValidation) {
			return journal.Preferences{}, err
		}
		return journal.Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	return merged, nil
}

func (b *GormBackend) upsertPreference(tx *gorm.DB, key, value string) error {
	pref := db.UserPreference{UserID: b.userID, Key: key, Value: value, UpdatedAt: b.now().UTC()}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": pref.UpdatedAt,
		}),
	}).Create(&pref).Error; err != nil {
		return fmt.Errorf("upsert preference %s: %w", key, err)
	}
	return nil
}

// ListReports 按生成时间倒序返回分析报告。
func (b *GormBackend) ListReports(ctx context.Context) ([]journal.AIReport, error) {
	var records []db.AIReportRecord
	if err := b.db.WithContext(ctx).
		Where("user_id = ?", b.userID).
		Order("generated_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	out := make([]journal.AIReport, 0, len(records))
	for _, record := range records {
		out = append(out, journal.AIReport{
			ID:          record.ID,
			GeneratedAt: record.GeneratedAt,
			Text:        record.Text,
		})
	}
	return out, nil
}

// AppendReport 保存一份新的分析报告。
func (b *GormBackend) AppendReport(ctx context.Context, report journal.AIReport) error {
	record := db.AIReportRecord{
		ID:          report.ID,
		UserID:      b.userID,
		GeneratedAt: report.GeneratedAt.UTC(),
		Text:        report.Text,
	}
	if err := b.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

// DeleteReport 删除一份分析报告。
func (b *GormBackend) DeleteReport(ctx context.Context, id string) error {
	result := b.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", b.userID, id).
		Delete(&db.AIReportRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func recordFromEntry(userID uint, date string, e journal.Entry) db.EntryRecord {
	return db.EntryRecord{
		UserID:      userID,
		Date:        date,
		PainLevel:   e.PainLevel,
		PeakPain:    e.PeakPain,
		Tinnitus:    e.Tinnitus,
		Ocular:      e.Ocular,
		SleepIssues: e.SleepIssues,
		Paracetamol: e.Paracetamol,
		Ibuprofen:   e.Ibuprofen,
		Aspirin:     e.Aspirin,
		Triptan:     e.Triptan,
		Codeine:     e.Codeine,
		OtherMeds:   e.OtherMeds,
		Triggers:    e.Triggers,
		Notes:       e.Notes,
	}
}

func entryFromRecord(r db.EntryRecord) journal.Entry {
	return journal.Entry{
		PainLevel:   r.PainLevel,
		PeakPain:    r.PeakPain,
		Tinnitus:    r.Tinnitus,
		Ocular:      r.Ocular,
		SleepIssues: r.SleepIssues,
		Paracetamol: r.Paracetamol,
		Ibuprofen:   r.Ibuprofen,
		Aspirin:     r.Aspirin,
		Triptan:     r.Triptan,
		Codeine:     r.Codeine,
		OtherMeds:   r.OtherMeds,
		Triggers:    r.Triggers,
		Notes:       r.Notes,
		UpdatedAt:   r.UpdatedAt,
	}
}
