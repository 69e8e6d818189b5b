package localstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/headachelog/internal/journal"
)

// Backend 是某台设备在本地缓存中的命名空间。
type Backend struct {
	store  *Store
	device string
	now    func() time.Time
}

var _ journal.Backend = (*Backend)(nil)

// DeviceID 返回规范化后的设备 ID。
func (b *Backend) DeviceID() string {
	return b.device
}

func (b *Backend) LoadEntries(ctx context.Context) (journal.Collection, error) {
	out := journal.Collection{}
	for _, key := range b.store.keysWithPrefix(ctx, sectionPrefix(b.device, sectionEntries)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var entry journal.Entry
		if err := b.store.readJSON(key, &entry); err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		out[path.Base(key)] = entry
	}
	return out, nil
}

func (b *Backend) PutEntry(ctx context.Context, date string, entry journal.Entry) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if err := journal.ValidateDate(date); err != nil {
		return time.Time{}, err
	}
	entry.UpdatedAt = b.now().UTC()
	if err := b.store.writeJSON(makeKey(b.device, sectionEntries, date), entry); err != nil {
		return time.Time{}, fmt.Errorf("write entry %s: %w", date, err)
	}
	return entry.UpdatedAt, nil
}

func (b *Backend) DeleteEntry(ctx context.Context, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.store.erase(makeKey(b.device, sectionEntries, date))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("erase entry %s: %w", date, err)
	}
	return nil
}

func (b *Backend) LoadPreferences(ctx context.Context) (journal.Preferences, error) {
	if err := ctx.Err(); err != nil {
		return journal.Preferences{}, err
	}
	return b.loadPreferences()
}

func (b *Backend) loadPreferences() (journal.Preferences, error) {
	prefs := journal.Preferences{Theme: journal.DefaultTheme}
	err := b.store.readJSON(makeKey(b.device, sectionPrefs, prefsFileName), &prefs)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return journal.Preferences{Theme: journal.DefaultTheme}, fmt.Errorf("read preferences: %w", err)
	}
	if prefs.Theme == "" {
		prefs.Theme = journal.DefaultTheme
	}
	return prefs, nil
}

func (b *Backend) SavePreferences(ctx context.Context, update journal.PreferencesUpdate) (journal.Preferences, error) {
	if err := ctx.Err(); err != nil {
		return journal.Preferences{}, err
	}

	b.store.prefsMu.Lock()
	defer b.store.prefsMu.Unlock()

	current, err := b.loadPreferences()
	if err != nil {
		return journal.Preferences{}, err
	}
	merged, err := update.Apply(current)
	if err != nil {
		return journal.Preferences{}, err
	}
	if err := b.store.writeJSON(makeKey(b.device, sectionPrefs, prefsFileName), merged); err != nil {
		return journal.Preferences{}, fmt.Errorf("write preferences: %w", err)
	}
	return merged, nil
}

func (b *Backend) ListReports(ctx context.Context) ([]journal.AIReport, error) {
	reports := make([]journal.AIReport, 0)
	for _, key := range b.store.keysWithPrefix(ctx, sectionPrefix(b.device, sectionReports)) {
		var report journal.AIReport
		if err := b.store.readJSON(key, &report); err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		reports = append(reports, report)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt)
	})
	return reports, nil
}

func (b *Backend) AppendReport(ctx context.Context, report journal.AIReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := uuid.Parse(report.ID); err != nil {
		return fmt.Errorf("%w: report id must be a uuid", journal.ErrValidation)
	}
	if err := b.store.writeJSON(makeKey(b.device, sectionReports, report.ID), report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// DeleteReport 删除报告，不存在时返回 ErrNotFound。
func (b *Backend) DeleteReport(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	if err := b.store.erase(makeKey(b.device, sectionReports, id)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("erase report: %w", err)
	}
	return nil
}
