package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/headachelog/internal/journal"
)

// EntryStore 持有当前会话身份下的全部记录，并负责与后端同步。
// 写入采用乐观更新：先改内存，后端失败时回滚到后端最近一次确认过的值。
type EntryStore struct {
	mu        sync.RWMutex
	backend   journal.Backend
	entries   journal.Collection
	confirmed journal.Collection
	versions  map[string]uint64
	epoch     uint64
	logger    *slog.Logger
}

// NewEntryStore 构造一个没有后端的空 EntryStore。
func NewEntryStore(logger *slog.Logger) *EntryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntryStore{
		entries:   journal.Collection{},
		confirmed: journal.Collection{},
		versions:  map[string]uint64{},
		logger:    logger,
	}
}

// Backend 返回当前后端，未登录时为 nil。
func (s *EntryStore) Backend() journal.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// Swap 切换后端：先清空内存中的记录，再从新后端加载。backend 为 nil 表示退出登录。
func (s *EntryStore) Swap(ctx context.Context, backend journal.Backend) error {
	s.mu.Lock()
	s.epoch++
	s.backend = backend
	s.entries = journal.Collection{}
	s.confirmed = journal.Collection{}
	s.versions = map[string]uint64{}
	s.mu.Unlock()

	if backend == nil {
		return nil
	}
	return s.Load(ctx)
}

// Load 用后端的数据整体替换内存中的记录。
func (s *EntryStore) Load(ctx context.Context) error {
	s.mu.RLock()
	backend := s.backend
	epoch := s.epoch
	s.mu.RUnlock()

	if backend == nil {
		return ErrNoBackend
	}

	loaded, err := backend.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("%w: load entries: %w", ErrPersistence, err)
	}
	if loaded == nil {
		loaded = journal.Collection{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// 加载期间身份又切换过，结果作废
		return nil
	}
	s.entries = loaded
	s.confirmed = loaded.Clone()
	s.versions = map[string]uint64{}
	s.logger.Debug("entries loaded", "count", len(loaded))
	return nil
}

// Get 返回某天的记录。
func (s *EntryStore) Get(date string) (journal.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[date]
	return entry, ok
}

// Snapshot 返回全部记录的副本，供统计与导出使用。
func (s *EntryStore) Snapshot() journal.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Clone()
}

// Len 返回记录数。
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Save 校验并保存一天的记录，返回带有后端时间戳的结果。
// 后端失败时恢复该日期最近一次确认写入的值（或删除），并返回包装了 ErrPersistence 的错误。
// 同一日期的写入重叠时，只有最后发出的那次会回滚。
func (s *EntryStore) Save(ctx context.Context, date string, entry journal.Entry) (journal.Entry, error) {
	if err := journal.ValidateDate(date); err != nil {
		return journal.Entry{}, err
	}
	entry = entry.Normalize()
	if err := entry.Validate(); err != nil {
		return journal.Entry{}, err
	}

	s.mu.Lock()
	backend := s.backend
	if backend == nil {
		s.mu.Unlock()
		return journal.Entry{}, ErrNoBackend
	}
	s.versions[date]++
	version := s.versions[date]
	epoch := s.epoch
	s.entries[date] = entry
	s.mu.Unlock()

	updatedAt, err := backend.PutEntry(ctx, date, entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	stillCurrent := s.epoch == epoch && s.versions[date] == version
	if err != nil {
		if stillCurrent {
			if prev, ok := s.confirmed[date]; ok {
				s.entries[date] = prev
			} else {
				delete(s.entries, date)
			}
		}
		s.logger.Warn("save entry failed", "date", date, "error", err)
		return journal.Entry{}, fmt.Errorf("%w: save entry %s: %w", ErrPersistence, date, err)
	}

	entry.UpdatedAt = updatedAt
	if s.epoch == epoch {
		s.confirmed[date] = entry
	}
	if stillCurrent {
		s.entries[date] = entry
	}
	return entry, nil
}

// Delete 先删除后端中的记录，成功后再从内存中移除。
func (s *EntryStore) Delete(ctx context.Context, date string) error {
	if err := journal.ValidateDate(date); err != nil {
		return err
	}

	s.mu.RLock()
	backend := s.backend
	_, exists := s.entries[date]
	epoch := s.epoch
	s.mu.RUnlock()

	if backend == nil {
		return ErrNoBackend
	}
	if !exists {
		return ErrEntryNotFound
	}

	if err := backend.DeleteEntry(ctx, date); err != nil {
		s.logger.Warn("delete entry failed", "date", date, "error", err)
		return fmt.Errorf("%w: delete entry %s: %w", ErrPersistence, date, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		delete(s.entries, date)
		delete(s.confirmed, date)
		s.versions[date]++
	}
	return nil
}

// Import 合并导入：逐日覆盖写入，遇到第一处失败即停止，返回已导入的数量。
// 整个集合会先做校验，校验失败时不做任何修改。
func (s *EntryStore) Import(ctx context.Context, incoming journal.Collection) (int, error) {
	dates := incoming.Dates()
	for _, date := range dates {
		if err := journal.ValidateDate(date); err != nil {
			return 0, err
		}
		if err := incoming[date].Normalize().Validate(); err != nil {
			return 0, fmt.Errorf("%w (date %s)", err, date)
		}
	}

	imported := 0
	for _, date := range dates {
		if _, err := s.Save(ctx, date, incoming[date]); err != nil {
			return imported, err
		}
		imported++
	}
	s.logger.Info("entries imported", "count", imported)
	return imported, nil
}
