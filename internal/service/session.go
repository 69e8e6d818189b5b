package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/headachelog/internal/journal"
)

// Session 是一个浏览器会话的全部服务端状态：身份、记录缓存与编辑器。
type Session struct {
	ID string

	mu      sync.Mutex
	feed    *IdentityFeed
	store   *EntryStore
	editor  *AutoSaveController
	factory BackendFactory
	clock   Clock
	logger  *slog.Logger
	stop    func()

	seenMu   sync.Mutex
	lastSeen time.Time
}

func newSession(id string, factory BackendFactory, opts AutoSaveOptions) *Session {
	logger := opts.Logger.With("session", id)
	opts.Logger = logger
	store := NewEntryStore(logger)
	s := &Session{
		ID:       id,
		feed:     NewIdentityFeed(),
		store:    store,
		editor:   NewAutoSaveController(store, opts),
		factory:  factory,
		clock:    opts.Clock,
		logger:   logger,
		lastSeen: opts.Clock.Now(),
	}
	s.stop = s.feed.OnIdentityChanged(s.handleIdentity)
	return s
}

// Feed 返回会话的身份广播。
func (s *Session) Feed() *IdentityFeed { return s.feed }

// Store 返回会话的记录缓存。
func (s *Session) Store() *EntryStore { return s.store }

// Editor 返回会话的编辑器。
func (s *Session) Editor() *AutoSaveController { return s.editor }

// Identity 返回当前身份，未登录时为 nil。
func (s *Session) Identity() *Identity {
	return s.feed.Current()
}

// Backend 返回当前后端，未登录时为 nil。
func (s *Session) Backend() journal.Backend {
	return s.store.Backend()
}

// SignIn 切换到新身份。无法为该身份选出后端时保持原身份不变。
func (s *Session) SignIn(ctx context.Context, id Identity) error {
	if _, err := s.factory.ForIdentity(id); err != nil {
		return fmt.Errorf("select backend: %w", err)
	}
	return s.feed.Publish(ctx, &id)
}

// SignOut 退出登录。
func (s *Session) SignOut(ctx context.Context) error {
	return s.feed.Publish(ctx, nil)
}

// handleIdentity 先保存旧身份下的待写修改，再清空并加载新身份的数据，最后打开今天。
func (s *Session) handleIdentity(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.Detach(ctx); err != nil {
		s.logger.Warn("flush before identity change failed", "error", err)
	}

	if id == nil {
		s.editor.Reload("")
		s.logger.Info("signed out")
		return s.store.Swap(ctx, nil)
	}

	backend, err := s.factory.ForIdentity(*id)
	if err != nil {
		s.editor.Reload("")
		_ = s.store.Swap(ctx, nil)
		return fmt.Errorf("select backend: %w", err)
	}

	loadErr := s.store.Swap(ctx, backend)
	s.editor.Reload(s.editor.Today())
	if loadErr != nil {
		s.logger.Warn("loading entries failed", "identity", id.Label(), "error", loadErr)
		return loadErr
	}
	s.logger.Info("identity changed", "identity", id.Label(), "entries", s.store.Len())
	return nil
}

// DeleteEntry 删除记录并让编辑器放弃该日期的待写修改。
func (s *Session) DeleteEntry(ctx context.Context, date string) error {
	if err := s.store.Delete(ctx, date); err != nil {
		return err
	}
	s.editor.Forget(date)
	return nil
}

// Import 先保存编辑器的待写修改，再合并导入。
func (s *Session) Import(ctx context.Context, incoming journal.Collection) (int, error) {
	if err := s.editor.Flush(ctx); err != nil {
		s.logger.Warn("flush before import failed", "error", err)
	}
	n, err := s.store.Import(ctx, incoming)
	s.editor.Refresh()
	return n, err
}

// Touch 记录最近一次访问时间。
func (s *Session) Touch() {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	s.lastSeen = s.clock.Now()
}

func (s *Session) idleSince() time.Time {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.lastSeen
}

// Close 保存待写修改并退订身份广播。
func (s *Session) Close(ctx context.Context) error {
	s.stop()
	return s.editor.Close(ctx)
}

// SessionManager 按会话 ID 管理 Session，并回收长时间不活跃的会话。
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	factory     BackendFactory
	opts        AutoSaveOptions
	idleTimeout time.Duration
}

// NewSessionManager 构造 SessionManager。
func NewSessionManager(factory BackendFactory, opts AutoSaveOptions, idleTimeout time.Duration) *SessionManager {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SessionManager{
		sessions:    map[string]*Session{},
		factory:     factory,
		opts:        opts,
		idleTimeout: idleTimeout,
	}
}

// Get 查找会话并刷新访问时间。
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Create 新建会话。
func (m *SessionManager) Create() *Session {
	s := newSession(uuid.NewString(), m.factory, m.opts)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// GetOrCreate 找不到 id 对应的会话时新建一个。
func (m *SessionManager) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	return m.Create(), true
}

// Len 返回会话数量。
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove 关闭并移除会话。
func (m *SessionManager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// Sweep 关闭超过 idleTimeout 未访问的会话，返回关闭数量。
func (m *SessionManager) Sweep(ctx context.Context) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.opts.Clock.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	expired := make([]*Session, 0)
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(ctx); err != nil {
			m.opts.Logger.Warn("closing idle session failed", "session", s.ID, "error", err)
		}
	}
	return len(expired)
}

// CloseAll 在进程退出前保存所有会话的待写修改。
func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range all {
		if err := s.Close(ctx); err != nil {
			m.opts.Logger.Warn("closing session failed", "session", s.ID, "error", err)
		}
	}
}

// RunJanitor 周期性回收空闲会话，直到 ctx 结束。
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ctx); n > 0 {
				m.opts.Logger.Info("closed idle sessions", "count", n)
			}
		}
	}
}
