package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/headachelog/internal/journal"
)

// SaveState 是自动保存状态机的当前状态。
type SaveState string

const (
	SaveIdle    SaveState = "idle"
	SavePending SaveState = "pending"
	SaveSaving  SaveState = "saving"
	SaveError   SaveState = "error"
)

const (
	defaultDiscreteDelay = 500 * time.Millisecond
	defaultTextDelay     = 5 * time.Second
	defaultSaveTimeout   = 15 * time.Second
)

// AutoSaveOptions 配置自动保存控制器。
type AutoSaveOptions struct {
	Delay       time.Duration
	TextDelay   time.Duration
	SaveTimeout time.Duration
	Clock       Clock
	Logger      *slog.Logger
}

// EditorStatus 是编辑器对外暴露的快照。
type EditorStatus struct {
	Date        string        `json:"date"`
	Exists      bool          `json:"exists"`
	State       SaveState     `json:"state"`
	Entry       journal.Entry `json:"entry"`
	LastError   string        `json:"lastError,omitempty"`
	LastSavedAt *time.Time    `json:"lastSavedAt,omitempty"`
}

// AutoSaveController 维护一个编辑表单，把字段修改防抖后写入 EntryStore。
//
// 所有操作都在 mu 上串行执行，定时器回调也要先拿到 mu，
// 因此切换日期前的强制保存不会和延迟保存交错。
type AutoSaveController struct {
	mu       sync.Mutex
	store    *EntryStore
	clock    Clock
	debounce *Debouncer
	logger   *slog.Logger

	delay       time.Duration
	textDelay   time.Duration
	saveTimeout time.Duration

	date        string
	form        journal.Entry
	exists      bool
	state       SaveState
	lastErr     error
	lastSavedAt time.Time
	populating  bool
}

// NewAutoSaveController 构造控制器，零值选项使用默认延迟。
func NewAutoSaveController(store *EntryStore, opts AutoSaveOptions) *AutoSaveController {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Delay <= 0 {
		opts.Delay = defaultDiscreteDelay
	}
	if opts.TextDelay <= 0 {
		opts.TextDelay = defaultTextDelay
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	return &AutoSaveController{
		store:       store,
		clock:       opts.Clock,
		debounce:    NewDebouncer(opts.Clock),
		logger:      opts.Logger,
		delay:       opts.Delay,
		textDelay:   opts.TextDelay,
		saveTimeout: opts.SaveTimeout,
		state:       SaveIdle,
	}
}

// Today 返回时钟所在时区的今天。
func (c *AutoSaveController) Today() string {
	return journal.FormatDate(c.clock.Now())
}

// Status 返回当前快照。
func (c *AutoSaveController) Status() EditorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Open 先强制保存当前日期的待写修改，再载入 date 的记录。
// 强制保存失败时仍然切换日期，错误保留在状态中并记录日志。
func (c *AutoSaveController) Open(ctx context.Context, date string) (EditorStatus, error) {
	if err := journal.ValidateDate(date); err != nil {
		return c.Status(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.openLocked(ctx, date)
	return c.statusLocked(), nil
}

// OpenToday 打开今天。
func (c *AutoSaveController) OpenToday(ctx context.Context) (EditorStatus, error) {
	return c.Open(ctx, c.Today())
}

// Shift 相对当前日期前后移动若干天，未打开任何日期时以今天为基准。
func (c *AutoSaveController) Shift(ctx context.Context, days int) (EditorStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.date
	if base == "" {
		base = c.Today()
	}
	target, err := journal.AddDays(base, days)
	if err != nil {
		return c.statusLocked(), err
	}
	c.openLocked(ctx, target)
	return c.statusLocked(), nil
}

func (c *AutoSaveController) openLocked(ctx context.Context, date string) {
	if err := c.flushLocked(ctx); err != nil {
		c.logger.Warn("flush before navigation failed, continuing", "from", c.date, "to", date, "error", err)
	}
	c.loadLocked(date)
}

// loadLocked 用 store 中的记录填充表单，缺失时清空表单。
func (c *AutoSaveController) loadLocked(date string) {
	entry, ok := c.store.Get(date)
	c.date = date
	c.exists = ok
	if c.state != SaveError {
		c.state = SaveIdle
	}
	c.populateLocked(entry)
}

// populateLocked 在抑制窗口内逐字段写入表单，期间的变更通知不会触发保存。
func (c *AutoSaveController) populateLocked(entry journal.Entry) {
	c.populating = true
	defer func() { c.populating = false }()

	c.form = journal.Entry{UpdatedAt: entry.UpdatedAt}
	for _, field := range journal.Fields {
		if err := c.form.Set(field, entry.Value(field)); err != nil {
			c.logger.Warn("stored entry has invalid field", "date", c.date, "field", field, "error", err)
			continue
		}
		c.fieldChangedLocked(field)
	}
}

// Edit 修改单个字段。
func (c *AutoSaveController) Edit(ctx context.Context, field string, value any) (EditorStatus, error) {
	return c.EditFields(ctx, map[string]any{field: value})
}

// EditFields 原子地修改多个字段：任一字段非法则全部不生效。
func (c *AutoSaveController) EditFields(_ context.Context, changes map[string]any) (EditorStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.date == "" {
		return c.statusLocked(), ErrNoActiveDate
	}
	if len(changes) == 0 {
		return c.statusLocked(), fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	next := c.form
	for _, field := range fields {
		if err := next.Set(field, changes[field]); err != nil {
			return c.statusLocked(), err
		}
	}

	c.form = next
	for _, field := range fields {
		c.fieldChangedLocked(field)
	}
	return c.statusLocked(), nil
}

// fieldChangedLocked 是表单字段的变更通知：自由文本等 5 秒，其余 500 毫秒。
// 填充表单期间直接忽略。
func (c *AutoSaveController) fieldChangedLocked(field string) {
	if c.populating {
		return
	}

	delay := c.delay
	if journal.IsTextField(field) {
		delay = c.textDelay
	}
	c.debounce.Schedule(delay, c.onTimer)
	c.state = SavePending
}

func (c *AutoSaveController) onTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.debounce.Claim(gen) {
		return
	}
	c.commitLocked(context.Background())
}

// commitLocked 把整张表单写入 store。失败不重试，等待下一次修改再尝试。
func (c *AutoSaveController) commitLocked(ctx context.Context) error {
	if c.date == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.saveTimeout)
	defer cancel()

	c.state = SaveSaving
	saved, err := c.store.Save(ctx, c.date, c.form)
	if err != nil {
		c.state = SaveError
		c.lastErr = err
		c.logger.Warn("auto-save failed", "date", c.date, "error", err)
		return err
	}

	c.state = SaveIdle
	c.lastErr = nil
	c.exists = true
	c.lastSavedAt = c.clock.Now()
	c.form.UpdatedAt = saved.UpdatedAt
	c.logger.Debug("auto-saved entry", "date", c.date)
	return nil
}

// Flush 立即保存待写修改，没有待写修改时什么也不做。
func (c *AutoSaveController) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(ctx)
}

func (c *AutoSaveController) flushLocked(ctx context.Context) error {
	var err error
	c.debounce.Flush(func() {
		err = c.commitLocked(ctx)
	})
	return err
}

// Detach 强制保存待写修改后关闭编辑器，直到下一次 Reload 或 Open。
// 身份切换期间调用，切换过程中到达的修改会得到 ErrNoActiveDate。
func (c *AutoSaveController) Detach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.flushLocked(ctx)
	c.debounce.Cancel()
	c.date = ""
	c.exists = false
	c.populateLocked(journal.Entry{})
	return err
}

// Reload 丢弃待写修改并按 store 的当前内容重新填充表单，用于身份切换之后。
// date 为空时关闭编辑器。
func (c *AutoSaveController) Reload(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.debounce.Cancel()
	c.state = SaveIdle
	c.lastErr = nil
	c.lastSavedAt = time.Time{}
	if date == "" {
		c.date = ""
		c.exists = false
		c.populateLocked(journal.Entry{})
		return
	}
	c.loadLocked(date)
}

// Refresh 在没有待写修改时，用 store 的内容刷新当前表单（例如导入之后）。
func (c *AutoSaveController) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.date == "" || c.debounce.Pending() {
		return
	}
	c.loadLocked(c.date)
}

// Forget 在某天的记录被删除后调用：若编辑器正打开该日期，丢弃待写修改并清空表单。
func (c *AutoSaveController) Forget(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.date != date {
		return
	}
	c.debounce.Cancel()
	c.state = SaveIdle
	c.lastErr = nil
	c.loadLocked(date)
}

// Close 强制保存后关闭编辑器。
func (c *AutoSaveController) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.flushLocked(ctx)
	c.debounce.Cancel()
	c.date = ""
	return err
}

func (c *AutoSaveController) statusLocked() EditorStatus {
	status := EditorStatus{
		Date:   c.date,
		Exists: c.exists,
		State:  c.state,
		Entry:  c.form,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	if !c.lastSavedAt.IsZero() {
		saved := c.lastSavedAt
		status.LastSavedAt = &saved
	}
	return status
}
