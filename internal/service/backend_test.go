package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/headachelog/internal/journal"
)

var errBackendDown = errors.New("backend unavailable")

const (
	timeoutShort = 2 * time.Second
	tick         = 5 * time.Millisecond
)

// memoryBackend 是测试用的内存后端，可以注入写入失败或阻塞。
type memoryBackend struct {
	mu      sync.Mutex
	entries journal.Collection
	prefs   journal.Preferences
	reports []journal.AIReport
	puts    []string

	failPuts    bool
	failDeletes bool
	failLoad    bool
	// putGate 非空时下一次 PutEntry 会关闭 putEntered 并阻塞到 putGate 关闭
	putGate    chan struct{}
	putEntered chan struct{}
	// loadGate 同理，作用于下一次 LoadEntries
	loadGate    chan struct{}
	loadEntered chan struct{}
	now        time.Time
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		entries: journal.Collection{},
		prefs:   journal.Preferences{Theme: journal.DefaultTheme},
		now:     time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC),
	}
}

func (b *memoryBackend) LoadEntries(context.Context) (journal.Collection, error) {
	b.mu.Lock()
	gate, entered := b.loadGate, b.loadEntered
	b.loadGate, b.loadEntered = nil, nil
	b.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad {
		return nil, errBackendDown
	}
	return b.entries.Clone(), nil
}

func (b *memoryBackend) PutEntry(_ context.Context, date string, entry journal.Entry) (time.Time, error) {
	b.mu.Lock()
	gate, entered := b.putGate, b.putEntered
	b.putGate, b.putEntered = nil, nil
	b.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts = append(b.puts, date)
	if b.failPuts {
		return time.Time{}, errBackendDown
	}
	b.now = b.now.Add(time.Second)
	entry.UpdatedAt = b.now
	b.entries[date] = entry
	return b.now, nil
}

func (b *memoryBackend) DeleteEntry(_ context.Context, date string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDeletes {
		return errBackendDown
	}
	delete(b.entries, date)
	return nil
}

func (b *memoryBackend) LoadPreferences(context.Context) (journal.Preferences, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prefs, nil
}

func (b *memoryBackend) SavePreferences(_ context.Context, update journal.PreferencesUpdate) (journal.Preferences, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged, err := update.Apply(b.prefs)
	if err != nil {
		return journal.Preferences{}, err
	}
	b.prefs = merged
	return merged, nil
}

func (b *memoryBackend) ListReports(context.Context) ([]journal.AIReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]journal.AIReport(nil), b.reports...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

func (b *memoryBackend) AppendReport(_ context.Context, report journal.AIReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, report)
	return nil
}

func (b *memoryBackend) DeleteReport(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, report := range b.reports {
		if report.ID == id {
			b.reports = append(b.reports[:i], b.reports[i+1:]...)
			return nil
		}
	}
	return ErrReportNotFound
}

// holdNextPut 让下一次 PutEntry 停在后端里，返回放行函数与“已进入”信号。
func (b *memoryBackend) holdNextPut() (release func(), entered <-chan struct{}) {
	gate := make(chan struct{})
	in := make(chan struct{})
	b.mu.Lock()
	b.putGate, b.putEntered = gate, in
	b.mu.Unlock()
	return func() { close(gate) }, in
}

// holdNextLoad 让下一次 LoadEntries 停在后端里。
func (b *memoryBackend) holdNextLoad() (release func(), entered <-chan struct{}) {
	gate := make(chan struct{})
	in := make(chan struct{})
	b.mu.Lock()
	b.loadGate, b.loadEntered = gate, in
	b.mu.Unlock()
	return func() { close(gate) }, in
}

func (b *memoryBackend) setFailPuts(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPuts = fail
}

func (b *memoryBackend) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.puts)
}

func (b *memoryBackend) stored(date string) (journal.Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[date]
	return e, ok
}
