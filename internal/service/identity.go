package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/localstore"
)

// Identity 是当前会话的身份：远端账号（UserID 非 0）或本地设备。
type Identity struct {
	UserID   uint   `json:"userId,omitempty"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// Remote 判断是否为远端账号。
func (i Identity) Remote() bool {
	return i.UserID != 0
}

// Label 用于日志与界面展示。
func (i Identity) Label() string {
	if i.Remote() {
		return i.Email
	}
	return "local device"
}

// IdentityHandler 在身份变化时被调用，nil 表示退出登录。
type IdentityHandler func(ctx context.Context, id *Identity) error

// IdentityFeed 向订阅者广播身份变化。
type IdentityFeed struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]IdentityHandler
	current  *Identity
}

// NewIdentityFeed 构造 IdentityFeed。
func NewIdentityFeed() *IdentityFeed {
	return &IdentityFeed{handlers: map[int]IdentityHandler{}}
}

// OnIdentityChanged 注册回调，返回取消订阅的函数。
func (f *IdentityFeed) OnIdentityChanged(handler IdentityHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

// Current 返回最近一次发布的身份。
func (f *IdentityFeed) Current() *Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	copied := *f.current
	return &copied
}

// Publish 记录新身份并依次通知所有订阅者，返回合并后的错误。
func (f *IdentityFeed) Publish(ctx context.Context, id *Identity) error {
	f.mu.Lock()
	if id != nil {
		copied := *id
		f.current = &copied
	} else {
		f.current = nil
	}
	handlers := make([]IdentityHandler, 0, len(f.handlers))
	for key := 0; key < f.nextID; key++ {
		if h, ok := f.handlers[key]; ok {
			handlers = append(handlers, h)
		}
	}
	f.mu.Unlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BackendFactory 为身份选择后端，远端与本地二选一。
type BackendFactory interface {
	ForIdentity(id Identity) (journal.Backend, error)
}

// StoreBackendFactory 远端身份使用数据库，本地身份使用 diskv 缓存。
type StoreBackendFactory struct {
	DB    *gorm.DB
	Local *localstore.Store
}

// ForIdentity 实现 BackendFactory。
func (f StoreBackendFactory) ForIdentity(id Identity) (journal.Backend, error) {
	if id.Remote() {
		if f.DB == nil {
			return nil, errors.New("remote backend not configured")
		}
		return NewGormBackend(f.DB, id.UserID), nil
	}
	if f.Local == nil {
		return nil, errors.New("local backend not configured")
	}
	backend, err := f.Local.ForDevice(id.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return backend, nil
}
