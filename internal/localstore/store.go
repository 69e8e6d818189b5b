// Package localstore 提供基于 diskv 的本地持久化缓存，按设备 ID 隔离数据。
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"github.com/headachelog/internal/journal"
)

const (
	sectionEntries = "entries"
	sectionPrefs   = "prefs"
	sectionReports = "reports"

	prefsFileName = "preferences"
)

// ErrInvalidDevice 表示设备 ID 不是合法的 UUID。
var ErrInvalidDevice = errors.New("invalid device id")

// ErrNotFound 表示键不存在。
var ErrNotFound = journal.ErrNotFound

// Store 是整个本地缓存目录，键形如 `<deviceID>/<section>/<name>`。
type Store struct {
	d        *diskv.Diskv
	basePath string
	// diskv 只保证单键原子，偏好的读改写需要额外加锁
	prefsMu sync.Mutex
}

// Open 在 basePath 下创建本地缓存。
func Open(basePath string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024, // 1MB
		}),
		basePath: basePath,
	}
}

// BasePath 返回缓存目录。
func (s *Store) BasePath() string {
	return s.basePath
}

// ForDevice 返回某台设备的后端视图。
func (s *Store) ForDevice(deviceID string) (*Backend, error) {
	id, err := uuid.Parse(strings.TrimSpace(deviceID))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDevice, deviceID)
	}
	return &Backend{store: s, device: id.String(), now: time.Now}, nil
}

// Devices 列出缓存中出现过的设备 ID。
func (s *Store) Devices(ctx context.Context) []string {
	seen := map[string]struct{}{}
	for key := range s.d.Keys(ctx.Done()) {
		pk := keyToPathTransform(key)
		if len(pk.Path) == 0 {
			continue
		}
		seen[pk.Path[0]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for device := range seen {
		out = append(out, device)
	}
	sort.Strings(out)
	return out
}

func (s *Store) readJSON(key string, target any) error {
	val, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(val, target)
}

func (s *Store) writeJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.d.Write(key, data)
}

func (s *Store) erase(key string) error {
	if !s.d.Has(key) {
		return ErrNotFound
	}
	return s.d.Erase(key)
}

func (s *Store) keysWithPrefix(ctx context.Context, prefix string) []string {
	keys := make([]string, 0)
	for key := range s.d.KeysPrefix(prefix, ctx.Done()) {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return fmt.Sprintf("%s/%s", strings.Join(pathKey.Path, "/"), pathKey.FileName)
}

func makeKey(device, section, name string) string {
	return device + "/" + section + "/" + name
}

func sectionPrefix(device, section string) string {
	return device + "/" + section + "/"
}
