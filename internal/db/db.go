package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 决定连接哪种数据库。DatabaseURL 非空时使用 Postgres，否则使用 SQLite 文件。
type Options struct {
	DatabasePath string
	DatabaseURL  string
	Silent       bool
}

// Init 初始化数据库连接并执行自动迁移。
// DatabasePath 为空时将回退到默认值 headachelog.db。
func Init(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{}
	if opts.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var dialector gorm.Dialector
	if dsn := strings.TrimSpace(opts.DatabaseURL); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		path := strings.TrimSpace(opts.DatabasePath)
		if path == "" {
			path = "headachelog.db"
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(path)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate 为核心模型创建表。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&User{},
		&EntryRecord{},
		&UserPreference{},
		&AIReportRecord{},
	)
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
