package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// Models 列出需要自动迁移的全部模型，测试中也复用此列表。
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Lesson{},
		&Enrollment{},
		&LearnerProfile{},
		&CompletionRecord{},
	}
}

// Init 初始化数据库连接并执行自动迁移。
// driver 支持 sqlite（target 为文件路径，空值回退到 coursepulse.db）与 postgres（target 为 DSN）。
func Init(driver, target string) error {
	gdb, err := Open(driver, target, logger.Default.LogMode(logger.Warn))
	if err != nil {
		return err
	}

	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	DB = gdb
	return nil
}

// Open 只负责建立连接，不做迁移。
func Open(driver, target string, gormLogger logger.Interface) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormLogger}

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		dsn := strings.TrimSpace(target)
		if dsn == "" {
			return nil, errors.New("postgres driver requires a DSN")
		}
		gdb, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return gdb, nil
	case "sqlite", "":
		path := strings.TrimSpace(target)
		if path == "" {
			path = "coursepulse.db"
		}
		if !strings.HasPrefix(path, "file:") {
			if err := ensureParentDir(path); err != nil {
				return nil, err
			}
		}
		gdb, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
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
