package service

import (
	"context"
	"testing"
	"time"

	"github.com/coursepulse/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupEngineTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// seedEnrolledCourse 创建一个含 n 节课的课程，并为 userID 授权，授权时间为 activatedAt
func seedEnrolledCourse(t *testing.T, gdb *gorm.DB, userID uint, n int, activatedAt time.Time) (*db.Course, []db.Lesson) {
	t.Helper()
	ctx := context.Background()

	inputs := make([]LessonInput, 0, n)
	for i := 0; i < n; i++ {
		inputs = append(inputs, LessonInput{Title: "第" + string(rune('A'+i)) + "课", DurationMinutes: 30, CalorieYield: 300})
	}

	course, lessons, err := NewCatalogService(gdb).CreateCourse(ctx, "燃脂训练营", inputs)
	if err != nil {
		t.Fatalf("CreateCourse returned error: %v", err)
	}
	if _, err := NewEnrollmentService(gdb).Grant(ctx, userID, course.ID, activatedAt); err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	return course, lessons
}
