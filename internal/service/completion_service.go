package service

import (
	"context"
	"errors"
	"time"

	"github.com/coursepulse/internal/db"
	"github.com/coursepulse/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionService 负责完成状态的写入与汇总。
// 完成记录是热量/时长累计的唯一来源，汇总值每次实时求和，不维护独立计数器。
type CompletionService struct {
	db  *gorm.DB
	log *logger.Logger
}

// CompletionResult 为一次状态写入后的结果
// Changed 为 false 表示请求与当前状态一致，未产生任何写入
type CompletionResult struct {
	LessonID            uint
	CourseID            uint
	IsCompleted         bool
	CaloriesCredited    int
	Changed             bool
	TotalCaloriesBurned int
}

// CompletionTotals 为用户全部已完成记录的实时汇总
type CompletionTotals struct {
	Calories int
	Minutes  int
}

// NewCompletionService 构造 CompletionService
func NewCompletionService(gdb *gorm.DB, log *logger.Logger) *CompletionService {
	return &CompletionService{db: gdb, log: logger.OrNop(log).With("service", "CompletionService")}
}

// SetCompletion 把 (user, lesson) 的完成状态设为 desired。
// 幂等：重复设置相同状态不会重复计入热量。整个读-校验-写在一个事务内完成，
// 版本冲突时用最新状态重试一次，仍冲突则返回 ErrConcurrentModification。
func (s *CompletionService) SetCompletion(ctx context.Context, userID, lessonID uint, desired bool, now time.Time) (*CompletionResult, error) {
	var result *CompletionResult
	err := withConflictRetry(func() error {
		var applyErr error
		result, applyErr = s.apply(ctx, userID, lessonID, desired, now)
		return applyErr
	}, func(err error) {
		s.log.Warn("completion write conflicted, retrying", "user_id", userID, "lesson_id", lessonID, "error", err)
	})
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			s.log.Error("completion write failed", "user_id", userID, "lesson_id", lessonID, "error", err)
		}
		return nil, err
	}

	totals, err := s.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.TotalCaloriesBurned = totals.Calories

	if result.Changed {
		s.log.Info("completion updated", "user_id", userID, "lesson_id", lessonID, "is_completed", result.IsCompleted)
	}
	return result, nil
}

func (s *CompletionService) apply(ctx context.Context, userID, lessonID uint, desired bool, now time.Time) (*CompletionResult, error) {
	var result CompletionResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lesson, err := findLesson(tx, lessonID)
		if err != nil {
			return err
		}

		enrollment, err := activeEnrollment(tx, userID, lesson.CourseID)
		if err != nil {
			return err
		}

		availability := lessonAvailability(*enrollment, *lesson, now)
		if availability.Status != LessonAvailable {
			return &LessonLockedError{LessonID: lesson.ID, AvailableAt: availability.AvailableAt}
		}

		var record db.CompletionRecord
		err = tx.Where("user_id = ? AND lesson_id = ?", userID, lessonID).Take(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record, err = insertRecord(tx, userID, *lesson, desired, now)
			if err != nil {
				return err
			}
			result.Changed = desired
		case err != nil:
			return persistenceError("get completion", err)
		case record.IsCompleted == desired:
			// 幂等：状态一致时不写入
		default:
			record, err = writeRecord(tx, record, *lesson, desired, now)
			if err != nil {
				return err
			}
			result.Changed = true
		}

		result.LessonID = lesson.ID
		result.CourseID = lesson.CourseID
		result.IsCompleted = record.IsCompleted
		if record.IsCompleted {
			result.CaloriesCredited = record.CaloriesCredited
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}
	return &result, nil
}

// insertRecord 首次尝试时惰性创建记录；若并发请求已先插入则视为版本冲突
func insertRecord(tx *gorm.DB, userID uint, lesson db.Lesson, desired bool, now time.Time) (db.CompletionRecord, error) {
	record := db.CompletionRecord{
		UserID:      userID,
		LessonID:    lesson.ID,
		CourseID:    lesson.CourseID,
		IsCompleted: desired,
		Version:     1,
	}
	if desired {
		completedAt := now
		record.CompletedAt = &completedAt
		record.CaloriesCredited = lesson.CalorieYield
		record.MinutesCredited = lesson.DurationMinutes
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return record, persistenceError("insert completion", result.Error)
	}
	if result.RowsAffected == 0 {
		return record, ErrConcurrentModification
	}
	return record, nil
}

// writeRecord 以 version 做比较并交换；期间被其他请求修改则返回 ErrConcurrentModification
// 取消完成时保留 CaloriesCredited 作为审计，汇总只统计 is_completed = true 的记录
func writeRecord(tx *gorm.DB, record db.CompletionRecord, lesson db.Lesson, desired bool, now time.Time) (db.CompletionRecord, error) {
	updates := map[string]interface{}{
		"is_completed": desired,
		"version":      record.Version + 1,
		"updated_at":   now,
	}
	if desired {
		updates["completed_at"] = now
		updates["calories_credited"] = lesson.CalorieYield
		updates["minutes_credited"] = lesson.DurationMinutes
	} else {
		updates["completed_at"] = nil
	}

	result := tx.Model(&db.CompletionRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(updates)
	if result.Error != nil {
		return record, persistenceError("update completion", result.Error)
	}
	if result.RowsAffected == 0 {
		return record, ErrConcurrentModification
	}

	record.IsCompleted = desired
	record.Version++
	if desired {
		completedAt := now
		record.CompletedAt = &completedAt
		record.CaloriesCredited = lesson.CalorieYield
		record.MinutesCredited = lesson.DurationMinutes
	} else {
		record.CompletedAt = nil
	}
	return record, nil
}

// withConflictRetry 执行 fn，遇到版本冲突时重试一次
func withConflictRetry(fn func() error, onRetry func(error)) error {
	err := fn()
	if !errors.Is(err, ErrConcurrentModification) {
		return err
	}
	if onRetry != nil {
		onRetry(err)
	}
	return fn()
}

// classifyTxError 保留业务错误，其余存储错误统一包装为 ErrPersistence
func classifyTxError(err error) error {
	var locked *LessonLockedError
	switch {
	case errors.As(err, &locked),
		errors.Is(err, ErrNotEnrolled),
		errors.Is(err, ErrLessonNotFound),
		errors.Is(err, ErrCatalogOrder),
		errors.Is(err, ErrConcurrentModification),
		errors.Is(err, ErrPersistence):
		return err
	default:
		return persistenceError("commit completion", err)
	}
}

// Totals 实时汇总用户已完成记录的热量与时长
func (s *CompletionService) Totals(ctx context.Context, userID uint) (CompletionTotals, error) {
	var totals CompletionTotals
	if err := s.db.WithContext(ctx).Model(&db.CompletionRecord{}).
		Select("COALESCE(SUM(calories_credited), 0) AS calories, COALESCE(SUM(minutes_credited), 0) AS minutes").
		Where("user_id = ? AND is_completed = ?", userID, true).
		Scan(&totals).Error; err != nil {
		return CompletionTotals{}, persistenceError("sum completions", err)
	}
	return totals, nil
}

// CompletedLessonIDs 返回用户在课程中已完成的课时 ID，按 ID 升序
func (s *CompletionService) CompletedLessonIDs(ctx context.Context, userID, courseID uint) ([]uint, error) {
	ids := make([]uint, 0)
	if err := s.db.WithContext(ctx).Model(&db.CompletionRecord{}).
		Where("user_id = ? AND course_id = ? AND is_completed = ?", userID, courseID, true).
		Order("lesson_id ASC").
		Pluck("lesson_id", &ids).Error; err != nil {
		return nil, persistenceError("list completed lessons", err)
	}
	return ids, nil
}

// ActivityTimes 返回用户全部有效完成记录的完成时间
func (s *CompletionService) ActivityTimes(ctx context.Context, userID uint) ([]time.Time, error) {
	var records []db.CompletionRecord
	if err := s.db.WithContext(ctx).
		Select("completed_at").
		Where("user_id = ? AND is_completed = ? AND completed_at IS NOT NULL", userID, true).
		Find(&records).Error; err != nil {
		return nil, persistenceError("list completion times", err)
	}

	times := make([]time.Time, 0, len(records))
	for _, record := range records {
		if record.CompletedAt != nil {
			times = append(times, *record.CompletedAt)
		}
	}
	return times, nil
}
