package service

import (
	"context"
	"time"

	"github.com/coursepulse/internal/logger"
	"gorm.io/gorm"
)

// ProgressSnapshot 是 GET /progress 返回的唯一聚合视图，所有派生值都在请求时重新计算
type ProgressSnapshot struct {
	CourseID            uint
	Lessons             []LessonAvailability
	CompletedLessonIDs  []uint
	Streak              StreakState
	TotalCaloriesBurned int
	TotalMinutes        int
	Goal                GoalState
	GeneratedAt         time.Time
}

// ProgressOptions 为进度引擎的可调参数
type ProgressOptions struct {
	Location      *time.Location
	CaloriesPerKg float64
	StreakCache   StreakCache
	Logger        *logger.Logger
}

// ProgressService 组合授权、目录、完成记录、连胜与目标进度
type ProgressService struct {
	enrollments   *EnrollmentService
	catalog       *CatalogService
	completions   *CompletionService
	streaks       *StreakService
	profiles      *ProfileService
	caloriesPerKg float64
}

// NewProgressService 基于同一个数据库连接构造完整的进度引擎
func NewProgressService(gdb *gorm.DB, opts ProgressOptions) *ProgressService {
	log := logger.OrNop(opts.Logger)
	completions := NewCompletionService(gdb, log)

	caloriesPerKg := opts.CaloriesPerKg
	if caloriesPerKg <= 0 {
		caloriesPerKg = CaloriesPerKg
	}

	return &ProgressService{
		enrollments:   NewEnrollmentService(gdb),
		catalog:       NewCatalogService(gdb),
		completions:   completions,
		streaks:       NewStreakService(completions, opts.StreakCache, opts.Location, log),
		profiles:      NewProfileService(gdb),
		caloriesPerKg: caloriesPerKg,
	}
}

// Enrollments 暴露授权服务，供购买流程适配层使用
func (s *ProgressService) Enrollments() *EnrollmentService {
	return s.enrollments
}

// Profiles 暴露资料服务
func (s *ProgressService) Profiles() *ProfileService {
	return s.profiles
}

// Snapshot 计算用户在课程上的完整进度
func (s *ProgressService) Snapshot(ctx context.Context, userID, courseID uint, now time.Time) (*ProgressSnapshot, error) {
	enrollment, err := s.enrollments.ActiveEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	lessons, err := s.catalog.Lessons(ctx, courseID)
	if err != nil {
		return nil, err
	}

	unlocked := UnlockState(*enrollment, lessons, now)
	ordered := make([]LessonAvailability, 0, len(lessons))
	for _, lesson := range lessons {
		ordered = append(ordered, unlocked[lesson.ID])
	}

	completed, err := s.completions.CompletedLessonIDs(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	totals, err := s.completions.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}

	streak, err := s.streaks.Streak(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ProgressSnapshot{
		CourseID:            courseID,
		Lessons:             ordered,
		CompletedLessonIDs:  completed,
		Streak:              streak,
		TotalCaloriesBurned: totals.Calories,
		TotalMinutes:        totals.Minutes,
		Goal:                GoalProgress(profile, totals.Calories, s.caloriesPerKg),
		GeneratedAt:         now,
	}, nil
}

// SetCompletion 写入完成状态后返回写入结果与最新快照
func (s *ProgressService) SetCompletion(ctx context.Context, userID, lessonID uint, desired bool, now time.Time) (*CompletionResult, *ProgressSnapshot, error) {
	result, err := s.completions.SetCompletion(ctx, userID, lessonID, desired, now)
	if err != nil {
		return nil, nil, err
	}
	if result.Changed {
		s.streaks.Invalidate(ctx, userID)
	}

	snapshot, err := s.Snapshot(ctx, userID, result.CourseID, now)
	if err != nil {
		return nil, nil, err
	}
	return result, snapshot, nil
}
