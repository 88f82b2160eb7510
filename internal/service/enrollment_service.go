package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursepulse/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentService 提供课程授权的查询；写入口只服务于外部购买流程的适配层
type EnrollmentService struct {
	db *gorm.DB
}

// NewEnrollmentService 构造 EnrollmentService
func NewEnrollmentService(gdb *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: gdb}
}

// ActiveEnrollment 返回用户在课程上的有效授权；不存在或已停用时返回 ErrNotEnrolled
func (s *EnrollmentService) ActiveEnrollment(ctx context.Context, userID, courseID uint) (*db.Enrollment, error) {
	return activeEnrollment(s.db.WithContext(ctx), userID, courseID)
}

func activeEnrollment(tx *gorm.DB, userID, courseID uint) (*db.Enrollment, error) {
	var enrollment db.Enrollment
	if err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).Take(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, persistenceError("get enrollment", err)
	}
	if !enrollment.IsActive {
		return nil, ErrNotEnrolled
	}
	return &enrollment, nil
}

// Grant 幂等地授予课程访问：已存在时只重新激活，保留最初的 ActivatedAt
func (s *EnrollmentService) Grant(ctx context.Context, userID, courseID uint, activatedAt time.Time) (*db.Enrollment, error) {
	if userID == 0 || courseID == 0 {
		return nil, fmt.Errorf("user id and course id are required")
	}

	gdb := s.db.WithContext(ctx)
	record := db.Enrollment{
		UserID:      userID,
		CourseID:    courseID,
		ActivatedAt: activatedAt,
		IsActive:    true,
	}

	if err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, persistenceError("upsert enrollment", err)
	}

	var stored db.Enrollment
	if err := gdb.Where("user_id = ? AND course_id = ?", userID, courseID).Take(&stored).Error; err != nil {
		return nil, persistenceError("reload enrollment", err)
	}
	return &stored, nil
}

// Deactivate 停用授权；不存在时返回 ErrNotEnrolled
func (s *EnrollmentService) Deactivate(ctx context.Context, userID, courseID uint) error {
	result := s.db.WithContext(ctx).Model(&db.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Update("is_active", false)
	if result.Error != nil {
		return persistenceError("deactivate enrollment", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotEnrolled
	}
	return nil
}
