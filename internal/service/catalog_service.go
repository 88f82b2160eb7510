package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursepulse/internal/db"
	"gorm.io/gorm"
)

// CatalogService 只读访问课程目录
type CatalogService struct {
	db *gorm.DB
}

// LessonInput 描述创建课程时的单节配置，仅供目录适配层与种子脚本使用
type LessonInput struct {
	Title           string
	DurationMinutes int
	CalorieYield    int
}

// NewCatalogService 构造 CatalogService
func NewCatalogService(gdb *gorm.DB) *CatalogService {
	return &CatalogService{db: gdb}
}

// Lessons 返回课程的全部课时，按 order 升序，并校验 order 从 1 连续
// 课程没有课时时返回空切片
func (s *CatalogService) Lessons(ctx context.Context, courseID uint) ([]db.Lesson, error) {
	var lessons []db.Lesson
	if err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("lesson_order ASC").
		Find(&lessons).Error; err != nil {
		return nil, persistenceError("list lessons", err)
	}

	if err := validateLessonOrder(lessons); err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}
	return lessons, nil
}

// CreateCourse 创建课程并按输入顺序生成 order=1..n 的课时
func (s *CatalogService) CreateCourse(ctx context.Context, title string, inputs []LessonInput) (*db.Course, []db.Lesson, error) {
	course := db.Course{Title: title}
	lessons := make([]db.Lesson, 0, len(inputs))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return err
		}
		for i, input := range inputs {
			lessons = append(lessons, db.Lesson{
				CourseID:        course.ID,
				Order:           i + 1,
				Title:           input.Title,
				DurationMinutes: input.DurationMinutes,
				CalorieYield:    input.CalorieYield,
			})
		}
		if len(lessons) == 0 {
			return nil
		}
		return tx.Create(&lessons).Error
	})
	if err != nil {
		return nil, nil, persistenceError("create course", err)
	}
	return &course, lessons, nil
}

func findLesson(tx *gorm.DB, lessonID uint) (*db.Lesson, error) {
	var lesson db.Lesson
	if err := tx.Take(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, persistenceError("get lesson", err)
	}
	if lesson.Order < 1 {
		return nil, fmt.Errorf("lesson %d: %w", lesson.ID, ErrCatalogOrder)
	}
	return &lesson, nil
}

func validateLessonOrder(lessons []db.Lesson) error {
	for i, lesson := range lessons {
		if lesson.Order != i+1 {
			return fmt.Errorf("%w: position %d has order %d", ErrCatalogOrder, i+1, lesson.Order)
		}
	}
	return nil
}
