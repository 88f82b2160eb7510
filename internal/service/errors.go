package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotEnrolled 在用户没有该课程的有效授权时返回
	ErrNotEnrolled = errors.New("not enrolled")
	// ErrLessonLocked 在课程尚未解锁时返回，具体时间见 LessonLockedError
	ErrLessonLocked = errors.New("lesson locked")
	// ErrLessonNotFound 在课程目录中找不到该课时返回
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrCatalogOrder 在课程的 order 不是从 1 开始的连续整数时返回
	ErrCatalogOrder = errors.New("lesson order is not contiguous from 1")
	// ErrConcurrentModification 在乐观锁版本不匹配时返回；内部会自动重试一次
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrPersistence 包装存储读写失败，调用方可以原样重试
	ErrPersistence = errors.New("persistence failure")
)

// LessonLockedError 携带课程可用时间，便于前端提示"尚未开放"
type LessonLockedError struct {
	LessonID    uint
	AvailableAt *time.Time
}

func (e *LessonLockedError) Error() string {
	if e.AvailableAt == nil {
		return fmt.Sprintf("lesson %d locked", e.LessonID)
	}
	return fmt.Sprintf("lesson %d locked until %s", e.LessonID, e.AvailableAt.Format(time.RFC3339))
}

func (e *LessonLockedError) Unwrap() error {
	return ErrLessonLocked
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
