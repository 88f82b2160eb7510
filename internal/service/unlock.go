package service

import (
	"time"

	"github.com/coursepulse/internal/db"
)

// LessonStatus 表示课程对学员的可见状态
type LessonStatus string

const (
	LessonLocked    LessonStatus = "locked"
	LessonAvailable LessonStatus = "available"
)

const unlockInterval = 24 * time.Hour

// LessonAvailability 为单节课的解锁结果；AvailableAt 仅在按时间锁定时给出
type LessonAvailability struct {
	LessonID    uint
	Order       int
	Status      LessonStatus
	AvailableAt *time.Time
}

// UnlockState 按授权时间计算每节课的可见状态。
// 第 k 节课在授权满 k-1 天后开放，与是否完成前面的课程无关；授权失效时全部锁定。
// 纯函数：相同输入总是得到相同输出。
func UnlockState(enrollment db.Enrollment, lessons []db.Lesson, now time.Time) map[uint]LessonAvailability {
	state := make(map[uint]LessonAvailability, len(lessons))
	for _, lesson := range lessons {
		state[lesson.ID] = lessonAvailability(enrollment, lesson, now)
	}
	return state
}

func lessonAvailability(enrollment db.Enrollment, lesson db.Lesson, now time.Time) LessonAvailability {
	result := LessonAvailability{LessonID: lesson.ID, Order: lesson.Order, Status: LessonLocked}
	if !enrollment.IsActive {
		return result
	}

	if elapsedDays(enrollment.ActivatedAt, now) >= int64(lesson.Order-1) {
		result.Status = LessonAvailable
		return result
	}

	availableAt := enrollment.ActivatedAt.Add(time.Duration(lesson.Order-1) * unlockInterval)
	result.AvailableAt = &availableAt
	return result
}

// elapsedDays 向下取整；授权时间在未来（时钟偏差）时视为 0
func elapsedDays(activatedAt, now time.Time) int64 {
	elapsed := now.Sub(activatedAt)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / unlockInterval)
}
