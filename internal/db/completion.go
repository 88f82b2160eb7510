package db

import (
	"time"

	"gorm.io/gorm"
)

// CompletionRecord 记录某用户对某节课的完成状态
// User + Lesson 采用唯一索引，保证每个组合只有一行；行只更新不删除
// CaloriesCredited/MinutesCredited 在完成时按课程当时的配置写入，用于审计
// Version 每次状态变更递增，用作乐观锁
type CompletionRecord struct {
	gorm.Model
	UserID           uint `gorm:"not null;index;uniqueIndex:idx_completion_user_lesson"`
	LessonID         uint `gorm:"not null;uniqueIndex:idx_completion_user_lesson"`
	CourseID         uint `gorm:"not null;index"`
	IsCompleted      bool `gorm:"not null"`
	CompletedAt      *time.Time
	CaloriesCredited int `gorm:"not null"`
	MinutesCredited  int `gorm:"not null"`
	Version          int `gorm:"not null"`
}

// TableName 重写确保唯一索引作用到 user_id + lesson_id
func (CompletionRecord) TableName() string {
	return "completion_records"
}
