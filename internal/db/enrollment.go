package db

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment 记录用户对课程的访问授权，由外部购买流程创建
// user_id + course_id 唯一；ActivatedAt 为解锁计时起点
type Enrollment struct {
	gorm.Model
	UserID      uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	CourseID    uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	ActivatedAt time.Time `gorm:"not null"`
	IsActive    bool      `gorm:"not null"`
}

// TableName 固定表名，确保唯一索引作用到 user_id + course_id
func (Enrollment) TableName() string {
	return "enrollments"
}
