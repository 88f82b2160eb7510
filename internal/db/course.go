package db

import "gorm.io/gorm"

// Course 为课程目录中的课程，仅作为只读事实使用
type Course struct {
	gorm.Model
	Title string `gorm:"size:200;not null"`
}

// Lesson 为课程中的单节内容
// Order 从 1 开始连续递增，同一课程内唯一；解锁调度依赖这一点
// order 是 SQL 保留字，因此列名使用 lesson_order
type Lesson struct {
	gorm.Model
	CourseID        uint   `gorm:"not null;index;uniqueIndex:idx_lesson_course_order"`
	Order           int    `gorm:"column:lesson_order;not null;uniqueIndex:idx_lesson_course_order"`
	Title           string `gorm:"size:200"`
	DurationMinutes int    `gorm:"not null"`
	CalorieYield    int    `gorm:"not null"`
}

// TableName 固定表名
func (Lesson) TableName() string {
	return "lessons"
}
