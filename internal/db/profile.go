package db

import "gorm.io/gorm"

// LearnerProfile 保存学员的体重目标，来自用户资料服务
// 两个体重字段为 0 视为资料缺失
type LearnerProfile struct {
	gorm.Model
	UserID        uint    `gorm:"not null;uniqueIndex"`
	CurrentWeight float64 `gorm:"not null"`
	TargetWeight  float64 `gorm:"not null"`
}

func (LearnerProfile) TableName() string {
	return "learner_profiles"
}
