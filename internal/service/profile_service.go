package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursepulse/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProfileInvalidInput 在体重数据不合法时返回
var ErrProfileInvalidInput = errors.New("invalid learner profile input")

// ProfileService 维护学员的体重目标资料
type ProfileService struct {
	db *gorm.DB
}

// ProfileInput 描述更新资料时可设置的字段
type ProfileInput struct {
	CurrentWeight float64
	TargetWeight  float64
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB) *ProfileService {
	return &ProfileService{db: gdb}
}

// Get 返回学员资料；不存在时返回空资料而不是错误，目标进度会被标记为不适用
func (s *ProfileService) Get(ctx context.Context, userID uint) (db.LearnerProfile, error) {
	var profile db.LearnerProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.LearnerProfile{UserID: userID}, nil
		}
		return db.LearnerProfile{}, persistenceError("get learner profile", err)
	}
	return profile, nil
}

// Upsert 创建或更新学员资料
// 只拒绝负数；目标不低于当前体重是允许的，只会让进度显示为不适用
func (s *ProfileService) Upsert(ctx context.Context, userID uint, input ProfileInput) (*db.LearnerProfile, error) {
	if input.CurrentWeight < 0 || input.TargetWeight < 0 {
		return nil, fmt.Errorf("%w: weights must not be negative", ErrProfileInvalidInput)
	}

	gdb := s.db.WithContext(ctx)
	profile := db.LearnerProfile{
		UserID:        userID,
		CurrentWeight: input.CurrentWeight,
		TargetWeight:  input.TargetWeight,
	}

	if err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_weight", "target_weight", "updated_at"}),
	}).Create(&profile).Error; err != nil {
		return nil, persistenceError("upsert learner profile", err)
	}

	stored, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
