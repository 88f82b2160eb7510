package service

import (
	"math"

	"github.com/coursepulse/internal/db"
)

// CaloriesPerKg 为默认的热量换算系数（约 7700 kcal 对应 1kg），可通过配置覆盖
const CaloriesPerKg = 7700.0

// GoalState 为体重目标进度；Applicable 为 false 表示资料缺失或无需减重
type GoalState struct {
	CurrentWeight       float64
	TargetWeight        float64
	TotalCaloriesBurned int
	ProgressPercent     int
	Applicable          bool
}

// GoalProgress 把累计消耗热量换算为减重目标的百分比，结果限制在 0..100
// 目标不合法时不报错，只返回 0 并标记为不适用
func GoalProgress(profile db.LearnerProfile, totalCaloriesBurned int, caloriesPerKg float64) GoalState {
	state := GoalState{
		CurrentWeight:       profile.CurrentWeight,
		TargetWeight:        profile.TargetWeight,
		TotalCaloriesBurned: totalCaloriesBurned,
	}
	if caloriesPerKg <= 0 {
		caloriesPerKg = CaloriesPerKg
	}

	if profile.CurrentWeight <= 0 || profile.TargetWeight <= 0 {
		return state
	}
	toLose := profile.CurrentWeight - profile.TargetWeight
	if toLose <= 0 {
		return state
	}

	state.Applicable = true
	if totalCaloriesBurned <= 0 {
		return state
	}

	caloriesNeeded := toLose * caloriesPerKg
	percent := math.Round(100 * float64(totalCaloriesBurned) / caloriesNeeded)
	state.ProgressPercent = int(math.Min(100, percent))
	return state
}
