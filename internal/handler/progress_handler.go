package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/coursepulse/internal/service"
	"github.com/gin-gonic/gin"
)

const dateFormat = "2006-01-02"

type lessonPayload struct {
	LessonID    uint   `json:"lesson_id"`
	Order       int    `json:"order"`
	Status      string `json:"status"`
	AvailableAt string `json:"available_at,omitempty"`
}

type completionPayload struct {
	LessonID         uint `json:"lesson_id"`
	IsCompleted      bool `json:"is_completed"`
	CaloriesCredited int  `json:"calories_credited"`
	Changed          bool `json:"changed"`
}

type progressPayload struct {
	CourseID            uint               `json:"course_id"`
	Lessons             []lessonPayload    `json:"lessons"`
	CompletedLessonIDs  []uint             `json:"completed_lesson_ids"`
	StreakDays          int                `json:"streak_days"`
	LongestStreak       int                `json:"longest_streak"`
	LastActivityDate    string             `json:"last_activity_date,omitempty"`
	TotalCaloriesBurned int                `json:"total_calories_burned"`
	TotalMinutes        int                `json:"total_minutes"`
	GoalProgressPercent int                `json:"goal_progress_percent"`
	GoalApplicable      bool               `json:"goal_applicable"`
	GeneratedAt         string             `json:"generated_at"`
	Completion          *completionPayload `json:"completion,omitempty"`
}

type completionRequest struct {
	DesiredState *bool `json:"desired_state"`
}

// GetProgress 返回当前用户在课程上的进度快照
func (a *API) GetProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, err := parseUintQuery(c, "course_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_course_id")
		return
	}

	snapshot, err := a.progress.Snapshot(c.Request.Context(), userID, courseID, a.now())
	if err != nil {
		a.handleProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, newProgressPayload(snapshot))
}

// SetLessonCompletion 设置课时完成状态，返回写入结果与最新快照
func (a *API) SetLessonCompletion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	lessonID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_lesson_id")
		return
	}

	var req completionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DesiredState == nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	result, snapshot, err := a.progress.SetCompletion(c.Request.Context(), userID, lessonID, *req.DesiredState, a.now())
	if err != nil {
		a.handleProgressError(c, err)
		return
	}

	payload := newProgressPayload(snapshot)
	payload.Completion = &completionPayload{
		LessonID:         result.LessonID,
		IsCompleted:      result.IsCompleted,
		CaloriesCredited: result.CaloriesCredited,
		Changed:          result.Changed,
	}
	c.JSON(http.StatusOK, payload)
}

func newProgressPayload(snapshot *service.ProgressSnapshot) progressPayload {
	lessons := make([]lessonPayload, 0, len(snapshot.Lessons))
	for _, lesson := range snapshot.Lessons {
		item := lessonPayload{
			LessonID: lesson.LessonID,
			Order:    lesson.Order,
			Status:   string(lesson.Status),
		}
		if lesson.AvailableAt != nil {
			item.AvailableAt = formatTimestamp(*lesson.AvailableAt)
		}
		lessons = append(lessons, item)
	}

	completed := snapshot.CompletedLessonIDs
	if completed == nil {
		completed = []uint{}
	}

	payload := progressPayload{
		CourseID:            snapshot.CourseID,
		Lessons:             lessons,
		CompletedLessonIDs:  completed,
		StreakDays:          snapshot.Streak.Days,
		LongestStreak:       snapshot.Streak.Longest,
		TotalCaloriesBurned: snapshot.TotalCaloriesBurned,
		TotalMinutes:        snapshot.TotalMinutes,
		GoalProgressPercent: snapshot.Goal.ProgressPercent,
		GoalApplicable:      snapshot.Goal.Applicable,
		GeneratedAt:         formatTimestamp(snapshot.GeneratedAt),
	}
	if snapshot.Streak.LastActivityDate != nil {
		payload.LastActivityDate = snapshot.Streak.LastActivityDate.Format(dateFormat)
	}
	return payload
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (a *API) handleProgressError(c *gin.Context, err error) {
	var locked *service.LessonLockedError
	switch {
	case errors.As(err, &locked):
		extra := gin.H{"lesson_id": locked.LessonID}
		if locked.AvailableAt != nil {
			extra["available_at"] = formatTimestamp(*locked.AvailableAt)
		}
		respondErrorWith(c, http.StatusConflict, "lesson_locked", extra)
	case errors.Is(err, service.ErrNotEnrolled):
		respondError(c, http.StatusForbidden, "not_enrolled")
	case errors.Is(err, service.ErrLessonNotFound):
		respondError(c, http.StatusNotFound, "lesson_not_found")
	case errors.Is(err, service.ErrConcurrentModification):
		respondError(c, http.StatusConflict, "concurrent_modification")
	case errors.Is(err, service.ErrCatalogOrder):
		a.log.Error("catalog order invalid", "path", c.Request.URL.Path, "error", err)
		respondError(c, http.StatusInternalServerError, "catalog_invalid")
	case errors.Is(err, service.ErrPersistence):
		a.log.Error("progress persistence failed", "path", c.Request.URL.Path, "error", err)
		respondError(c, http.StatusServiceUnavailable, "persistence_failure")
	default:
		a.log.Error("progress request failed", "path", c.Request.URL.Path, "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error")
	}
}
