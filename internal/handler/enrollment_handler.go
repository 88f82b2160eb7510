package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/coursepulse/internal/service"
	"github.com/gin-gonic/gin"
)

const internalTokenHeader = "X-Internal-Token"

type enrollmentPayload struct {
	UserID      uint       `json:"user_id" binding:"required"`
	CourseID    uint       `json:"course_id" binding:"required"`
	ActivatedAt *time.Time `json:"activated_at"`
}

type profilePayload struct {
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
}

// InternalTokenRequired 保护购买流程回调；未配置令牌时整组路由不可用
func (a *API) InternalTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.internalToken == "" {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		provided := c.GetHeader(internalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.internalToken)) != 1 {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}

// GrantEnrollment 由购买流程调用，重复授权保持最初的激活时间
func (a *API) GrantEnrollment(c *gin.Context) {
	var payload enrollmentPayload
	if !bindJSON(c, &payload) {
		return
	}

	activatedAt := a.now()
	if payload.ActivatedAt != nil {
		activatedAt = *payload.ActivatedAt
	}

	enrollment, err := a.progress.Enrollments().Grant(c.Request.Context(), payload.UserID, payload.CourseID, activatedAt)
	if err != nil {
		a.handleProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      enrollment.UserID,
		"course_id":    enrollment.CourseID,
		"activated_at": formatTimestamp(enrollment.ActivatedAt),
		"is_active":    enrollment.IsActive,
	})
}

// RevokeEnrollment 停用授权，已有完成记录保留
func (a *API) RevokeEnrollment(c *gin.Context) {
	var payload enrollmentPayload
	if !bindJSON(c, &payload) {
		return
	}

	if err := a.progress.Enrollments().Deactivate(c.Request.Context(), payload.UserID, payload.CourseID); err != nil {
		a.handleProgressError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateProfile 更新当前用户的体重资料
func (a *API) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload profilePayload
	if !bindJSON(c, &payload) {
		return
	}

	profile, err := a.progress.Profiles().Upsert(c.Request.Context(), userID, service.ProfileInput{
		CurrentWeight: payload.CurrentWeight,
		TargetWeight:  payload.TargetWeight,
	})
	if err != nil {
		if errors.Is(err, service.ErrProfileInvalidInput) {
			respondError(c, http.StatusBadRequest, "invalid_profile")
			return
		}
		a.handleProgressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current_weight": profile.CurrentWeight,
		"target_weight":  profile.TargetWeight,
	})
}
