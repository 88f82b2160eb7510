package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursepulse/internal/db"
	"github.com/coursepulse/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testActivatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	testNow         = time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
)

type testEnv struct {
	db      *gorm.DB
	api     *API
	router  *gin.Engine
	user    *db.User
	course  *db.Course
	lessons []db.Lesson
	cookies []*http.Cookie
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func newTestRouter(api *API) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(sessions.Sessions("cp_session", cookie.NewStore([]byte("handler-test-secret"))))
	r.Use(LocaleMiddleware())

	r.POST("/api/login", api.Login)
	r.POST("/api/logout", api.Logout)

	internal := r.Group("/api/internal", api.InternalTokenRequired())
	internal.POST("/enrollments", api.GrantEnrollment)
	internal.DELETE("/enrollments", api.RevokeEnrollment)

	authed := r.Group("/api", AuthRequired())
	authed.GET("/progress", api.GetProgress)
	authed.POST("/lessons/:id/complete", api.SetLessonCompletion)
	authed.PUT("/profile", api.UpdateProfile)
	return r
}

func setupEnv(t *testing.T, internalToken string) *testEnv {
	t.Helper()

	gdb := setupHandlerTestDB(t)
	api := NewAPI(gdb, Options{
		Location:      time.UTC,
		InternalToken: internalToken,
		Now:           func() time.Time { return testNow },
	})

	user, err := db.EnsureUser(gdb, "learner", "secret-pass")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	inputs := make([]service.LessonInput, 5)
	for i := range inputs {
		inputs[i] = service.LessonInput{Title: fmt.Sprintf("Day %d", i+1), DurationMinutes: 30, CalorieYield: 300}
	}
	course, lessons, err := service.NewCatalogService(gdb).CreateCourse(context.Background(), "Thirty day burn", inputs)
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if _, err := service.NewEnrollmentService(gdb).Grant(context.Background(), user.ID, course.ID, testActivatedAt); err != nil {
		t.Fatalf("grant enrollment: %v", err)
	}

	env := &testEnv{db: gdb, api: api, router: newTestRouter(api), user: user, course: course, lessons: lessons}
	env.cookies = env.login(t, "learner", "secret-pass", http.StatusOK)
	return env
}

func (e *testEnv) login(t *testing.T, username, password string, expectStatus int) []*http.Cookie {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/login", map[string]string{"username": username, "password": password}, nil)
	if w.Code != expectStatus {
		t.Fatalf("login expected %d, got %d: %s", expectStatus, w.Code, w.Body.String())
	}
	return w.Result().Cookies()
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeProgress(t *testing.T, w *httptest.ResponseRecorder) progressPayload {
	t.Helper()
	var payload progressPayload
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode progress: %v (%s)", err, w.Body.String())
	}
	return payload
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return payload
}

func TestGetProgressReturnsSnapshot(t *testing.T) {
	env := setupEnv(t, "")

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", env.course.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	payload := decodeProgress(t, w)
	if payload.CourseID != env.course.ID {
		t.Fatalf("unexpected course id %d", payload.CourseID)
	}
	if len(payload.Lessons) != 5 {
		t.Fatalf("expected 5 lessons, got %d", len(payload.Lessons))
	}
	for i, lesson := range payload.Lessons {
		if lesson.Order != i+1 {
			t.Fatalf("lessons should be ordered, got %+v", payload.Lessons)
		}
	}
	if payload.Lessons[2].Status != "available" || payload.Lessons[2].AvailableAt != "" {
		t.Fatalf("lesson 3 should be available, got %+v", payload.Lessons[2])
	}
	if payload.Lessons[3].Status != "locked" || payload.Lessons[3].AvailableAt != "2025-01-04T00:00:00Z" {
		t.Fatalf("lesson 4 should be locked until day 4, got %+v", payload.Lessons[3])
	}
	if payload.StreakDays != 0 || payload.LastActivityDate != "" {
		t.Fatalf("expected empty streak, got %d %q", payload.StreakDays, payload.LastActivityDate)
	}
	if payload.GoalApplicable || payload.GoalProgressPercent != 0 {
		t.Fatalf("goal should be inapplicable without profile")
	}
	if payload.CompletedLessonIDs == nil || len(payload.CompletedLessonIDs) != 0 {
		t.Fatalf("expected empty completed list, got %v", payload.CompletedLessonIDs)
	}
	if payload.GeneratedAt != "2025-01-03T12:00:00Z" {
		t.Fatalf("unexpected generated_at %q", payload.GeneratedAt)
	}
	if w.Header().Get("Content-Language") != "zh-CN" {
		t.Fatalf("expected default Chinese content language")
	}
}

func TestSetLessonCompletionIsIdempotent(t *testing.T) {
	env := setupEnv(t, "")
	path := fmt.Sprintf("/api/lessons/%d/complete", env.lessons[0].ID)

	w := env.do(t, http.MethodPost, path, map[string]bool{"desired_state": true}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	first := decodeProgress(t, w)
	if first.Completion == nil || !first.Completion.Changed || !first.Completion.IsCompleted {
		t.Fatalf("first completion should change state, got %+v", first.Completion)
	}
	if first.Completion.CaloriesCredited != 300 || first.TotalCaloriesBurned != 300 || first.TotalMinutes != 30 {
		t.Fatalf("unexpected totals %+v", first)
	}
	if first.StreakDays != 1 || first.LastActivityDate != "2025-01-03" {
		t.Fatalf("expected 1 day streak on 2025-01-03, got %d %q", first.StreakDays, first.LastActivityDate)
	}
	if len(first.CompletedLessonIDs) != 1 || first.CompletedLessonIDs[0] != env.lessons[0].ID {
		t.Fatalf("unexpected completed ids %v", first.CompletedLessonIDs)
	}

	w = env.do(t, http.MethodPost, path, map[string]bool{"desired_state": true}, nil)
	second := decodeProgress(t, w)
	if second.Completion == nil || second.Completion.Changed {
		t.Fatalf("repeated completion must be a no-op, got %+v", second.Completion)
	}
	if second.TotalCaloriesBurned != 300 {
		t.Fatalf("calories must not double count, got %d", second.TotalCaloriesBurned)
	}

	w = env.do(t, http.MethodPost, path, map[string]bool{"desired_state": false}, nil)
	undone := decodeProgress(t, w)
	if undone.Completion == nil || !undone.Completion.Changed || undone.Completion.IsCompleted {
		t.Fatalf("reversal should change state, got %+v", undone.Completion)
	}
	if undone.TotalCaloriesBurned != 0 || len(undone.CompletedLessonIDs) != 0 || undone.StreakDays != 0 {
		t.Fatalf("reversal should clear totals, got %+v", undone)
	}
}

func TestSetLessonCompletionRejectsLockedLesson(t *testing.T) {
	env := setupEnv(t, "")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/lessons/%d/complete", env.lessons[3].ID), map[string]bool{"desired_state": true}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	payload := decodeError(t, w)
	if payload["code"] != "lesson_locked" {
		t.Fatalf("expected lesson_locked code, got %v", payload["code"])
	}
	if payload["available_at"] != "2025-01-04T00:00:00Z" {
		t.Fatalf("expected available_at, got %v", payload["available_at"])
	}

	var count int64
	env.db.Model(&db.CompletionRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("locked request must not write, found %d records", count)
	}
}

func TestProgressRequiresEnrollment(t *testing.T) {
	env := setupEnv(t, "")

	other, _, err := service.NewCatalogService(env.db).CreateCourse(context.Background(), "Other", []service.LessonInput{{Title: "Intro", DurationMinutes: 10, CalorieYield: 50}})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", other.ID), nil, map[string]string{"Accept-Language": "en-US,en;q=0.9"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	payload := decodeError(t, w)
	if payload["code"] != "not_enrolled" || payload["error"] != "You have not purchased this course." {
		t.Fatalf("unexpected error payload %v", payload)
	}
	if w.Header().Get("Content-Language") != "en-US" {
		t.Fatalf("expected English content language")
	}
}

func TestProgressValidation(t *testing.T) {
	env := setupEnv(t, "")

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"missing course", http.MethodGet, "/api/progress", nil, http.StatusBadRequest, "invalid_course_id"},
		{"bad course", http.MethodGet, "/api/progress?course_id=abc", nil, http.StatusBadRequest, "invalid_course_id"},
		{"bad lesson", http.MethodPost, "/api/lessons/0/complete", map[string]bool{"desired_state": true}, http.StatusBadRequest, "invalid_lesson_id"},
		{"missing desired state", http.MethodPost, fmt.Sprintf("/api/lessons/%d/complete", env.lessons[0].ID), map[string]string{}, http.StatusBadRequest, "invalid_request"},
		{"unknown lesson", http.MethodPost, "/api/lessons/9999/complete", map[string]bool{"desired_state": true}, http.StatusNotFound, "lesson_not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, tc.method, tc.path, tc.body, nil)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if code := decodeError(t, w)["code"]; code != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, code)
			}
		})
	}
}

func TestAuthRequiredRejectsAnonymous(t *testing.T) {
	env := setupEnv(t, "")
	env.cookies = nil

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", env.course.ID), nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	env.login(t, "learner", "wrong-pass", http.StatusUnauthorized)
}

func TestLogoutClearsSession(t *testing.T) {
	env := setupEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/logout", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	env.cookies = w.Result().Cookies()

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", env.course.ID), nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestUpdateProfileFeedsGoalProgress(t *testing.T) {
	env := setupEnv(t, "")

	w := env.do(t, http.MethodPut, "/api/profile", map[string]float64{"current_weight": 80, "target_weight": 79.9}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	env.do(t, http.MethodPost, fmt.Sprintf("/api/lessons/%d/complete", env.lessons[0].ID), map[string]bool{"desired_state": true}, nil)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", env.course.ID), nil, nil)
	payload := decodeProgress(t, w)
	// 0.1kg 约等于 770 kcal，300 kcal 对应 39%
	if !payload.GoalApplicable || payload.GoalProgressPercent != 39 {
		t.Fatalf("expected 39%% applicable goal, got %d %v", payload.GoalProgressPercent, payload.GoalApplicable)
	}

	w = env.do(t, http.MethodPut, "/api/profile", map[string]float64{"current_weight": -1, "target_weight": 70}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative weight, got %d", w.Code)
	}
}

func TestInternalEnrollmentEndpoints(t *testing.T) {
	disabled := setupEnv(t, "")
	w := disabled.do(t, http.MethodPost, "/api/internal/enrollments", map[string]uint{"user_id": 1, "course_id": 1}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("internal routes should be disabled without token, got %d", w.Code)
	}

	env := setupEnv(t, "purchase-token")
	other, _, err := service.NewCatalogService(env.db).CreateCourse(context.Background(), "Other", []service.LessonInput{{Title: "Intro", DurationMinutes: 10, CalorieYield: 50}})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	body := map[string]uint{"user_id": env.user.ID, "course_id": other.ID}

	w = env.do(t, http.MethodPost, "/api/internal/enrollments", body, map[string]string{internalTokenHeader: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/internal/enrollments", body, map[string]string{internalTokenHeader: "purchase-token"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", other.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("granted course should be readable, got %d", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/internal/enrollments", body, map[string]string{internalTokenHeader: "purchase-token"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on revoke, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/progress?course_id=%d", other.ID), nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("revoked course should be forbidden, got %d", w.Code)
	}
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	env := setupEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/progress", nil, map[string]string{requestIDHeader: "abc-123"})
	if w.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("expected request id to be echoed")
	}

	w = env.do(t, http.MethodGet, "/api/progress", nil, nil)
	if len(w.Header().Get(requestIDHeader)) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Header().Get(requestIDHeader))
	}
}
