package service

import (
	"testing"
	"time"

	"github.com/coursepulse/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLessons(n int) []db.Lesson {
	lessons := make([]db.Lesson, 0, n)
	for i := 1; i <= n; i++ {
		lesson := db.Lesson{CourseID: 1, Order: i, DurationMinutes: 20, CalorieYield: 150}
		lesson.ID = uint(100 + i)
		lessons = append(lessons, lesson)
	}
	return lessons
}

func TestUnlockStateDripSchedule(t *testing.T) {
	activated := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	enrollment := db.Enrollment{UserID: 1, CourseID: 1, ActivatedAt: activated, IsActive: true}

	state := UnlockState(enrollment, makeLessons(5), now)
	require.Len(t, state, 5)

	for id := uint(101); id <= 104; id++ {
		assert.Equal(t, LessonAvailable, state[id].Status, "lesson %d", id)
		assert.Nil(t, state[id].AvailableAt)
	}

	fifth := state[105]
	assert.Equal(t, LessonLocked, fifth.Status)
	require.NotNil(t, fifth.AvailableAt)
	assert.True(t, fifth.AvailableAt.Equal(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestUnlockStateAvailabilityBoundary(t *testing.T) {
	activated := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	enrollment := db.Enrollment{ActivatedAt: activated, IsActive: true}
	lessons := makeLessons(6)

	for _, lesson := range lessons {
		opensAt := activated.Add(time.Duration(lesson.Order-1) * 24 * time.Hour)

		before := UnlockState(enrollment, lessons, opensAt.Add(-time.Nanosecond))[lesson.ID]
		at := UnlockState(enrollment, lessons, opensAt)[lesson.ID]

		if lesson.Order == 1 {
			assert.Equal(t, LessonAvailable, before.Status, "first lesson is available immediately")
		} else {
			assert.Equal(t, LessonLocked, before.Status, "order %d before open", lesson.Order)
			require.NotNil(t, before.AvailableAt)
			assert.True(t, before.AvailableAt.Equal(opensAt))
		}
		assert.Equal(t, LessonAvailable, at.Status, "order %d at open", lesson.Order)
	}
}

func TestUnlockStateInactiveEnrollmentLocksEverything(t *testing.T) {
	activated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	enrollment := db.Enrollment{ActivatedAt: activated, IsActive: false}

	state := UnlockState(enrollment, makeLessons(3), activated.AddDate(1, 0, 0))
	for _, item := range state {
		assert.Equal(t, LessonLocked, item.Status)
		assert.Nil(t, item.AvailableAt)
	}
}

func TestUnlockStateFutureActivationTreatedAsDayZero(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	enrollment := db.Enrollment{ActivatedAt: now.Add(36 * time.Hour), IsActive: true}

	state := UnlockState(enrollment, makeLessons(2), now)
	assert.Equal(t, LessonAvailable, state[101].Status)
	assert.Equal(t, LessonLocked, state[102].Status)
}

func TestUnlockStateEmptyCourse(t *testing.T) {
	state := UnlockState(db.Enrollment{IsActive: true}, nil, time.Now())
	assert.NotNil(t, state)
	assert.Empty(t, state)
}

func TestUnlockStateIsPure(t *testing.T) {
	enrollment := db.Enrollment{ActivatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), IsActive: true}
	now := time.Date(2025, 1, 3, 1, 0, 0, 0, time.UTC)
	lessons := makeLessons(4)

	assert.Equal(t, UnlockState(enrollment, lessons, now), UnlockState(enrollment, lessons, now))
}
