package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func roomID(id string) *string { return &id }

func TestCheckConflict(t *testing.T) {
	existing := []models.Assignment{
		{ID: "a1", TeacherID: "t1", ClassID: "c1", LessonName: "Math", Day: 0, Hour: 0, RoomID: roomID("r1")},
		{ID: "a2", TeacherID: "t2", ClassID: "c2", LessonName: "Art", Day: 0, Hour: 1, RoomID: roomID("r2")},
	}

	tests := []struct {
		name      string
		candidate models.Assignment
		dimension string
		contains  string
	}{
		{
			name:      "teacher collision",
			candidate: models.Assignment{TeacherID: "t1", ClassID: "c3", LessonName: "Math", Day: 0, Hour: 0},
			dimension: models.ConflictTeacher,
			contains:  "class c1",
		},
		{
			name:      "class collision",
			candidate: models.Assignment{TeacherID: "t3", ClassID: "c2", LessonName: "Music", Day: 0, Hour: 1},
			dimension: models.ConflictClass,
			contains:  "class c2",
		},
		{
			name:      "room collision",
			candidate: models.Assignment{TeacherID: "t3", ClassID: "c3", LessonName: "Music", Day: 0, Hour: 1, RoomID: roomID("r2")},
			dimension: models.ConflictRoom,
			contains:  "room r2",
		},
		{
			name:      "free slot",
			candidate: models.Assignment{TeacherID: "t1", ClassID: "c1", LessonName: "Math", Day: 1, Hour: 0, RoomID: roomID("r1")},
		},
		{
			name:      "moving onto itself",
			candidate: models.Assignment{ID: "a1", TeacherID: "t1", ClassID: "c1", LessonName: "Math", Day: 0, Hour: 0, RoomID: roomID("r1")},
		},
		{
			name:      "no room never collides on room",
			candidate: models.Assignment{TeacherID: "t3", ClassID: "c3", LessonName: "Music", Day: 0, Hour: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict := CheckConflict(tt.candidate, existing, nil)
			if tt.dimension == "" {
				assert.Nil(t, conflict)
				return
			}
			require.NotNil(t, conflict)
			assert.Equal(t, tt.dimension, conflict.Dimension)
			assert.Contains(t, conflict.Message, tt.contains)
			assert.Contains(t, conflict.Message, "Monday")
		})
	}
}

func TestCheckConflictUsesDirectoryNames(t *testing.T) {
	snapshot := models.Snapshot{
		Teachers: []models.Teacher{{ID: "t1", Name: "Ms. Rahma"}},
		Classes:  []models.ClassSection{{ID: "c1", Name: "XI IPA 1"}},
	}
	existing := []models.Assignment{{ID: "a1", TeacherID: "t1", ClassID: "c1", LessonName: "Math", Day: 2, Hour: 3}}

	conflict := CheckConflict(models.Assignment{TeacherID: "t1", ClassID: "c2", LessonName: "Math", Day: 2, Hour: 3}, existing, snapshot)
	require.NotNil(t, conflict)
	assert.Equal(t, "teacher Ms. Rahma already teaches Math in class XI IPA 1 on Wednesday hour 4", conflict.Message)

	sc := conflict.ScheduleConflict()
	assert.Equal(t, "a1", sc.AssignmentID)
	assert.Equal(t, models.ConflictTeacher, sc.Dimension)
}

func TestCheckConflictsCollectsEveryCollision(t *testing.T) {
	existing := []models.Assignment{
		{ID: "a1", TeacherID: "t1", ClassID: "c1", Day: 0, Hour: 0},
		{ID: "a2", TeacherID: "t2", ClassID: "c2", Day: 0, Hour: 0, RoomID: roomID("r1")},
		{ID: "a3", TeacherID: "t1", ClassID: "c2", Day: 0, Hour: 1},
	}
	conflicts := CheckConflicts(models.Assignment{TeacherID: "t1", ClassID: "c2", Day: 0, Hour: 0, RoomID: roomID("r1")}, existing, nil)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ConflictTeacher, conflicts[0].Dimension)
	assert.Equal(t, models.ConflictClass, conflicts[1].Dimension)
}

func session(id string, day, hour int) models.Assignment {
	return models.Assignment{ID: id, ClassID: "c1", TeacherID: "t1", LessonName: "Math", Day: day, Hour: hour}
}

func TestCheckConsecutiveLessonsRule(t *testing.T) {
	tests := []struct {
		name        string
		candidate   models.Assignment
		others      []models.Assignment
		weeklyHours int
		valid       bool
	}{
		{name: "single weekly hour", candidate: session("", 0, 0), weeklyHours: 1, valid: true},
		{name: "first session", candidate: session("", 0, 0), weeklyHours: 2, valid: true},
		{name: "even adjacent pair", candidate: session("", 1, 3), others: []models.Assignment{session("a", 1, 2)}, weeklyHours: 2, valid: true},
		{name: "even split over days", candidate: session("", 2, 3), others: []models.Assignment{session("a", 1, 3)}, weeklyHours: 2, valid: false},
		{name: "even gap on same day", candidate: session("", 1, 4), others: []models.Assignment{session("a", 1, 2)}, weeklyHours: 2, valid: false},
		{
			name:        "even three on one day is not a pair",
			candidate:   session("", 0, 2),
			others:      []models.Assignment{session("a", 0, 0), session("b", 0, 1), session("c", 3, 0)},
			weeklyHours: 4,
			valid:       false,
		},
		{
			name:        "even one pair among days",
			candidate:   session("", 3, 1),
			others:      []models.Assignment{session("a", 0, 0), session("b", 3, 0), session("c", 4, 5)},
			weeklyHours: 4,
			valid:       true,
		},
		{name: "odd earliest adjacent", candidate: session("", 0, 1), others: []models.Assignment{session("a", 0, 0), session("b", 2, 4)}, weeklyHours: 3, valid: true},
		{name: "odd earliest apart", candidate: session("", 2, 5), others: []models.Assignment{session("a", 0, 0), session("b", 1, 0)}, weeklyHours: 3, valid: false},
		{
			name:        "other lessons ignored",
			candidate:   session("", 0, 1),
			others:      []models.Assignment{session("a", 0, 0), {ID: "x", ClassID: "c1", LessonName: "Art", Day: 0, Hour: 2}},
			weeklyHours: 2,
			valid:       true,
		},
		{name: "moved session replaces itself", candidate: session("a", 0, 1), others: []models.Assignment{session("a", 3, 3), session("b", 0, 0)}, weeklyHours: 2, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckConsecutiveLessonsRule(tt.candidate, tt.others, tt.weeklyHours)
			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.Empty(t, result.Warning)
			} else {
				assert.Contains(t, result.Warning, "Math")
			}
		})
	}
}

func TestDayLabel(t *testing.T) {
	assert.Equal(t, "Monday", DayLabel(0))
	assert.Equal(t, "Sunday", DayLabel(6))
	assert.Equal(t, "day 9", DayLabel(8))
}
