package timetable

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestExpandRequirementsGroupsByClassLessonTeacher(t *testing.T) {
	classes := []models.ClassSection{
		{ID: "c1", Curriculum: []models.CurriculumRequirement{
			{TeacherID: "t1", LessonName: "Math", WeeklyHours: 2},
			{TeacherID: "t2", LessonName: "Art", WeeklyHours: 1},
			{TeacherID: "t1", LessonName: "Math", WeeklyHours: 1},
			{TeacherID: "t3", LessonName: "Music", WeeklyHours: 0},
		}},
		{ID: "c2"},
		{ID: "c3", Curriculum: []models.CurriculumRequirement{{ClassID: "c3", TeacherID: "t1", LessonName: "Math", WeeklyHours: 2}}},
	}

	groups := ExpandRequirements(classes)
	require.Len(t, groups, 3)

	assert.Equal(t, "c1", groups[0].ClassID)
	assert.Equal(t, "Math", groups[0].LessonName)
	assert.Equal(t, 3, groups[0].BlockSize)
	assert.Len(t, groups[0].Units, 3)
	assert.Equal(t, "Art", groups[1].LessonName)
	assert.Equal(t, 1, groups[1].BlockSize)
	assert.Equal(t, "c3", groups[2].ClassID)
	assert.Equal(t, 6, CountRequirements(groups))
}

func TestActiveWindow(t *testing.T) {
	cal := testCalendar(3, 8)

	class := &models.ClassSection{}
	start, end, ok := activeWindow(class, cal)
	require.True(t, ok)
	assert.Equal(t, []int{0, 7}, []int{start, end})

	class.ActiveHourRange = &models.HourRange{Start: 1, End: 4}
	start, end, ok = activeWindow(class, cal)
	require.True(t, ok)
	assert.Equal(t, []int{1, 4}, []int{start, end})

	// an UNAVAILABLE marker takes precedence over the explicit range
	class.Availability = onlyOpen(cal, [2]int{0, 2}, [2]int{2, 6})
	start, end, ok = activeWindow(class, cal)
	require.True(t, ok)
	assert.Equal(t, []int{2, 6}, []int{start, end})

	class.Availability = onlyOpen(cal)
	_, _, ok = activeWindow(class, cal)
	assert.False(t, ok)
}

func newTestGenerator(snapshot models.Snapshot) *candidateGenerator {
	return newCandidateGenerator(snapshot, seedOccupancy(snapshot.Assignments))
}

func TestGenerateSingleSlotsAreScoredAndSorted(t *testing.T) {
	cal := testCalendar(2, 3)
	teacher := models.AvailabilityGrid{}
	teacher.Set(1, 1, models.StatusPreferred)
	teacher.Set(0, 2, models.StatusUnavailable)
	snapshot := models.Snapshot{
		Calendar: cal,
		Teachers: []models.Teacher{{ID: "t1", Availability: teacher}},
		Classes:  []models.ClassSection{{ID: "c1", Curriculum: curriculum("c1", models.CurriculumRequirement{TeacherID: "t1", LessonName: "Math", WeeklyHours: 1})}},
		Assignments: []models.Assignment{
			{ID: "a1", TeacherID: "t9", ClassID: "c1", LessonName: "Art", Day: 0, Hour: 0},
		},
	}
	groups := ExpandRequirements(snapshot.Classes)

	candidates := newTestGenerator(snapshot).generate(&groups[0], rand.New(rand.NewSource(1)))
	require.Len(t, candidates, 4)
	assert.Equal(t, Slot{Day: 1, Hour: 1, Score: 3}, candidates[0].Slots[0])
	for _, c := range candidates {
		require.Len(t, c.Slots, 1)
		assert.False(t, c.Slots[0].Day == 0 && c.Slots[0].Hour == 0, "occupied class hour offered")
		assert.False(t, c.Slots[0].Day == 0 && c.Slots[0].Hour == 2, "unavailable teacher hour offered")
		assert.Empty(t, c.Slots[0].RoomID)
	}
}

func TestGenerateClipsWindowToShortDays(t *testing.T) {
	cal := models.CalendarConfig{DaysInWeek: 2, DaySlots: [][]models.TimeRange{
		make([]models.TimeRange, 4),
		make([]models.TimeRange, 2),
	}}
	snapshot := models.Snapshot{
		Calendar: cal,
		Teachers: []models.Teacher{{ID: "t1"}},
		Classes:  []models.ClassSection{{ID: "c1", Curriculum: curriculum("c1", models.CurriculumRequirement{TeacherID: "t1", LessonName: "Math", WeeklyHours: 1})}},
	}
	groups := ExpandRequirements(snapshot.Classes)

	candidates := newTestGenerator(snapshot).generate(&groups[0], nil)
	assert.Len(t, candidates, 6)
	for _, c := range candidates {
		assert.True(t, cal.Valid(c.Slots[0].Day, c.Slots[0].Hour))
	}
}

func TestGenerateBlocksKeepTopThreeRoomsPerHour(t *testing.T) {
	cal := testCalendar(1, 2)
	var rooms []models.Room
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		rooms = append(rooms, models.Room{ID: id})
	}
	preferred := models.AvailabilityGrid{}
	preferred.Set(0, 0, models.StatusPreferred)
	preferred.Set(0, 1, models.StatusPreferred)
	rooms[4].Availability = preferred
	rooms[3].Availability = onlyOpen(cal)

	snapshot := models.Snapshot{
		Calendar: cal,
		Teachers: []models.Teacher{{ID: "t1"}},
		Classes:  []models.ClassSection{{ID: "c1", Curriculum: curriculum("c1", models.CurriculumRequirement{TeacherID: "t1", LessonName: "Math", WeeklyHours: 2})}},
		Rooms:    rooms,
	}
	groups := ExpandRequirements(snapshot.Classes)

	candidates := newTestGenerator(snapshot).generate(&groups[0], rand.New(rand.NewSource(1)))
	require.Len(t, candidates, 9)
	assert.Equal(t, 8, candidates[0].TotalScore)
	assert.Equal(t, "r5", candidates[0].Slots[0].RoomID)
	assert.Equal(t, "r5", candidates[0].Slots[1].RoomID)

	seen := map[string]bool{}
	for _, c := range candidates {
		require.Len(t, c.Slots, 2)
		assert.Equal(t, 0, c.Slots[0].Hour)
		assert.Equal(t, 1, c.Slots[1].Hour)
		for _, slot := range c.Slots {
			assert.NotEqual(t, "r4", slot.RoomID)
			assert.NotEqual(t, "r3", slot.RoomID)
		}
		sig := blockSignature(c.Slots)
		assert.False(t, seen[sig], "duplicate block %s", sig)
		seen[sig] = true
	}
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].TotalScore, candidates[i].TotalScore)
	}
}

func TestGenerateDeadGroups(t *testing.T) {
	cal := testCalendar(2, 2)
	snapshot := models.Snapshot{
		Calendar: cal,
		Teachers: []models.Teacher{{ID: "t1"}},
		Classes: []models.ClassSection{
			{ID: "c1", Curriculum: curriculum("c1",
				models.CurriculumRequirement{TeacherID: "missing", LessonName: "Math", WeeklyHours: 1},
				models.CurriculumRequirement{TeacherID: "t1", LessonName: "Art", WeeklyHours: 3},
			)},
			{ID: "c2", Availability: onlyOpen(cal), Curriculum: curriculum("c2", models.CurriculumRequirement{TeacherID: "t1", LessonName: "Math", WeeklyHours: 1})},
		},
	}
	groups := ExpandRequirements(snapshot.Classes)
	generator := newTestGenerator(snapshot)

	for i := range groups {
		assert.Emptyf(t, generator.generate(&groups[i], nil), "group %s/%s", groups[i].ClassID, groups[i].LessonName)
	}
	groups[0].ClassID = "unknown"
	assert.Empty(t, generator.generate(&groups[0], nil))
}

func TestOccupancyClaimIsAllOrNothing(t *testing.T) {
	occ := seedOccupancy([]models.Assignment{{TeacherID: "t1", ClassID: "c1", Day: 0, Hour: 1, RoomID: roomID("r1")}})
	group := &LessonGroup{ClassID: "c2", TeacherID: "t2"}

	_, ok := occ.claim(group, BlockCandidate{Slots: []Slot{{Day: 0, Hour: 0, RoomID: "r2"}, {Day: 0, Hour: 1, RoomID: "r1"}}})
	assert.False(t, ok)
	assert.False(t, occ.has(teacherKey("t2", 0, 0)))

	keys, ok := occ.claim(group, BlockCandidate{Slots: []Slot{{Day: 0, Hour: 0, RoomID: "r2"}, {Day: 0, Hour: 1, RoomID: "r2"}}})
	require.True(t, ok)
	assert.Len(t, keys, 6)
	assert.True(t, occ.has("r-r2-0-1"))

	occ.release(keys)
	assert.False(t, occ.has(classKey("c2", 0, 0)))
	assert.True(t, occ.has(roomKey("r1", 0, 1)))
}
