package timetable

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func testCalendar(days, slots int) models.CalendarConfig {
	cal := models.CalendarConfig{DaysInWeek: days, DaySlots: make([][]models.TimeRange, days)}
	for d := 0; d < days; d++ {
		for h := 0; h < slots; h++ {
			cal.DaySlots[d] = append(cal.DaySlots[d], models.TimeRange{
				Start: fmt.Sprintf("%02d:00", 7+h),
				End:   fmt.Sprintf("%02d:45", 7+h),
			})
		}
	}
	return cal
}

// onlyOpen marks every hour UNAVAILABLE except the listed (day, hour) pairs.
func onlyOpen(cal models.CalendarConfig, open ...[2]int) models.AvailabilityGrid {
	grid := models.AvailabilityGrid{}
	for d := 0; d < cal.DaysInWeek; d++ {
		for h := 0; h < cal.SlotCount(d); h++ {
			grid.Set(d, h, models.StatusUnavailable)
		}
	}
	for _, slot := range open {
		grid.Set(slot[0], slot[1], models.StatusAvailable)
	}
	return grid
}

func curriculum(classID string, reqs ...models.CurriculumRequirement) []models.CurriculumRequirement {
	for i := range reqs {
		reqs[i].ClassID = classID
		if reqs[i].ID == "" {
			reqs[i].ID = fmt.Sprintf("%s-req-%d", classID, i)
		}
		reqs[i].Position = i
	}
	return reqs
}

// randomSnapshot builds a school of moderate size with random preferences.
func randomSnapshot(rng *rand.Rand) models.Snapshot {
	days := 4 + rng.Intn(2)
	cal := models.CalendarConfig{DaysInWeek: days, DaySlots: make([][]models.TimeRange, days)}
	for d := 0; d < days; d++ {
		slots := 5 + rng.Intn(3)
		for h := 0; h < slots; h++ {
			cal.DaySlots[d] = append(cal.DaySlots[d], models.TimeRange{Start: "07:00", End: "07:45"})
		}
	}

	randomGrid := func() models.AvailabilityGrid {
		grid := models.AvailabilityGrid{}
		for d := 0; d < days; d++ {
			for h := 0; h < cal.SlotCount(d); h++ {
				switch roll := rng.Intn(10); {
				case roll == 0:
					grid.Set(d, h, models.StatusUnavailable)
				case roll < 3:
					grid.Set(d, h, models.StatusPreferred)
				}
			}
		}
		return grid
	}

	snapshot := models.Snapshot{Calendar: cal}
	lessons := []string{"Math", "Physics", "Biology", "History", "English", "Art"}
	for i := 0; i < 4; i++ {
		snapshot.Teachers = append(snapshot.Teachers, models.Teacher{
			ID:            fmt.Sprintf("t%d", i),
			Name:          fmt.Sprintf("Teacher %d", i),
			TaughtLessons: models.LessonSet(lessons),
			Availability:  randomGrid(),
		})
	}
	for i := 0; i < 2+rng.Intn(2); i++ {
		snapshot.Rooms = append(snapshot.Rooms, models.Room{
			ID:           fmt.Sprintf("r%d", i),
			Name:         fmt.Sprintf("Room %d", i),
			Availability: randomGrid(),
		})
	}
	for i := 0; i < 4; i++ {
		classID := fmt.Sprintf("c%d", i)
		var reqs []models.CurriculumRequirement
		for j, lesson := range rng.Perm(len(lessons))[:2+rng.Intn(3)] {
			reqs = append(reqs, models.CurriculumRequirement{
				ID:          fmt.Sprintf("%s-%d", classID, j),
				TeacherID:   fmt.Sprintf("t%d", rng.Intn(4)),
				LessonName:  lessons[lesson],
				WeeklyHours: 1 + rng.Intn(3),
			})
		}
		snapshot.Classes = append(snapshot.Classes, models.ClassSection{
			ID:           classID,
			Name:         fmt.Sprintf("Class %d", i),
			Availability: randomGrid(),
			Curriculum:   curriculum(classID, reqs...),
		})
	}
	return snapshot
}

// requireExclusive fails when two assignments share a teacher, class or room at the same hour.
func requireExclusive(t *testing.T, assignments []models.Assignment) {
	t.Helper()
	seen := make(map[string]models.Assignment)
	for _, a := range assignments {
		for _, key := range assignmentKeys(a) {
			prev, dup := seen[key]
			require.Falsef(t, dup, "double booking on %s: %+v and %+v", key, prev, a)
			seen[key] = a
		}
	}
}

// requireContiguous fails when a lesson's hours are spread over days or have gaps.
func requireContiguous(t *testing.T, assignments []models.Assignment) {
	t.Helper()
	blocks := make(map[groupKey][]models.Assignment)
	for _, a := range assignments {
		key := groupKey{classID: a.ClassID, lessonName: a.LessonName, teacherID: a.TeacherID}
		blocks[key] = append(blocks[key], a)
	}
	for key, block := range blocks {
		day := block[0].Day
		lo, hi := block[0].Hour, block[0].Hour
		hours := make(map[int]bool)
		for _, a := range block {
			require.Equalf(t, day, a.Day, "block %+v spans days", key)
			require.Falsef(t, hours[a.Hour], "block %+v repeats hour %d", key, a.Hour)
			hours[a.Hour] = true
			if a.Hour < lo {
				lo = a.Hour
			}
			if a.Hour > hi {
				hi = a.Hour
			}
		}
		require.Equalf(t, len(block)-1, hi-lo, "block %+v is not contiguous", key)
	}
}

// requireAvailable fails when an assignment sits on an UNAVAILABLE hour of its teacher, class or room.
func requireAvailable(t *testing.T, snapshot models.Snapshot, assignments []models.Assignment) {
	t.Helper()
	for _, a := range assignments {
		teacher, ok := snapshot.TeacherByID(a.TeacherID)
		require.True(t, ok)
		require.NotEqual(t, models.StatusUnavailable, teacher.Availability.Status(a.Day, a.Hour))
		class, ok := snapshot.ClassByID(a.ClassID)
		require.True(t, ok)
		require.NotEqual(t, models.StatusUnavailable, class.Availability.Status(a.Day, a.Hour))
		if room := a.Room(); room != "" {
			r, ok := snapshot.RoomByID(room)
			require.True(t, ok)
			require.NotEqual(t, models.StatusUnavailable, r.Availability.Status(a.Day, a.Hour))
		}
		require.True(t, snapshot.Calendar.Valid(a.Day, a.Hour))
	}
}
