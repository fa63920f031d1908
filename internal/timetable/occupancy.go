package timetable

import (
	"strconv"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// occupancy is the set of consumed t-/c-/r- keys.
type occupancy map[string]struct{}

func occupancyKey(prefix, id string, day, hour int) string {
	return prefix + "-" + id + "-" + strconv.Itoa(day) + "-" + strconv.Itoa(hour)
}

func teacherKey(id string, day, hour int) string { return occupancyKey("t", id, day, hour) }
func classKey(id string, day, hour int) string   { return occupancyKey("c", id, day, hour) }
func roomKey(id string, day, hour int) string    { return occupancyKey("r", id, day, hour) }

// assignmentKeys returns the keys an assignment consumes.
func assignmentKeys(a models.Assignment) []string {
	keys := []string{
		teacherKey(a.TeacherID, a.Day, a.Hour),
		classKey(a.ClassID, a.Day, a.Hour),
	}
	if room := a.Room(); room != "" {
		keys = append(keys, roomKey(room, a.Day, a.Hour))
	}
	return keys
}

func slotKeys(group *LessonGroup, slot Slot) []string {
	keys := []string{
		teacherKey(group.TeacherID, slot.Day, slot.Hour),
		classKey(group.ClassID, slot.Day, slot.Hour),
	}
	if slot.RoomID != "" {
		keys = append(keys, roomKey(slot.RoomID, slot.Day, slot.Hour))
	}
	return keys
}

func seedOccupancy(assignments []models.Assignment) occupancy {
	occ := make(occupancy, len(assignments)*3)
	for _, a := range assignments {
		for _, key := range assignmentKeys(a) {
			occ[key] = struct{}{}
		}
	}
	return occ
}

func (o occupancy) has(key string) bool {
	_, ok := o[key]
	return ok
}

// claim takes every key of the candidate or none of them.
func (o occupancy) claim(group *LessonGroup, candidate BlockCandidate) ([]string, bool) {
	keys := make([]string, 0, len(candidate.Slots)*3)
	for _, slot := range candidate.Slots {
		for _, key := range slotKeys(group, slot) {
			if o.has(key) {
				return nil, false
			}
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		o[key] = struct{}{}
	}
	return keys, true
}

func (o occupancy) release(keys []string) {
	for _, key := range keys {
		delete(o, key)
	}
}

func (o occupancy) clone() occupancy {
	cp := make(occupancy, len(o))
	for key := range o {
		cp[key] = struct{}{}
	}
	return cp
}
