package timetable

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Directory resolves display names for conflict messages. models.Snapshot satisfies it.
type Directory interface {
	TeacherName(id string) string
	ClassName(id string) string
	RoomName(id string) string
}

type idDirectory struct{}

func (idDirectory) TeacherName(id string) string { return id }
func (idDirectory) ClassName(id string) string   { return id }
func (idDirectory) RoomName(id string) string    { return id }

var dayLabels = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayLabel returns the weekday name for a zero-based day index.
func DayLabel(day int) string {
	if day >= 0 && day < len(dayLabels) {
		return dayLabels[day]
	}
	return fmt.Sprintf("day %d", day+1)
}

// Conflict is a hard collision between a candidate and an existing assignment.
type Conflict struct {
	Dimension string
	Existing  models.Assignment
	Message   string
}

// ScheduleConflict converts the collision into its API representation.
func (c *Conflict) ScheduleConflict() models.ScheduleConflict {
	return models.NewScheduleConflict(c.Dimension, c.Message, c.Existing)
}

// CheckConflict returns the first existing assignment sharing the candidate's teacher, class or
// room at the same (day, hour), or nil. Existing records with the candidate's ID are skipped so a
// moved assignment never collides with itself.
func CheckConflict(candidate models.Assignment, existing []models.Assignment, names Directory) *Conflict {
	if names == nil {
		names = idDirectory{}
	}
	when := fmt.Sprintf("%s hour %d", DayLabel(candidate.Day), candidate.Hour+1)
	room := candidate.Room()
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.Day != candidate.Day || other.Hour != candidate.Hour {
			continue
		}
		switch {
		case other.TeacherID == candidate.TeacherID:
			return &Conflict{
				Dimension: models.ConflictTeacher,
				Existing:  other,
				Message: fmt.Sprintf("teacher %s already teaches %s in class %s on %s",
					names.TeacherName(other.TeacherID), other.LessonName, names.ClassName(other.ClassID), when),
			}
		case other.ClassID == candidate.ClassID:
			return &Conflict{
				Dimension: models.ConflictClass,
				Existing:  other,
				Message: fmt.Sprintf("class %s already has %s with %s on %s",
					names.ClassName(other.ClassID), other.LessonName, names.TeacherName(other.TeacherID), when),
			}
		case room != "" && other.Room() == room:
			return &Conflict{
				Dimension: models.ConflictRoom,
				Existing:  other,
				Message: fmt.Sprintf("room %s is already used by class %s on %s",
					names.RoomName(room), names.ClassName(other.ClassID), when),
			}
		}
	}
	return nil
}

// CheckConflicts returns every collision of the candidate, in existing order.
func CheckConflicts(candidate models.Assignment, existing []models.Assignment, names Directory) []*Conflict {
	var conflicts []*Conflict
	for i := range existing {
		if c := CheckConflict(candidate, existing[i:i+1], names); c != nil {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// RuleResult is the outcome of the advisory consecutive-lesson rule.
type RuleResult struct {
	Valid   bool   `json:"valid"`
	Warning string `json:"warning,omitempty"`
}

// CheckConsecutiveLessonsRule checks the placed sessions of the candidate's (class, lesson) plus
// the candidate itself. Even weekly hours need one day holding exactly two adjacent sessions; odd
// weekly hours need the two earliest sessions to be adjacent on the same day. The result is
// advisory and never blocks on its own.
func CheckConsecutiveLessonsRule(candidate models.Assignment, sameClass []models.Assignment, weeklyHours int) RuleResult {
	if weeklyHours < 2 {
		return RuleResult{Valid: true}
	}

	sessions := []models.Assignment{candidate}
	for _, a := range sameClass {
		if a.ClassID != candidate.ClassID || a.LessonName != candidate.LessonName {
			continue
		}
		if candidate.ID != "" && a.ID == candidate.ID {
			continue
		}
		sessions = append(sessions, a)
	}
	if len(sessions) < 2 {
		return RuleResult{Valid: true}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Ordinal() < sessions[j].Ordinal()
	})

	if weeklyHours%2 == 0 {
		byDay := make(map[int][]models.Assignment)
		for _, s := range sessions {
			byDay[s.Day] = append(byDay[s.Day], s)
		}
		for _, daySessions := range byDay {
			if len(daySessions) == 2 && adjacent(daySessions[0], daySessions[1]) {
				return RuleResult{Valid: true}
			}
		}
		return RuleResult{
			Warning: fmt.Sprintf("%s needs two consecutive hours on one day; no day has an adjacent pair", candidate.LessonName),
		}
	}

	if adjacent(sessions[0], sessions[1]) {
		return RuleResult{Valid: true}
	}
	return RuleResult{
		Warning: fmt.Sprintf("the first two %s sessions of the week should be consecutive hours on the same day", candidate.LessonName),
	}
}

func adjacent(a, b models.Assignment) bool {
	if a.Day != b.Day {
		return false
	}
	diff := a.Hour - b.Hour
	return diff == 1 || diff == -1
}
