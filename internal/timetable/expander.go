package timetable

import "github.com/noah-isme/sma-timetable-api/internal/models"

// ExpandRequirements emits one AtomicRequirement per weekly hour and groups them by
// (class, lesson, teacher) in encounter order. Classes without curriculum contribute nothing.
//
// When two requirements share a key their hours are merged into one group, and the block size
// follows the merged unit count so every unit is accounted for by exactly one placed slot.
func ExpandRequirements(classes []models.ClassSection) []LessonGroup {
	index := make(map[groupKey]int)
	var groups []LessonGroup
	for _, class := range classes {
		for _, req := range class.Curriculum {
			if req.WeeklyHours < 1 {
				continue
			}
			classID := req.ClassID
			if classID == "" {
				classID = class.ID
			}
			key := groupKey{classID: classID, lessonName: req.LessonName, teacherID: req.TeacherID}
			pos, ok := index[key]
			if !ok {
				groups = append(groups, LessonGroup{
					ClassID:    classID,
					TeacherID:  req.TeacherID,
					LessonName: req.LessonName,
				})
				pos = len(groups) - 1
				index[key] = pos
			}
			for i := 0; i < req.WeeklyHours; i++ {
				groups[pos].Units = append(groups[pos].Units, AtomicRequirement{
					ClassID:    classID,
					TeacherID:  req.TeacherID,
					LessonName: req.LessonName,
				})
			}
			groups[pos].BlockSize = len(groups[pos].Units)
		}
	}
	return groups
}

// CountRequirements returns the total number of atomic requirements across groups.
func CountRequirements(groups []LessonGroup) int {
	total := 0
	for _, group := range groups {
		total += len(group.Units)
	}
	return total
}
