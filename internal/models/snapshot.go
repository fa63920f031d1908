package models

// Snapshot is everything the assignment engine reads for one solve.
type Snapshot struct {
	Calendar    CalendarConfig `json:"calendar" validate:"required"`
	Teachers    []Teacher      `json:"teachers" validate:"dive"`
	Classes     []ClassSection `json:"classes" validate:"dive"`
	Rooms       []Room         `json:"rooms" validate:"dive"`
	Assignments []Assignment   `json:"assignments,omitempty"`
}

// TeacherByID returns the teacher with id, if present.
func (s Snapshot) TeacherByID(id string) (*Teacher, bool) {
	for i := range s.Teachers {
		if s.Teachers[i].ID == id {
			return &s.Teachers[i], true
		}
	}
	return nil, false
}

// ClassByID returns the class with id, if present.
func (s Snapshot) ClassByID(id string) (*ClassSection, bool) {
	for i := range s.Classes {
		if s.Classes[i].ID == id {
			return &s.Classes[i], true
		}
	}
	return nil, false
}

// RoomByID returns the room with id, if present.
func (s Snapshot) RoomByID(id string) (*Room, bool) {
	for i := range s.Rooms {
		if s.Rooms[i].ID == id {
			return &s.Rooms[i], true
		}
	}
	return nil, false
}

// TeacherName resolves a display name, falling back to the id.
func (s Snapshot) TeacherName(id string) string {
	if t, ok := s.TeacherByID(id); ok && t.Name != "" {
		return t.Name
	}
	return id
}

// ClassName resolves a display name, falling back to the id.
func (s Snapshot) ClassName(id string) string {
	if c, ok := s.ClassByID(id); ok && c.Name != "" {
		return c.Name
	}
	return id
}

// RoomName resolves a display name, falling back to the id.
func (s Snapshot) RoomName(id string) string {
	if r, ok := s.RoomByID(id); ok && r.Name != "" {
		return r.Name
	}
	return id
}

// WeeklyHours returns the curriculum weekly hours for (classID, lessonName), summed across
// requirements with the same lesson, or 0 when none exist.
func (s Snapshot) WeeklyHours(classID, lessonName string) int {
	class, ok := s.ClassByID(classID)
	if !ok {
		return 0
	}
	total := 0
	for _, req := range class.Curriculum {
		if req.LessonName == lessonName {
			total += req.WeeklyHours
		}
	}
	return total
}
