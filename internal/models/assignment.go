package models

import (
	"fmt"
	"time"
)

// Assignment places one lesson hour of a class with a teacher at (day, hour[, room]).
type Assignment struct {
	ID         string    `db:"id" json:"id"`
	LessonName string    `db:"lesson_name" json:"lesson_name"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	Day        int       `db:"day" json:"day"`
	Hour       int       `db:"hour" json:"hour"`
	RoomID     *string   `db:"room_id" json:"room_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Room returns the room id or "" when the assignment has none.
func (a Assignment) Room() string {
	if a.RoomID == nil {
		return ""
	}
	return *a.RoomID
}

// Ordinal orders assignments chronologically across the week.
func (a Assignment) Ordinal() int {
	return a.Day*24 + a.Hour
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	ClassID   string
	TeacherID string
	RoomID    string
	Day       *int
}

// Conflict dimensions.
const (
	ConflictTeacher = "TEACHER"
	ConflictClass   = "CLASS"
	ConflictRoom    = "ROOM"
)

// ScheduleConflict describes an existing assignment that collides with a candidate.
type ScheduleConflict struct {
	AssignmentID string `json:"assignment_id"`
	ClassID      string `json:"class_id"`
	TeacherID    string `json:"teacher_id"`
	LessonName   string `json:"lesson_name"`
	Day          int    `json:"day"`
	Hour         int    `json:"hour"`
	RoomID       string `json:"room_id,omitempty"`
	Dimension    string `json:"dimension"`
	Message      string `json:"message"`
}

// NewScheduleConflict builds a conflict record pointing at the existing assignment.
func NewScheduleConflict(dimension, message string, existing Assignment) ScheduleConflict {
	return ScheduleConflict{
		AssignmentID: existing.ID,
		ClassID:      existing.ClassID,
		TeacherID:    existing.TeacherID,
		LessonName:   existing.LessonName,
		Day:          existing.Day,
		Hour:         existing.Hour,
		RoomID:       existing.Room(),
		Dimension:    dimension,
		Message:      message,
	}
}

// ScheduleConflictError is returned when an edit collides with existing assignments.
type ScheduleConflictError struct {
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Conflict ScheduleConflict   `json:"conflict"`
	Errors   []ScheduleConflict `json:"errors,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Details exposes the collision records.
func (e *ScheduleConflictError) Details() interface{} {
	return e
}

// ConsecutiveRuleError is returned when an edit breaks the block rule and was not overridden.
type ConsecutiveRuleError struct {
	ClassID    string `json:"class_id"`
	LessonName string `json:"lesson_name"`
	Warning    string `json:"warning"`
}

// Error implements the error interface.
func (e *ConsecutiveRuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("consecutive lesson rule: %s", e.Warning)
}

// Details exposes the rule violation.
func (e *ConsecutiveRuleError) Details() interface{} {
	return e
}
