package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HourRange is an inclusive [Start, End] range of hour indexes.
type HourRange struct {
	Start int `json:"start" validate:"min=0"`
	End   int `json:"end" validate:"gtefield=Start"`
}

// Value implements driver.Valuer.
func (r *HourRange) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	payload, err := json.Marshal(*r)
	if err != nil {
		return nil, fmt.Errorf("marshal hour range: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner.
func (r *HourRange) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported hour range type %T", src)
	}
}

// ClassSection is a group of students that follows one curriculum.
type ClassSection struct {
	ID           string           `db:"id" json:"id" validate:"required"`
	Name         string           `db:"name" json:"name" validate:"required"`
	Level        string           `db:"level" json:"level"`
	Availability AvailabilityGrid `db:"availability" json:"availability"`
	// ActiveHourRange is only consulted when Availability has no UNAVAILABLE markers.
	ActiveHourRange *HourRange              `db:"active_hour_range" json:"active_hour_range,omitempty"`
	Curriculum      []CurriculumRequirement `db:"-" json:"curriculum" validate:"dive"`
	CreatedAt       time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time               `db:"updated_at" json:"updated_at"`
}

// CurriculumRequirement is the weekly teaching demand for one lesson of one class.
type CurriculumRequirement struct {
	ID          string `db:"id" json:"id"`
	ClassID     string `db:"class_id" json:"class_id"`
	TeacherID   string `db:"teacher_id" json:"teacher_id" validate:"required"`
	LessonName  string `db:"lesson_name" json:"lesson_name" validate:"required"`
	WeeklyHours int    `db:"weekly_hours" json:"weekly_hours" validate:"required,min=1"`
	Position    int    `db:"position" json:"-"`
}

// Room is a physical teaching space.
type Room struct {
	ID           string           `db:"id" json:"id" validate:"required"`
	Name         string           `db:"name" json:"name" validate:"required"`
	Capacity     int              `db:"capacity" json:"capacity" validate:"min=0"`
	Availability AvailabilityGrid `db:"availability" json:"availability"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}
