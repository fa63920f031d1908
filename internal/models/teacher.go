package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LessonSet is the set of lesson names a teacher is able to teach.
type LessonSet []string

// Has reports whether the set contains lesson, ignoring case and surrounding spaces.
func (s LessonSet) Has(lesson string) bool {
	lesson = strings.TrimSpace(lesson)
	for _, item := range s {
		if strings.EqualFold(strings.TrimSpace(item), lesson) {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s LessonSet) Value() (driver.Value, error) {
	if s == nil {
		return `[]`, nil
	}
	payload, err := json.Marshal([]string(s))
	if err != nil {
		return nil, fmt.Errorf("marshal lesson set: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner.
func (s *LessonSet) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = LessonSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported lesson set type %T", src)
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("unmarshal lesson set: %w", err)
	}
	*s = items
	return nil
}

// Teacher represents an instructor and the lessons they may teach.
type Teacher struct {
	ID            string           `db:"id" json:"id" validate:"required"`
	Name          string           `db:"name" json:"name" validate:"required"`
	Code          string           `db:"code" json:"code"`
	TaughtLessons LessonSet        `db:"taught_lessons" json:"taught_lessons"`
	Availability  AvailabilityGrid `db:"availability" json:"availability"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}
