package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AvailabilityStatus is the weekly preference of a teacher, class or room for one hour.
type AvailabilityStatus string

const (
	StatusAvailable   AvailabilityStatus = "AVAILABLE"
	StatusPreferred   AvailabilityStatus = "PREFERRED"
	StatusUnavailable AvailabilityStatus = "UNAVAILABLE"
)

// Valid reports whether the status is one of the known values.
func (s AvailabilityStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusPreferred, StatusUnavailable:
		return true
	}
	return false
}

// AvailabilityGrid maps day -> hour -> status. Missing entries mean AVAILABLE.
type AvailabilityGrid map[int]map[int]AvailabilityStatus

// Status returns the status at (day, hour).
func (g AvailabilityGrid) Status(day, hour int) AvailabilityStatus {
	if g == nil {
		return StatusAvailable
	}
	hours, ok := g[day]
	if !ok {
		return StatusAvailable
	}
	status, ok := hours[hour]
	if !ok || status == "" {
		return StatusAvailable
	}
	return status
}

// Set stores a status, dropping AVAILABLE entries to keep the grid sparse.
func (g AvailabilityGrid) Set(day, hour int, status AvailabilityStatus) {
	if status == StatusAvailable || status == "" {
		if hours, ok := g[day]; ok {
			delete(hours, hour)
			if len(hours) == 0 {
				delete(g, day)
			}
		}
		return
	}
	if g[day] == nil {
		g[day] = make(map[int]AvailabilityStatus)
	}
	g[day][hour] = status
}

// HasUnavailable reports whether any hour is marked UNAVAILABLE.
func (g AvailabilityGrid) HasUnavailable() bool {
	for _, hours := range g {
		for _, status := range hours {
			if status == StatusUnavailable {
				return true
			}
		}
	}
	return false
}

// Value implements driver.Valuer so grids persist as JSON columns.
func (g AvailabilityGrid) Value() (driver.Value, error) {
	if g == nil {
		return `{}`, nil
	}
	payload, err := json.Marshal(map[int]map[int]AvailabilityStatus(g))
	if err != nil {
		return nil, fmt.Errorf("marshal availability grid: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner for JSON columns.
func (g *AvailabilityGrid) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = AvailabilityGrid{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported availability grid type %T", src)
	}
	if len(raw) == 0 {
		*g = AvailabilityGrid{}
		return nil
	}
	parsed := make(map[int]map[int]AvailabilityStatus)
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("unmarshal availability grid: %w", err)
	}
	*g = parsed
	return nil
}
