package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TimeRange is the wall-clock span of one lesson hour, e.g. "07:30"-"08:15".
type TimeRange struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// CalendarConfig describes the school week. Hour indexes are relative to each day's slot list,
// and slot counts may differ per day.
type CalendarConfig struct {
	DaysInWeek int           `json:"days_in_week" validate:"required,min=1,max=7"`
	DaySlots   [][]TimeRange `json:"day_slots" validate:"required,dive,dive"`
}

// SlotCount returns the number of lesson hours on the given day.
func (c CalendarConfig) SlotCount(day int) int {
	if day < 0 || day >= c.DaysInWeek || day >= len(c.DaySlots) {
		return 0
	}
	return len(c.DaySlots[day])
}

// MaxSlots returns the longest day's slot count.
func (c CalendarConfig) MaxSlots() int {
	longest := 0
	for day := 0; day < c.DaysInWeek; day++ {
		if n := c.SlotCount(day); n > longest {
			longest = n
		}
	}
	return longest
}

// Valid reports whether (day, hour) is inside the calendar.
func (c CalendarConfig) Valid(day, hour int) bool {
	return hour >= 0 && hour < c.SlotCount(day)
}

// TimeRangeAt returns the configured time range for (day, hour).
func (c CalendarConfig) TimeRangeAt(day, hour int) (TimeRange, bool) {
	if !c.Valid(day, hour) {
		return TimeRange{}, false
	}
	return c.DaySlots[day][hour], true
}

// Value implements driver.Valuer.
func (c CalendarConfig) Value() (driver.Value, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal calendar config: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner.
func (c *CalendarConfig) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = CalendarConfig{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported calendar config type %T", src)
	}
	return json.Unmarshal(raw, c)
}
