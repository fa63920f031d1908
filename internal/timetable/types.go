// Package timetable implements the automatic assignment engine: it expands curricula into
// lesson groups, scores feasible placements and searches for a conflict-free timetable,
// degrading to the best partial placement when no complete one exists.
package timetable

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Status is the lifecycle state of one solve.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusSolving       Status = "SOLVING"
	StatusSolved        Status = "SOLVED"
	StatusPartialSolved Status = "PARTIAL_SOLVED"
)

// AtomicRequirement is one weekly hour of a curriculum requirement.
type AtomicRequirement struct {
	ClassID    string `json:"class_id"`
	TeacherID  string `json:"teacher_id"`
	LessonName string `json:"lesson_name"`
}

type groupKey struct {
	classID    string
	lessonName string
	teacherID  string
}

// LessonGroup collects the atomic requirements of one (class, lesson, teacher) triple.
// The group is placed as a single block of BlockSize contiguous hours.
type LessonGroup struct {
	ClassID    string
	TeacherID  string
	LessonName string
	BlockSize  int
	Units      []AtomicRequirement

	candidates []BlockCandidate
	priority   float64
}

// Slot is one scored (day, hour, room) placement. RoomID is empty when the school has no rooms.
type Slot struct {
	Day    int    `json:"day"`
	Hour   int    `json:"hour"`
	RoomID string `json:"room_id,omitempty"`
	Score  int    `json:"score"`
}

// BlockCandidate is a full placement for a lesson group.
type BlockCandidate struct {
	Slots      []Slot `json:"slots"`
	TotalScore int    `json:"total_score"`
}

// DefaultMaxSteps bounds a solve when neither the solver nor the call sets a step cap.
const DefaultMaxSteps = 200000

// Options tune a single solve.
type Options struct {
	// ClearExisting discards the snapshot's assignments instead of treating them as occupied.
	ClearExisting bool
	// Seed fixes the random source; 0 picks a time-based seed.
	Seed int64
	// MaxSteps caps candidate attempts; 0 uses the solver default, then DefaultMaxSteps.
	MaxSteps int
	// GreedyFill tries to place groups left over after a partial search. Solver defaults never
	// override it.
	GreedyFill bool
	// OnState observes state transitions.
	OnState func(Status)
}

// Stats summarises a solve.
type Stats struct {
	Groups     int           `json:"groups"`
	DeadGroups int           `json:"dead_groups"`
	Steps      int           `json:"steps"`
	BestDepth  int           `json:"best_depth"`
	Truncated  bool          `json:"truncated"`
	Cancelled  bool          `json:"cancelled"`
	GreedyHits int           `json:"greedy_hits"`
	Score      int           `json:"score"`
	Seed       int64         `json:"seed"`
	Duration   time.Duration `json:"duration"`
}

// Result is a placement proposal. It is not committed state.
type Result struct {
	Status     Status              `json:"status"`
	Assigned   []models.Assignment `json:"assigned"`
	Unassigned []AtomicRequirement `json:"unassigned"`
	Stats      Stats               `json:"stats"`
}
