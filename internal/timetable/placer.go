package timetable

import (
	"context"
	"errors"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var errBudgetExhausted = errors.New("step budget exhausted")

// searchFrame owns all mutable state of one depth-first search. Nothing outside the frame
// touches occupied or stack while the search runs.
type searchFrame struct {
	ctx      context.Context
	groups   []*LessonGroup
	occupied occupancy
	stack    []models.Assignment

	bestDepth int
	best      []models.Assignment

	steps    int
	maxSteps int
	stopErr  error
}

func newSearchFrame(ctx context.Context, groups []*LessonGroup, occupied occupancy, maxSteps int) *searchFrame {
	return &searchFrame{
		ctx:       ctx,
		groups:    groups,
		occupied:  occupied,
		bestDepth: -1,
		maxSteps:  maxSteps,
	}
}

// run searches from the first group and reports whether every group was placed.
func (f *searchFrame) run() bool {
	if len(f.groups) == 0 {
		f.record(0)
		return true
	}
	return f.place(0)
}

func (f *searchFrame) place(i int) bool {
	if f.stopErr != nil {
		return false
	}
	if i == len(f.groups) {
		f.record(i)
		return true
	}
	if err := f.ctx.Err(); err != nil {
		f.stopErr = err
		f.record(i)
		return false
	}

	group := f.groups[i]
	if len(group.candidates) == 0 {
		f.record(i)
		return false
	}

	for _, candidate := range group.candidates {
		if f.maxSteps > 0 && f.steps >= f.maxSteps {
			f.stopErr = errBudgetExhausted
			break
		}
		f.steps++

		keys, ok := f.occupied.claim(group, candidate)
		if !ok {
			continue
		}
		mark := len(f.stack)
		f.stack = append(f.stack, materialize(group, candidate)...)

		if f.place(i + 1) {
			return true
		}

		f.stack = f.stack[:mark]
		f.occupied.release(keys)
		if f.stopErr != nil {
			break
		}
	}

	f.record(i)
	return false
}

// record keeps the deepest partial placement, preferring more assignments at equal depth.
func (f *searchFrame) record(depth int) {
	if depth < f.bestDepth {
		return
	}
	if depth == f.bestDepth && len(f.stack) <= len(f.best) {
		return
	}
	f.bestDepth = depth
	f.best = append(f.best[:0], f.stack...)
}

// unplaced returns the groups at or after the best recorded depth.
func (f *searchFrame) unplaced() []*LessonGroup {
	if f.bestDepth < 0 {
		return f.groups
	}
	return f.groups[f.bestDepth:]
}

func materialize(group *LessonGroup, candidate BlockCandidate) []models.Assignment {
	assignments := make([]models.Assignment, 0, len(candidate.Slots))
	for _, slot := range candidate.Slots {
		a := models.Assignment{
			LessonName: group.LessonName,
			TeacherID:  group.TeacherID,
			ClassID:    group.ClassID,
			Day:        slot.Day,
			Hour:       slot.Hour,
		}
		if slot.RoomID != "" {
			room := slot.RoomID
			a.RoomID = &room
		}
		assignments = append(assignments, a)
	}
	return assignments
}

// greedyFill places leftover groups on top of a partial result, first fitting candidate wins.
// It returns the newly placed assignments and the groups that still did not fit.
func greedyFill(occupied occupancy, groups []*LessonGroup) ([]models.Assignment, []*LessonGroup) {
	var placed []models.Assignment
	var rest []*LessonGroup
	for _, group := range groups {
		fitted := false
		for _, candidate := range group.candidates {
			if _, ok := occupied.claim(group, candidate); ok {
				placed = append(placed, materialize(group, candidate)...)
				fitted = true
				break
			}
		}
		if !fitted {
			rest = append(rest, group)
		}
	}
	return placed, rest
}
