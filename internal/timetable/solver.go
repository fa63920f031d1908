package timetable

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Solver runs the assignment engine over snapshots.
type Solver struct {
	logger   *zap.Logger
	defaults Options
}

// NewSolver constructs a Solver. Zero Seed, MaxSteps and OnState in per-call options fall back
// to defaults; ClearExisting and GreedyFill are always taken from the call.
func NewSolver(logger *zap.Logger, defaults Options) *Solver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{logger: logger, defaults: defaults}
}

func (s *Solver) merge(opts Options) Options {
	if opts.Seed == 0 {
		opts.Seed = s.defaults.Seed
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = s.defaults.MaxSteps
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.OnState == nil {
		opts.OnState = s.defaults.OnState
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return opts
}

// Solve places the snapshot's curriculum. It returns ErrNothingToAssign when no class carries a
// curriculum requirement. Infeasibility is never an error: the result then holds the best partial
// placement and the exact unassigned requirements. When ctx is cancelled the partial result is
// returned together with the context error; a context deadline only truncates the search.
func (s *Solver) Solve(ctx context.Context, snapshot models.Snapshot, opts Options) (*Result, error) {
	opts = s.merge(opts)
	started := time.Now()

	groups := ExpandRequirements(snapshot.Classes)
	total := CountRequirements(groups)
	if total == 0 {
		return nil, appErrors.ErrNothingToAssign
	}

	notify(opts, StatusPending)
	notify(opts, StatusSolving)

	rng := rand.New(rand.NewSource(opts.Seed))

	var kept []models.Assignment
	if !opts.ClearExisting {
		kept = snapshot.Assignments
	}
	occupied := seedOccupancy(kept)

	generator := newCandidateGenerator(snapshot, occupied)
	live := make([]*LessonGroup, 0, len(groups))
	var dead []*LessonGroup
	for i := range groups {
		group := &groups[i]
		group.candidates = generator.generate(group, rng)
		group.priority = rng.Float64()
		if len(group.candidates) == 0 {
			dead = append(dead, group)
			continue
		}
		live = append(live, group)
	}
	orderGroups(live)

	frame := newSearchFrame(ctx, live, occupied.clone(), opts.MaxSteps)
	complete := frame.run()

	assigned := make([]models.Assignment, 0, total)
	assigned = append(assigned, frame.best...)
	var leftover []*LessonGroup
	greedyHits := 0
	if !complete {
		leftover = frame.unplaced()
		if opts.GreedyFill && len(leftover) > 0 {
			state := occupied.clone()
			for _, a := range assigned {
				for _, key := range assignmentKeys(a) {
					state[key] = struct{}{}
				}
			}
			extra, rest := greedyFill(state, leftover)
			greedyHits = len(leftover) - len(rest)
			assigned = append(assigned, extra...)
			leftover = rest
		}
	}

	unassigned := make([]AtomicRequirement, 0)
	for _, group := range leftover {
		unassigned = append(unassigned, group.Units...)
	}
	for _, group := range dead {
		unassigned = append(unassigned, group.Units...)
	}

	for i := range assigned {
		assigned[i].ID = uuid.NewString()
	}

	status := StatusSolved
	if len(unassigned) > 0 {
		status = StatusPartialSolved
	}

	result := &Result{
		Status:     status,
		Assigned:   assigned,
		Unassigned: unassigned,
		Stats: Stats{
			Groups:     len(groups),
			DeadGroups: len(dead),
			Steps:      frame.steps,
			BestDepth:  frame.bestDepth,
			GreedyHits: greedyHits,
			Score:      scoreAssignments(snapshot, assigned),
			Seed:       opts.Seed,
			Duration:   time.Since(started),
		},
	}

	var err error
	switch {
	case errors.Is(frame.stopErr, errBudgetExhausted), errors.Is(frame.stopErr, context.DeadlineExceeded):
		result.Stats.Truncated = true
		s.logger.Warn("timetable search truncated",
			zap.Int("steps", frame.steps),
			zap.Int("max_steps", opts.MaxSteps),
			zap.Int("best_depth", frame.bestDepth),
			zap.Error(frame.stopErr),
		)
	case errors.Is(frame.stopErr, context.Canceled):
		result.Stats.Cancelled = true
		err = fmt.Errorf("timetable solve cancelled: %w", frame.stopErr)
	}

	notify(opts, status)
	s.logger.Info("timetable solve finished",
		zap.String("status", string(status)),
		zap.Int("requirements", total),
		zap.Int("assigned", len(assigned)),
		zap.Int("unassigned", len(unassigned)),
		zap.Int("groups", len(groups)),
		zap.Int("dead_groups", len(dead)),
		zap.Int("steps", frame.steps),
		zap.Int64("seed", opts.Seed),
		zap.Duration("duration", result.Stats.Duration),
	)
	return result, err
}

func notify(opts Options, status Status) {
	if opts.OnState != nil {
		opts.OnState(status)
	}
}

// orderGroups puts the most constrained groups first, then larger blocks, then a random priority.
func orderGroups(groups []*LessonGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if len(a.candidates) != len(b.candidates) {
			return len(a.candidates) < len(b.candidates)
		}
		if a.BlockSize != b.BlockSize {
			return a.BlockSize > b.BlockSize
		}
		return a.priority < b.priority
	})
}

func scoreAssignments(snapshot models.Snapshot, assignments []models.Assignment) int {
	total := 0
	for _, a := range assignments {
		if t, ok := snapshot.TeacherByID(a.TeacherID); ok {
			score, _ := statusScore(t.Availability.Status(a.Day, a.Hour))
			total += score
		}
		if c, ok := snapshot.ClassByID(a.ClassID); ok {
			score, _ := statusScore(c.Availability.Status(a.Day, a.Hour))
			total += score
		}
		if room := a.Room(); room != "" {
			if r, ok := snapshot.RoomByID(room); ok {
				score, _ := statusScore(r.Availability.Status(a.Day, a.Hour))
				total += score
			}
		}
	}
	return total
}
