package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const snapshotCacheKey = "timetable:snapshot"

type snapshotRepository interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Replace(ctx context.Context, tx sqlx.ExtContext, snapshot *models.Snapshot) error
}

type snapshotAssignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) error
	DeleteOrphans(ctx context.Context, exec sqlx.ExtContext) (int64, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
}

// SnapshotService owns the school configuration the engine reads.
type SnapshotService struct {
	repo        snapshotRepository
	assignments snapshotAssignmentRepository
	tx          txProvider
	cache       *CacheService
	proposals   ProposalStore
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSnapshotService wires snapshot dependencies. cache may be nil.
func NewSnapshotService(
	repo snapshotRepository,
	assignments snapshotAssignmentRepository,
	tx txProvider,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SnapshotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{repo: repo, assignments: assignments, tx: tx, cache: cache, validator: validate, logger: logger}
}

// WithMetrics records snapshot load latency on the given collectors.
func (s *SnapshotService) WithMetrics(metrics *MetricsService) *SnapshotService {
	s.metrics = metrics
	return s
}

// WithProposals purges the given store whenever the configuration is replaced.
func (s *SnapshotService) WithProposals(proposals ProposalStore) *SnapshotService {
	s.proposals = proposals
	return s
}

// Current returns the stored configuration together with the live assignments. Entities are
// served from cache when possible; assignments always come from the database.
func (s *SnapshotService) Current(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := s.entities(ctx)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.List(ctx, models.AssignmentFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	snapshot.Assignments = assignments
	return snapshot, nil
}

func (s *SnapshotService) entities(ctx context.Context) (*models.Snapshot, error) {
	var cached models.Snapshot
	if hit, _ := s.cache.Get(ctx, snapshotCacheKey, &cached); hit {
		return &cached, nil
	}
	start := time.Now()
	snapshot, err := s.repo.Load(ctx)
	s.metrics.ObserveDBQuery("snapshot_load", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	_ = s.cache.Set(ctx, snapshotCacheKey, snapshot, 0)
	return snapshot, nil
}

// Import validates and stores a snapshot in one transaction. When the snapshot carries
// assignments they replace the timetable; otherwise assignments pointing at removed entities
// are dropped and the rest are kept.
func (s *SnapshotService) Import(ctx context.Context, snapshot *models.Snapshot) (*dto.SnapshotImportResponse, error) {
	if snapshot == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "snapshot payload is required")
	}
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Replace(ctx, tx, snapshot); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store snapshot")
		return nil, err
	}

	resp := &dto.SnapshotImportResponse{
		Teachers: len(snapshot.Teachers),
		Classes:  len(snapshot.Classes),
		Rooms:    len(snapshot.Rooms),
	}
	for _, class := range snapshot.Classes {
		resp.Requirements += len(class.Curriculum)
	}

	if snapshot.Assignments != nil {
		if err = s.assignments.DeleteAll(ctx, tx); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignments")
			return nil, err
		}
		if err = s.assignments.BulkCreate(ctx, tx, snapshot.Assignments); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store assignments")
			return nil, err
		}
		resp.Assignments = len(snapshot.Assignments)
	} else {
		var removed int64
		removed, err = s.assignments.DeleteOrphans(ctx, tx)
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune assignments")
			return nil, err
		}
		resp.RemovedAssignments = removed
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit snapshot")
		return nil, err
	}

	_ = s.cache.Delete(ctx, snapshotCacheKey)
	// proposals were solved against the previous configuration
	if s.proposals != nil {
		if purgeErr := s.proposals.Purge(ctx); purgeErr != nil {
			s.logger.Warn("failed to purge proposals after import", zap.Error(purgeErr))
		}
	}
	s.logger.Info("snapshot imported",
		zap.Int("teachers", resp.Teachers),
		zap.Int("classes", resp.Classes),
		zap.Int("rooms", resp.Rooms),
		zap.Int("requirements", resp.Requirements),
		zap.Int64("removed_assignments", resp.RemovedAssignments),
	)
	return resp, nil
}

// Validate checks a snapshot for structural and referential problems.
func (s *SnapshotService) Validate(snapshot *models.Snapshot) error {
	if err := s.validator.Struct(snapshot); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid snapshot payload")
	}
	if problems := ValidateSnapshot(snapshot); len(problems) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid snapshot: "+strings.Join(problems, "; "))
	}
	return nil
}

// ValidateSnapshot returns every referential problem found in the snapshot.
func ValidateSnapshot(snapshot *models.Snapshot) []string {
	var problems []string
	cal := snapshot.Calendar
	if len(cal.DaySlots) != cal.DaysInWeek {
		problems = append(problems, fmt.Sprintf("calendar declares %d days but lists slots for %d", cal.DaysInWeek, len(cal.DaySlots)))
	}

	teachers := make(map[string]*models.Teacher, len(snapshot.Teachers))
	for i := range snapshot.Teachers {
		t := &snapshot.Teachers[i]
		if _, dup := teachers[t.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate teacher id %s", t.ID))
		}
		teachers[t.ID] = t
		problems = append(problems, gridProblems("teacher "+t.ID, t.Availability)...)
	}

	rooms := make(map[string]struct{}, len(snapshot.Rooms))
	for _, r := range snapshot.Rooms {
		if _, dup := rooms[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate room id %s", r.ID))
		}
		rooms[r.ID] = struct{}{}
		problems = append(problems, gridProblems("room "+r.ID, r.Availability)...)
	}

	classes := make(map[string]struct{}, len(snapshot.Classes))
	for _, c := range snapshot.Classes {
		if _, dup := classes[c.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate class id %s", c.ID))
		}
		classes[c.ID] = struct{}{}
		problems = append(problems, gridProblems("class "+c.ID, c.Availability)...)
		if r := c.ActiveHourRange; r != nil && (r.Start < 0 || r.End < r.Start) {
			problems = append(problems, fmt.Sprintf("class %s has an invalid active hour range", c.ID))
		}
		for _, req := range c.Curriculum {
			if req.ClassID != "" && req.ClassID != c.ID {
				problems = append(problems, fmt.Sprintf("class %s lists a requirement of class %s", c.ID, req.ClassID))
			}
			teacher, ok := teachers[req.TeacherID]
			if !ok {
				problems = append(problems, fmt.Sprintf("class %s: unknown teacher %s for %s", c.ID, req.TeacherID, req.LessonName))
				continue
			}
			if !teacher.TaughtLessons.Has(req.LessonName) {
				problems = append(problems, fmt.Sprintf("class %s: teacher %s does not teach %s", c.ID, req.TeacherID, req.LessonName))
			}
		}
	}

	for i, a := range snapshot.Assignments {
		if _, ok := teachers[a.TeacherID]; !ok {
			problems = append(problems, fmt.Sprintf("assignment %d: unknown teacher %s", i, a.TeacherID))
		}
		if _, ok := classes[a.ClassID]; !ok {
			problems = append(problems, fmt.Sprintf("assignment %d: unknown class %s", i, a.ClassID))
		}
		if room := a.Room(); room != "" {
			if _, ok := rooms[room]; !ok {
				problems = append(problems, fmt.Sprintf("assignment %d: unknown room %s", i, room))
			}
		}
		if !cal.Valid(a.Day, a.Hour) {
			problems = append(problems, fmt.Sprintf("assignment %d: %s hour %d is outside the calendar", i, timetable.DayLabel(a.Day), a.Hour+1))
		}
		if conflict := timetable.CheckConflict(a, snapshot.Assignments[:i], snapshot); conflict != nil {
			problems = append(problems, fmt.Sprintf("assignment %d: %s", i, conflict.Message))
		}
	}
	return problems
}

// gridProblems reports unknown statuses in day then hour order.
func gridProblems(owner string, grid models.AvailabilityGrid) []string {
	var problems []string
	for _, day := range sortedKeys(grid) {
		hours := grid[day]
		for _, hour := range sortedKeys(hours) {
			if status := hours[hour]; !status.Valid() {
				problems = append(problems, fmt.Sprintf("%s: unknown availability %q at day %d hour %d", owner, status, day, hour))
			}
		}
	}
	return problems
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
