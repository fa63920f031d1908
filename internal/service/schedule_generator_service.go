package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type snapshotProvider interface {
	Current(ctx context.Context) (*models.Snapshot, error)
}

type timetableSolver interface {
	Solve(ctx context.Context, snapshot models.Snapshot, opts timetable.Options) (*timetable.Result, error)
}

type generatorAssignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) error
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
}

// ScheduleGeneratorService runs the assignment engine and commits its proposals.
type ScheduleGeneratorService struct {
	snapshots   snapshotProvider
	solver      timetableSolver
	assignments generatorAssignmentRepository
	tx          txProvider
	store       ProposalStore
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ScheduleGeneratorConfig
	now         func() time.Time
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL  time.Duration
	SolveTimeout time.Duration
	// GreedyFill is used when a request does not choose.
	GreedyFill bool
}

// NewScheduleGeneratorService wires generator dependencies. A nil store falls back to the
// in-memory proposal store.
func NewScheduleGeneratorService(
	snapshots snapshotProvider,
	solver timetableSolver,
	assignments generatorAssignmentRepository,
	tx txProvider,
	store ProposalStore,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if store == nil {
		store = NewMemoryProposalStore()
	}
	return &ScheduleGeneratorService{
		snapshots:   snapshots,
		solver:      solver,
		assignments: assignments,
		tx:          tx,
		store:       store,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Generate solves the stored snapshot and keeps the result as a proposal.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error) {
	return s.GenerateWithState(ctx, req, nil)
}

// GenerateWithState is Generate with an observer for engine state transitions.
func (s *ScheduleGeneratorService) GenerateWithState(ctx context.Context, req dto.GenerateTimetableRequest, onState func(timetable.Status)) (*dto.TimetableProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	snapshot, err := s.snapshots.Current(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SolveTimeout)
		defer cancel()
	}

	opts := req.Options(s.cfg.GreedyFill)
	opts.OnState = onState
	result, err := s.solver.Solve(ctx, *snapshot, opts)
	switch {
	case errors.Is(err, appErrors.ErrNothingToAssign):
		return nil, err
	case errors.Is(err, context.Canceled):
		s.observe("CANCELLED", result)
		return nil, appErrors.Wrap(err, appErrors.ErrSolveCancelled.Code, appErrors.ErrSolveCancelled.Status, appErrors.ErrSolveCancelled.Message)
	case err != nil:
		s.observe("FAILED", result)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable solve failed")
	}
	s.observe(string(result.Status), result)

	now := s.now().UTC()
	proposal := dto.TimetableProposal{
		ProposalID:    uuid.NewString(),
		Status:        result.Status,
		ClearExisting: req.ClearExisting,
		Assigned:      result.Assigned,
		Unassigned:    result.Unassigned,
		Stats:         result.Stats,
		GeneratedAt:   now,
		ExpiresAt:     now.Add(s.cfg.ProposalTTL),
	}
	if err := s.store.Save(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proposal")
	}
	return &proposal, nil
}

func (s *ScheduleGeneratorService) observe(status string, result *timetable.Result) {
	if result == nil {
		s.metrics.ObserveSolve(status, 0, 0)
		return
	}
	s.metrics.ObserveSolve(status, len(result.Unassigned), result.Stats.Duration)
}

// Proposal returns a stored proposal.
func (s *ScheduleGeneratorService) Proposal(ctx context.Context, id string) (*dto.TimetableProposal, error) {
	proposal, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return proposal, nil
}

// Apply commits a proposal. Replace clears the timetable first; append re-checks every
// proposed assignment against the current timetable and rejects the whole proposal on collision.
func (s *ScheduleGeneratorService) Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid apply payload")
	}
	proposal, err := s.Proposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = dto.ApplyModeAppend
		if proposal.ClearExisting {
			mode = dto.ApplyModeReplace
		}
	}

	snapshot, err := s.snapshots.Current(ctx)
	if err != nil {
		return nil, err
	}
	if staleErr := staleReferences(snapshot, proposal.Assigned); staleErr != nil {
		return nil, staleErr
	}

	// read before opening the transaction: SQLite runs on a single connection
	current, err := s.assignments.List(ctx, models.AssignmentFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	removed := 0
	if mode == dto.ApplyModeAppend {
		if conflictErr := s.appendConflicts(ctx, current, proposal.Assigned); conflictErr != nil {
			return nil, conflictErr
		}
	} else {
		removed = len(current)
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

	if mode == dto.ApplyModeReplace {
		if err = s.assignments.DeleteAll(ctx, tx); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignments")
			return nil, err
		}
	}

	records := make([]models.Assignment, len(proposal.Assigned))
	copy(records, proposal.Assigned)
	if err = s.assignments.BulkCreate(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "failed to store proposal assignments")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit proposal")
		return nil, err
	}

	_ = s.store.Delete(ctx, req.ProposalID)
	s.logger.Info("timetable proposal applied",
		zap.String("proposal_id", req.ProposalID),
		zap.String("mode", mode),
		zap.Int("applied", len(records)),
		zap.Int("removed", removed),
	)
	return &dto.ApplyProposalResponse{ProposalID: req.ProposalID, Mode: mode, Applied: len(records), Removed: removed}, nil
}

// staleReferences rejects proposals that name teachers, classes, rooms or slots the current
// configuration no longer has.
func staleReferences(snapshot *models.Snapshot, proposed []models.Assignment) error {
	for _, a := range proposed {
		if err := checkReferences(snapshot, a); err != nil {
			return appErrors.Clone(appErrors.ErrConflict, "proposal is out of date: "+appErrors.FromError(err).Message)
		}
	}
	return nil
}

func (s *ScheduleGeneratorService) appendConflicts(ctx context.Context, current, proposed []models.Assignment) error {
	var names timetable.Directory
	if snapshot, err := s.snapshots.Current(ctx); err == nil {
		names = snapshot
	}
	existing := make([]models.Assignment, 0, len(current)+len(proposed))
	existing = append(existing, current...)
	var conflicts []models.ScheduleConflict
	for _, candidate := range proposed {
		for _, c := range timetable.CheckConflicts(candidate, existing, names) {
			conflicts = append(conflicts, c.ScheduleConflict())
		}
		existing = append(existing, candidate)
	}
	if len(conflicts) == 0 {
		return nil
	}
	detail := &models.ScheduleConflictError{
		Type:     conflicts[0].Dimension,
		Message:  fmt.Sprintf("proposal collides with %d existing assignments", len(conflicts)),
		Conflict: conflicts[0],
		Errors:   conflicts,
	}
	return appErrors.Wrap(detail, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict: "+conflicts[0].Message)
}
