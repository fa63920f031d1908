package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const solveJobType = "timetable.solve"

type runGenerator interface {
	GenerateWithState(ctx context.Context, req dto.GenerateTimetableRequest, onState func(timetable.Status)) (*dto.TimetableProposal, error)
}

// SolveRunConfig tunes asynchronous solving.
type SolveRunConfig struct {
	Workers   int
	Buffer    int
	Retention time.Duration
}

type solveRun struct {
	record   models.SolveRun
	request  dto.GenerateTimetableRequest
	proposal *dto.TimetableProposal
	cancel   context.CancelFunc
}

// SolveRunService executes solves on a worker pool so API requests return immediately.
type SolveRunService struct {
	generator runGenerator
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	retention time.Duration

	mu      sync.Mutex
	runs    map[string]*solveRun
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewSolveRunService builds the run service and its queue. Call Start before submitting.
func NewSolveRunService(generator runGenerator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SolveRunConfig) *SolveRunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	svc := &SolveRunService{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retention: cfg.Retention,
		runs:      make(map[string]*solveRun),
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:       time.Now,
	}
	svc.queue = jobs.NewQueue("timetable-solve", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		MaxRetries: -1,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *SolveRunService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels running solves and waits for the workers.
func (s *SolveRunService) Stop() {
	s.mu.Lock()
	for _, run := range s.runs {
		if run.cancel != nil {
			run.cancel()
		}
	}
	s.mu.Unlock()
	s.queue.Stop()
}

// Submit queues a solve and returns its pending record.
func (s *SolveRunService) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.SolveRunResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	s.mu.Lock()
	s.pruneLocked()
	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	run := &solveRun{
		record:  models.SolveRun{ID: id, Status: models.SolveRunPending, SubmittedAt: now},
		request: req,
	}
	s.runs[id] = run
	resp := &dto.SolveRunResponse{SolveRun: run.record}
	s.mu.Unlock()
	s.metrics.RunStarted()

	if err := s.queue.TryEnqueue(jobs.Job{ID: id, Type: solveJobType, Payload: id}); err != nil {
		s.mu.Lock()
		delete(s.runs, id)
		s.mu.Unlock()
		s.metrics.RunFinished()
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrRateLimited, "solve queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue solve")
	}
	s.logger.Info("solve run submitted", zap.String("run_id", id))
	return resp, nil
}

// Get returns a run and, once finished, its proposal.
func (s *SolveRunService) Get(_ context.Context, id string) (*dto.SolveRunResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	run, ok := s.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "solve run not found")
	}
	return &dto.SolveRunResponse{SolveRun: run.record, Proposal: run.proposal}, nil
}

// Cancel stops a pending or running solve. Finished runs cannot be cancelled.
func (s *SolveRunService) Cancel(_ context.Context, id string) (*dto.SolveRunResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "solve run not found")
	}
	if run.record.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "solve run already finished")
	}
	if run.cancel != nil {
		run.cancel()
	} else {
		s.finishLocked(run, models.SolveRunCancelled, nil, "")
	}
	s.logger.Info("solve run cancellation requested", zap.String("run_id", id))
	return &dto.SolveRunResponse{SolveRun: run.record, Proposal: run.proposal}, nil
}

func (s *SolveRunService) handle(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)

	s.mu.Lock()
	run, ok := s.runs[id]
	if !ok || run.record.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	run.cancel = cancel
	started := s.now().UTC()
	run.record.StartedAt = &started
	req := run.request
	s.mu.Unlock()

	onState := func(status timetable.Status) {
		if status != timetable.StatusSolving {
			return
		}
		s.mu.Lock()
		if !run.record.Status.Terminal() {
			run.record.Status = models.SolveRunSolving
		}
		s.mu.Unlock()
	}
	proposal, err := s.generator.GenerateWithState(runCtx, req, onState)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err == nil:
		status := models.SolveRunSolved
		if proposal.Status == timetable.StatusPartialSolved {
			status = models.SolveRunPartialSolved
		}
		s.finishLocked(run, status, proposal, "")
	case errors.Is(err, appErrors.ErrSolveCancelled) || errors.Is(err, context.Canceled):
		s.finishLocked(run, models.SolveRunCancelled, nil, "")
	default:
		s.finishLocked(run, models.SolveRunFailed, nil, err.Error())
		s.logger.Warn("solve run failed", zap.String("run_id", id), zap.Error(err))
	}
	return nil
}

func (s *SolveRunService) finishLocked(run *solveRun, status models.SolveRunStatus, proposal *dto.TimetableProposal, message string) {
	finished := s.now().UTC()
	run.record.Status = status
	run.record.FinishedAt = &finished
	run.record.Error = message
	run.cancel = nil
	if proposal != nil {
		run.proposal = proposal
		run.record.ProposalID = proposal.ProposalID
	}
	s.metrics.RunFinished()
	s.logger.Info("solve run finished", zap.String("run_id", run.record.ID), zap.String("status", string(status)))
}

func (s *SolveRunService) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, run := range s.runs {
		if run.record.FinishedAt != nil && run.record.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}
