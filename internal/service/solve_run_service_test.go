package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type runGeneratorStub struct {
	block    bool
	started  chan struct{}
	err      error
	proposal *dto.TimetableProposal
	once     sync.Once
}

func (g *runGeneratorStub) GenerateWithState(ctx context.Context, _ dto.GenerateTimetableRequest, onState func(timetable.Status)) (*dto.TimetableProposal, error) {
	onState(timetable.StatusPending)
	onState(timetable.StatusSolving)
	if g.started != nil {
		g.once.Do(func() { close(g.started) })
	}
	if g.block {
		<-ctx.Done()
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrSolveCancelled.Code, appErrors.ErrSolveCancelled.Status, "cancelled")
	}
	return g.proposal, g.err
}

func newRunService(t *testing.T, gen runGenerator) *SolveRunService {
	t.Helper()
	svc := NewSolveRunService(gen, NewMetricsService(), nil, zap.NewNop(), SolveRunConfig{Workers: 1, Buffer: 1, Retention: time.Minute})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForStatus(t *testing.T, svc *SolveRunService, id string, status models.SolveRunStatus) *dto.SolveRunResponse {
	t.Helper()
	var last *dto.SolveRunResponse
	require.Eventually(t, func() bool {
		resp, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		last = resp
		return resp.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestSolveRunServiceCompletesRun(t *testing.T) {
	gen := &runGeneratorStub{proposal: &dto.TimetableProposal{ProposalID: "p1", Status: timetable.StatusPartialSolved}}
	svc := newRunService(t, gen)

	submitted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.SolveRunPending, submitted.Status)
	assert.Len(t, submitted.ID, 26)

	done := waitForStatus(t, svc, submitted.ID, models.SolveRunPartialSolved)
	assert.Equal(t, "p1", done.ProposalID)
	require.NotNil(t, done.Proposal)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
}

func TestSolveRunServiceRecordsFailure(t *testing.T) {
	svc := newRunService(t, &runGeneratorStub{err: errors.New("snapshot unavailable")})

	submitted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)

	done := waitForStatus(t, svc, submitted.ID, models.SolveRunFailed)
	assert.Contains(t, done.Error, "snapshot unavailable")
	assert.Nil(t, done.Proposal)
}

func TestSolveRunServiceCancelRunningSolve(t *testing.T) {
	gen := &runGeneratorStub{block: true, started: make(chan struct{})}
	svc := newRunService(t, gen)

	submitted, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)

	select {
	case <-gen.started:
	case <-time.After(2 * time.Second):
		t.Fatal("solve did not start")
	}
	waitForStatus(t, svc, submitted.ID, models.SolveRunSolving)

	_, err = svc.Cancel(context.Background(), submitted.ID)
	require.NoError(t, err)
	waitForStatus(t, svc, submitted.ID, models.SolveRunCancelled)

	_, err = svc.Cancel(context.Background(), submitted.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSolveRunServiceCancelPendingRun(t *testing.T) {
	gen := &runGeneratorStub{proposal: &dto.TimetableProposal{ProposalID: "p1", Status: timetable.StatusSolved}}
	svc := NewSolveRunService(gen, nil, nil, zap.NewNop(), SolveRunConfig{Workers: 1})

	// not started: the run stays pending until cancelled
	svc.mu.Lock()
	svc.runs["r1"] = &solveRun{record: models.SolveRun{ID: "r1", Status: models.SolveRunPending}}
	svc.mu.Unlock()

	resp, err := svc.Cancel(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.SolveRunCancelled, resp.Status)

	require.NoError(t, svc.handle(context.Background(), jobs.Job{ID: "r1", Type: solveJobType, Payload: "r1"}))
	got, err := svc.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.SolveRunCancelled, got.Status)
	assert.Nil(t, got.Proposal)
}

func TestSolveRunServiceUnknownRun(t *testing.T) {
	svc := newRunService(t, &runGeneratorStub{})
	_, err := svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.Cancel(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSolveRunServicePrunesFinishedRuns(t *testing.T) {
	svc := NewSolveRunService(&runGeneratorStub{}, nil, nil, zap.NewNop(), SolveRunConfig{Retention: time.Minute})
	now := time.Now()
	old := now.Add(-2 * time.Minute)
	svc.now = func() time.Time { return now }
	svc.runs["old"] = &solveRun{record: models.SolveRun{ID: "old", Status: models.SolveRunSolved, FinishedAt: &old}}
	svc.runs["live"] = &solveRun{record: models.SolveRun{ID: "live", Status: models.SolveRunSolving}}

	_, err := svc.Get(context.Background(), "live")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "old")
	assert.Error(t, err)
}

func TestSolveRunServiceRejectsWhenQueueFull(t *testing.T) {
	gen := &runGeneratorStub{block: true, started: make(chan struct{})}
	svc := newRunService(t, gen)

	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	<-gen.started

	_, err = svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErrors.FromError(err).Code)
}
