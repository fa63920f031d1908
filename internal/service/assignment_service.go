package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

// AssignmentService handles manual timetable edits. Collisions always block; the
// consecutive-lesson rule blocks unless the caller overrides it.
type AssignmentService struct {
	repo      assignmentRepository
	snapshots snapshotProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, snapshots snapshotProvider, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, snapshots: snapshots, validator: validate, logger: logger}
}

// List returns assignments matching the query.
func (s *AssignmentService) List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment query")
	}
	items, err := s.repo.List(ctx, query.Filter())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, nil
}

// Check evaluates a manual placement without storing it.
func (s *AssignmentService) Check(ctx context.Context, req dto.AssignmentRequest) (*dto.AssignmentCheckResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	snapshot, err := s.snapshots.Current(ctx)
	if err != nil {
		return nil, err
	}
	candidate := req.Assignment()
	if err := checkReferences(snapshot, candidate); err != nil {
		return nil, err
	}
	resp := &dto.AssignmentCheckResponse{Conflicts: []models.ScheduleConflict{}}
	for _, c := range timetable.CheckConflicts(candidate, snapshot.Assignments, snapshot) {
		resp.Conflicts = append(resp.Conflicts, c.ScheduleConflict())
	}
	resp.Rule = consecutiveRule(snapshot, candidate)
	resp.Allowed = len(resp.Conflicts) == 0 && (resp.Rule.Valid || req.Override)
	return resp, nil
}

// Create stores a manual placement.
func (s *AssignmentService) Create(ctx context.Context, req dto.AssignmentRequest) (*dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	candidate := req.Assignment()
	warning, err := s.gate(ctx, candidate, req.Override)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, nil, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "failed to create assignment")
	}
	s.logger.Info("assignment created",
		zap.String("assignment_id", candidate.ID),
		zap.String("class_id", candidate.ClassID),
		zap.Int("day", candidate.Day),
		zap.Int("hour", candidate.Hour),
		zap.Bool("override", warning != ""),
	)
	return &dto.AssignmentResponse{Assignment: candidate, Warning: warning}, nil
}

// Move relocates an existing assignment.
func (s *AssignmentService) Move(ctx context.Context, id string, req dto.MoveAssignmentRequest) (*dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	moved := *current
	moved.Day = req.Day
	moved.Hour = req.Hour
	if req.RoomID != nil {
		moved.RoomID = req.RoomID
	}
	warning, err := s.gate(ctx, moved, req.Override)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &moved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "failed to move assignment")
	}
	return &dto.AssignmentResponse{Assignment: moved, Warning: warning}, nil
}

// Delete removes an assignment.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

func (s *AssignmentService) gate(ctx context.Context, candidate models.Assignment, override bool) (string, error) {
	snapshot, err := s.snapshots.Current(ctx)
	if err != nil {
		return "", err
	}
	if err := checkReferences(snapshot, candidate); err != nil {
		return "", err
	}
	if conflict := timetable.CheckConflict(candidate, snapshot.Assignments, snapshot); conflict != nil {
		detail := &models.ScheduleConflictError{
			Type:     conflict.Dimension,
			Message:  conflict.Message,
			Conflict: conflict.ScheduleConflict(),
		}
		return "", appErrors.Wrap(detail, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict: "+conflict.Message)
	}
	rule := consecutiveRule(snapshot, candidate)
	if rule.Valid {
		return "", nil
	}
	if !override {
		detail := &models.ConsecutiveRuleError{ClassID: candidate.ClassID, LessonName: candidate.LessonName, Warning: rule.Warning}
		return "", appErrors.Wrap(detail, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, rule.Warning)
	}
	return rule.Warning, nil
}

func consecutiveRule(snapshot *models.Snapshot, candidate models.Assignment) timetable.RuleResult {
	sameClass := make([]models.Assignment, 0)
	for _, a := range snapshot.Assignments {
		if a.ClassID == candidate.ClassID && a.LessonName == candidate.LessonName {
			sameClass = append(sameClass, a)
		}
	}
	return timetable.CheckConsecutiveLessonsRule(candidate, sameClass, snapshot.WeeklyHours(candidate.ClassID, candidate.LessonName))
}

func checkReferences(snapshot *models.Snapshot, a models.Assignment) error {
	if _, ok := snapshot.TeacherByID(a.TeacherID); !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teacher %s", a.TeacherID))
	}
	if _, ok := snapshot.ClassByID(a.ClassID); !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown class %s", a.ClassID))
	}
	if room := a.Room(); room != "" {
		if _, ok := snapshot.RoomByID(room); !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown room %s", room))
		}
	}
	if !snapshot.Calendar.Valid(a.Day, a.Hour) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s hour %d is outside the school calendar", timetable.DayLabel(a.Day), a.Hour+1))
	}
	return nil
}
