package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const assignmentColumns = "id, lesson_name, teacher_id, class_id, day, hour, room_id, created_at, updated_at"

// AssignmentRepository persists placed lesson hours.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns assignments matching the filter ordered by day and hour.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ClassID != "" {
		conditions = append(conditions, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Day != nil {
		conditions = append(conditions, "day = ?")
		args = append(args, *filter.Day)
	}

	query := "SELECT " + assignmentColumns + " FROM assignments"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY day ASC, hour ASC, class_id ASC"

	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindByID returns a single assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := r.db.Rebind("SELECT " + assignmentColumns + " FROM assignments WHERE id = ?")
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// Create inserts a new assignment, generating its id and timestamps when missing.
func (r *AssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	prepareAssignment(assignment, time.Now().UTC())
	const query = `
INSERT INTO assignments (id, lesson_name, teacher_id, class_id, day, hour, room_id, created_at, updated_at)
VALUES (:id, :lesson_name, :teacher_id, :class_id, :day, :hour, :room_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// BulkCreate inserts every assignment through the same executor.
func (r *AssignmentRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	for i := range assignments {
		if err := r.Create(ctx, exec, &assignments[i]); err != nil {
			return err
		}
	}
	return nil
}

// Update moves an assignment and refreshes updated_at.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE assignments
SET lesson_name = :lesson_name, teacher_id = :teacher_id, class_id = :class_id,
    day = :day, hour = :hour, room_id = :room_id, updated_at = :updated_at
WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, assignment)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment by id.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM assignments WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAll clears the timetable.
func (r *AssignmentRepository) DeleteAll(ctx context.Context, exec sqlx.ExtContext) error {
	if _, err := r.exec(exec).ExecContext(ctx, "DELETE FROM assignments"); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	return nil
}

// DeleteOrphans removes assignments whose teacher, class or room no longer exists.
func (r *AssignmentRepository) DeleteOrphans(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	const query = `
DELETE FROM assignments
WHERE teacher_id NOT IN (SELECT id FROM teachers)
   OR class_id NOT IN (SELECT id FROM class_sections)
   OR (room_id IS NOT NULL AND room_id NOT IN (SELECT id FROM rooms))`
	res, err := r.exec(exec).ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func prepareAssignment(a *models.Assignment, now time.Time) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}
