package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const calendarRowID = 1

// SnapshotRepository loads and replaces the school configuration the engine reads: calendar,
// teachers, classes with their curriculum, and rooms.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository builds repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load returns the stored snapshot without assignments.
func (r *SnapshotRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	calendar, err := r.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	teachers, err := r.ListTeachers(ctx)
	if err != nil {
		return nil, err
	}
	classes, err := r.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := r.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{Calendar: calendar, Teachers: teachers, Classes: classes, Rooms: rooms}, nil
}

// Calendar returns the configured calendar, or an empty one before the first import.
func (r *SnapshotRepository) Calendar(ctx context.Context) (models.CalendarConfig, error) {
	var calendar models.CalendarConfig
	query := r.db.Rebind("SELECT config FROM calendar_config WHERE id = ?")
	if err := r.db.QueryRowxContext(ctx, query, calendarRowID).Scan(&calendar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CalendarConfig{}, nil
		}
		return models.CalendarConfig{}, fmt.Errorf("load calendar: %w", err)
	}
	return calendar, nil
}

// ListTeachers returns teachers ordered by name.
func (r *SnapshotRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	const query = `SELECT id, name, code, taught_lessons, availability, created_at, updated_at FROM teachers ORDER BY name ASC, id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListRooms returns rooms ordered by name.
func (r *SnapshotRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, availability, created_at, updated_at FROM rooms ORDER BY name ASC, id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListClasses returns classes with their curriculum in declared order.
func (r *SnapshotRepository) ListClasses(ctx context.Context) ([]models.ClassSection, error) {
	const classQuery = `SELECT id, name, level, availability, active_hour_range, created_at, updated_at FROM class_sections ORDER BY name ASC, id ASC`
	var classes []models.ClassSection
	if err := r.db.SelectContext(ctx, &classes, classQuery); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	const reqQuery = `SELECT id, class_id, teacher_id, lesson_name, weekly_hours, position FROM curriculum_requirements ORDER BY class_id ASC, position ASC`
	var reqs []models.CurriculumRequirement
	if err := r.db.SelectContext(ctx, &reqs, reqQuery); err != nil {
		return nil, fmt.Errorf("list curriculum: %w", err)
	}

	byClass := make(map[string][]models.CurriculumRequirement, len(classes))
	for _, req := range reqs {
		byClass[req.ClassID] = append(byClass[req.ClassID], req)
	}
	for i := range classes {
		classes[i].Curriculum = byClass[classes[i].ID]
	}
	return classes, nil
}

// Replace swaps the stored configuration for the snapshot's inside the caller's transaction.
// Assignments are not touched.
func (r *SnapshotRepository) Replace(ctx context.Context, tx sqlx.ExtContext, snapshot *models.Snapshot) error {
	now := time.Now().UTC()

	for _, table := range []string{"curriculum_requirements", "class_sections", "teachers", "rooms", "calendar_config"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	calendarQuery := tx.Rebind("INSERT INTO calendar_config (id, config, updated_at) VALUES (?, ?, ?)")
	if _, err := tx.ExecContext(ctx, calendarQuery, calendarRowID, snapshot.Calendar, now); err != nil {
		return fmt.Errorf("insert calendar: %w", err)
	}

	const teacherQuery = `
INSERT INTO teachers (id, name, code, taught_lessons, availability, created_at, updated_at)
VALUES (:id, :name, :code, :taught_lessons, :availability, :created_at, :updated_at)`
	for i := range snapshot.Teachers {
		teacher := &snapshot.Teachers[i]
		stamp(&teacher.CreatedAt, &teacher.UpdatedAt, now)
		if _, err := sqlx.NamedExecContext(ctx, tx, teacherQuery, teacher); err != nil {
			return fmt.Errorf("insert teacher %s: %w", teacher.ID, err)
		}
	}

	const roomQuery = `
INSERT INTO rooms (id, name, capacity, availability, created_at, updated_at)
VALUES (:id, :name, :capacity, :availability, :created_at, :updated_at)`
	for i := range snapshot.Rooms {
		room := &snapshot.Rooms[i]
		stamp(&room.CreatedAt, &room.UpdatedAt, now)
		if _, err := sqlx.NamedExecContext(ctx, tx, roomQuery, room); err != nil {
			return fmt.Errorf("insert room %s: %w", room.ID, err)
		}
	}

	const classQuery = `
INSERT INTO class_sections (id, name, level, availability, active_hour_range, created_at, updated_at)
VALUES (:id, :name, :level, :availability, :active_hour_range, :created_at, :updated_at)`
	const reqQuery = `
INSERT INTO curriculum_requirements (id, class_id, teacher_id, lesson_name, weekly_hours, position)
VALUES (:id, :class_id, :teacher_id, :lesson_name, :weekly_hours, :position)`
	for i := range snapshot.Classes {
		class := &snapshot.Classes[i]
		stamp(&class.CreatedAt, &class.UpdatedAt, now)
		if _, err := sqlx.NamedExecContext(ctx, tx, classQuery, class); err != nil {
			return fmt.Errorf("insert class %s: %w", class.ID, err)
		}
		for pos := range class.Curriculum {
			req := &class.Curriculum[pos]
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			req.ClassID = class.ID
			req.Position = pos
			if _, err := sqlx.NamedExecContext(ctx, tx, reqQuery, req); err != nil {
				return fmt.Errorf("insert curriculum %s: %w", req.ID, err)
			}
		}
	}
	return nil
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
