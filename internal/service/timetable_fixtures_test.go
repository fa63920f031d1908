package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// assignmentRepoStub keeps assignments in memory; writes through a transaction are applied
// immediately.
type assignmentRepoStub struct {
	mu        sync.Mutex
	items     []models.Assignment
	deleteAll int
	orphans   int64
	createErr error
}

func (s *assignmentRepoStub) List(_ context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, 0, len(s.items))
	for _, a := range s.items {
		if filter.ClassID != "" && a.ClassID != filter.ClassID {
			continue
		}
		if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.RoomID != "" && a.Room() != filter.RoomID {
			continue
		}
		if filter.Day != nil && a.Day != *filter.Day {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal() < out[j].Ordinal() })
	return out, nil
}

func (s *assignmentRepoStub) FindByID(_ context.Context, id string) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *assignmentRepoStub) Create(_ context.Context, _ sqlx.ExtContext, a *models.Assignment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	s.items = append(s.items, *a)
	return nil
}

func (s *assignmentRepoStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, items []models.Assignment) error {
	for i := range items {
		if err := s.Create(ctx, exec, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *assignmentRepoStub) Update(_ context.Context, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == a.ID {
			s.items[i] = *a
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *assignmentRepoStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *assignmentRepoStub) DeleteAll(_ context.Context, _ sqlx.ExtContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.deleteAll++
	return nil
}

func (s *assignmentRepoStub) DeleteOrphans(_ context.Context, _ sqlx.ExtContext) (int64, error) {
	return s.orphans, nil
}

// staticSnapshots serves a fixed configuration joined with the stub's assignments.
type staticSnapshots struct {
	snapshot    models.Snapshot
	assignments *assignmentRepoStub
	err         error
}

func (s *staticSnapshots) Current(ctx context.Context) (*models.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snapshot := s.snapshot
	if s.assignments != nil {
		items, _ := s.assignments.List(ctx, models.AssignmentFilter{})
		snapshot.Assignments = items
	}
	return &snapshot, nil
}

type stubCacheRepo struct {
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.store, key)
	}
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func weekCalendar(days, slots int) models.CalendarConfig {
	cal := models.CalendarConfig{DaysInWeek: days}
	for d := 0; d < days; d++ {
		row := make([]models.TimeRange, slots)
		for h := range row {
			start := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC).Add(time.Duration(h) * 45 * time.Minute)
			row[h] = models.TimeRange{Start: start.Format("15:04"), End: start.Add(45 * time.Minute).Format("15:04")}
		}
		cal.DaySlots = append(cal.DaySlots, row)
	}
	return cal
}

func strPtr(v string) *string { return &v }

// schoolSnapshot: two classes, two teachers, one lab; math is a double lesson.
func schoolSnapshot() models.Snapshot {
	return models.Snapshot{
		Calendar: weekCalendar(2, 4),
		Teachers: []models.Teacher{
			{ID: "t1", Name: "Ms. Rahma", TaughtLessons: models.LessonSet{"Math"}},
			{ID: "t2", Name: "Mr. Budi", TaughtLessons: models.LessonSet{"Art", "Biology"}},
		},
		Classes: []models.ClassSection{
			{ID: "c1", Name: "X-A", Curriculum: []models.CurriculumRequirement{
				{ID: "q1", TeacherID: "t1", LessonName: "Math", WeeklyHours: 2},
				{ID: "q2", TeacherID: "t2", LessonName: "Art", WeeklyHours: 1},
			}},
			{ID: "c2", Name: "X-B", Curriculum: []models.CurriculumRequirement{
				{ID: "q3", TeacherID: "t2", LessonName: "Biology", WeeklyHours: 1},
			}},
		},
		Rooms: []models.Room{{ID: "r1", Name: "Lab", Capacity: 32}},
	}
}
