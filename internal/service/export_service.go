package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered timetable ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders weekly timetable grids for one class or one teacher.
type ExportService struct {
	snapshots snapshotProvider
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(snapshots snapshotProvider, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(0)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{snapshots: snapshots, csv: csv, pdf: pdf, validator: validate, logger: logger, now: time.Now}
}

// Export renders the current timetable.
func (s *ExportService) Export(ctx context.Context, query dto.ExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	snapshot, err := s.snapshots.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.Render(snapshot, query)
}

// Render renders the given snapshot's assignments.
func (s *ExportService) Render(snapshot *models.Snapshot, query dto.ExportQuery) (*ExportFile, error) {
	dataset, err := BuildTimetableDataset(snapshot, query.ClassID, query.TeacherID)
	if err != nil {
		return nil, err
	}

	file := &ExportFile{Filename: buildFilename(dataset.Title, query.Format)}
	switch query.Format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset, "Generated "+s.now().UTC().Format("2006-01-02 15:04 MST"))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", query.Format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	s.logger.Debug("timetable exported", zap.String("file", file.Filename), zap.Int("bytes", len(file.Data)))
	return file, nil
}

// BuildTimetableDataset lays out the week as one row per hour and one column per day. Cells of
// hours a day does not have are rendered as "-".
func BuildTimetableDataset(snapshot *models.Snapshot, classID, teacherID string) (export.Dataset, error) {
	var (
		title string
		match func(models.Assignment) bool
		cell  func(models.Assignment) string
	)
	switch {
	case classID != "":
		if _, ok := snapshot.ClassByID(classID); !ok {
			return export.Dataset{}, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		title = "Class " + snapshot.ClassName(classID)
		match = func(a models.Assignment) bool { return a.ClassID == classID }
		cell = func(a models.Assignment) string {
			return joinCell(a.LessonName, snapshot.TeacherName(a.TeacherID), roomLabel(snapshot, a))
		}
	case teacherID != "":
		if _, ok := snapshot.TeacherByID(teacherID); !ok {
			return export.Dataset{}, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		title = "Teacher " + snapshot.TeacherName(teacherID)
		match = func(a models.Assignment) bool { return a.TeacherID == teacherID }
		cell = func(a models.Assignment) string {
			return joinCell(a.LessonName, snapshot.ClassName(a.ClassID), roomLabel(snapshot, a))
		}
	default:
		return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, "classId or teacherId is required")
	}

	cal := snapshot.Calendar
	headers := []string{"Hour"}
	for day := 0; day < cal.DaysInWeek; day++ {
		headers = append(headers, timetable.DayLabel(day))
	}

	grid := make(map[[2]int][]string)
	for _, a := range snapshot.Assignments {
		if match(a) {
			key := [2]int{a.Day, a.Hour}
			grid[key] = append(grid[key], cell(a))
		}
	}

	rows := make([]map[string]string, 0, cal.MaxSlots())
	for hour := 0; hour < cal.MaxSlots(); hour++ {
		row := map[string]string{"Hour": fmt.Sprintf("%d", hour+1)}
		for day := 0; day < cal.DaysInWeek; day++ {
			label := timetable.DayLabel(day)
			span, ok := cal.TimeRangeAt(day, hour)
			if !ok {
				row[label] = "-"
				continue
			}
			entries := grid[[2]int{day, hour}]
			if len(entries) == 0 {
				row[label] = ""
				continue
			}
			row[label] = strings.Join(entries, "\n") + "\n" + span.Start + "-" + span.End
		}
		rows = append(rows, row)
	}

	return export.Dataset{Title: title + " timetable", Headers: headers, Rows: rows}, nil
}

func joinCell(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func roomLabel(snapshot *models.Snapshot, a models.Assignment) string {
	if room := a.Room(); room != "" {
		return snapshot.RoomName(room)
	}
	return ""
}

func buildFilename(title, format string) string {
	return fmt.Sprintf("%s.%s", sanitizeFilename(strings.ToLower(title)), format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
