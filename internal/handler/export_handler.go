package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableExporter interface {
	Export(ctx context.Context, query dto.ExportQuery) (*service.ExportFile, error)
}

// ExportHandler streams timetable grids as files.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Download a weekly timetable
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param classId query string false "Class ID"
// @Param teacherId query string false "Teacher ID"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /timetable/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
