package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type snapshotManager interface {
	Current(ctx context.Context) (*models.Snapshot, error)
	Import(ctx context.Context, snapshot *models.Snapshot) (*dto.SnapshotImportResponse, error)
}

// SnapshotHandler exposes the school configuration the engine works from.
type SnapshotHandler struct {
	service snapshotManager
}

// NewSnapshotHandler constructs the handler.
func NewSnapshotHandler(svc *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{service: svc}
}

// Get godoc
// @Summary Current timetable snapshot
// @Description Calendar, teachers, classes with curriculum, rooms and the placed assignments.
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/snapshot [get]
func (h *SnapshotHandler) Get(c *gin.Context) {
	snapshot, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil, middleware.ExtractMeta(c))
}

// Import godoc
// @Summary Replace the timetable snapshot
// @Description Validates and stores the calendar and entities in one transaction. Assignments in the payload replace the timetable.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body models.Snapshot true "Snapshot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/snapshot [put]
func (h *SnapshotHandler) Import(c *gin.Context) {
	var snapshot models.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid snapshot payload"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), &snapshot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
