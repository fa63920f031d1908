package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type solveRunner interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.SolveRunResponse, error)
	Get(ctx context.Context, id string) (*dto.SolveRunResponse, error)
	Cancel(ctx context.Context, id string) (*dto.SolveRunResponse, error)
}

// SolveRunHandler exposes asynchronous solve runs.
type SolveRunHandler struct {
	service solveRunner
}

// NewSolveRunHandler constructs the handler.
func NewSolveRunHandler(svc *service.SolveRunService) *SolveRunHandler {
	return &SolveRunHandler{service: svc}
}

// Submit godoc
// @Summary Queue a background solve
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest false "Solve options"
// @Success 202 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /timetable/runs [post]
func (h *SolveRunHandler) Submit(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run payload"))
		return
	}
	run, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+run.ID)
	response.JSON(c, http.StatusAccepted, run, nil)
}

// Get godoc
// @Summary Solve run status
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/runs/{id} [get]
func (h *SolveRunHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Cancel godoc
// @Summary Cancel a solve run
// @Tags Timetable
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/runs/{id} [delete]
func (h *SolveRunHandler) Cancel(c *gin.Context) {
	run, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
