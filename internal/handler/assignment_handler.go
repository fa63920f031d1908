package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type assignmentManager interface {
	List(ctx context.Context, query dto.AssignmentQuery) ([]models.Assignment, error)
	Check(ctx context.Context, req dto.AssignmentRequest) (*dto.AssignmentCheckResponse, error)
	Create(ctx context.Context, req dto.AssignmentRequest) (*dto.AssignmentResponse, error)
	Move(ctx context.Context, id string, req dto.MoveAssignmentRequest) (*dto.AssignmentResponse, error)
	Delete(ctx context.Context, id string) error
}

// AssignmentHandler exposes manual timetable edits.
type AssignmentHandler struct {
	service assignmentManager
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param classId query string false "Class ID"
// @Param teacherId query string false "Teacher ID"
// @Param roomId query string false "Room ID"
// @Param day query int false "Day index, 0 is Monday"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	var query dto.AssignmentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Place a lesson hour manually
// @Description Hard collisions return 409. Breaking the consecutive lesson rule returns 412 unless override is set.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req dto.AssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Move godoc
// @Summary Move an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.MoveAssignmentRequest true "Target slot"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments/{id}/move [patch]
func (h *AssignmentHandler) Move(c *gin.Context) {
	var req dto.MoveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, err := h.service.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete an assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Check godoc
// @Summary Dry-run a placement
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/check [post]
func (h *AssignmentHandler) Check(c *gin.Context) {
	var req dto.AssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
