package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error)
	Proposal(ctx context.Context, id string) (*dto.TimetableProposal, error)
	Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error)
}

// ScheduleGeneratorHandler exposes synchronous generation and proposal application.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Description Runs the assignment engine against the current snapshot. Nothing is persisted until the proposal is applied.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest false "Solve options"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	proposal, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "unassigned", len(proposal.Unassigned))
	response.JSON(c, http.StatusOK, proposal, nil, middleware.ExtractMeta(c))
}

// Proposal godoc
// @Summary Fetch a stored proposal
// @Tags Timetable
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/proposals/{id} [get]
func (h *ScheduleGeneratorHandler) Proposal(c *gin.Context) {
	proposal, err := h.service.Proposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// Apply godoc
// @Summary Apply a proposal
// @Description mode=replace swaps the whole timetable; mode=append adds the proposal and fails on any collision.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ApplyProposalRequest true "Apply payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/apply [post]
func (h *ScheduleGeneratorHandler) Apply(c *gin.Context) {
	var req dto.ApplyProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid apply payload"))
		return
	}
	result, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
