package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// Apply modes.
const (
	ApplyModeReplace = "replace"
	ApplyModeAppend  = "append"
)

// GenerateTimetableRequest asks the engine for a placement proposal over the stored snapshot.
type GenerateTimetableRequest struct {
	ClearExisting bool  `json:"clearExisting"`
	Seed          int64 `json:"seed"`
	MaxSteps      int   `json:"maxSteps" validate:"omitempty,min=1,max=10000000"`
	// GreedyFill overrides the server default when set.
	GreedyFill *bool `json:"greedyFill,omitempty"`
}

// Options converts the request into engine options. defaultGreedy applies when the request
// leaves greedyFill out.
func (r GenerateTimetableRequest) Options(defaultGreedy bool) timetable.Options {
	greedy := defaultGreedy
	if r.GreedyFill != nil {
		greedy = *r.GreedyFill
	}
	return timetable.Options{
		ClearExisting: r.ClearExisting,
		Seed:          r.Seed,
		MaxSteps:      r.MaxSteps,
		GreedyFill:    greedy,
	}
}

// TimetableProposal is a stored engine result awaiting apply.
type TimetableProposal struct {
	ProposalID    string                        `json:"proposalId"`
	Status        timetable.Status              `json:"status"`
	ClearExisting bool                          `json:"clearExisting"`
	Assigned      []models.Assignment           `json:"assigned"`
	Unassigned    []timetable.AtomicRequirement `json:"unassigned"`
	Stats         timetable.Stats               `json:"stats"`
	GeneratedAt   time.Time                     `json:"generatedAt"`
	ExpiresAt     time.Time                     `json:"expiresAt"`
}

// ApplyProposalRequest commits a proposal to the timetable. An empty mode means replace for
// proposals generated with clearExisting and append otherwise.
type ApplyProposalRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Mode       string `json:"mode" validate:"omitempty,oneof=replace append"`
}

// ApplyProposalResponse reports how many assignments were written.
type ApplyProposalResponse struct {
	ProposalID string `json:"proposalId"`
	Mode       string `json:"mode"`
	Applied    int    `json:"applied"`
	Removed    int    `json:"removed"`
}

// SolveRunResponse describes an asynchronous solve and, once finished, its proposal.
type SolveRunResponse struct {
	models.SolveRun
	Proposal *TimetableProposal `json:"proposal,omitempty"`
}

// AssignmentRequest places one lesson hour manually.
type AssignmentRequest struct {
	LessonName string  `json:"lessonName" validate:"required"`
	TeacherID  string  `json:"teacherId" validate:"required"`
	ClassID    string  `json:"classId" validate:"required"`
	Day        int     `json:"day" validate:"min=0,max=6"`
	Hour       int     `json:"hour" validate:"min=0,max=23"`
	RoomID     *string `json:"roomId" validate:"omitempty,min=1"`
	Override   bool    `json:"override"`
}

// Assignment converts the request into a model.
func (r AssignmentRequest) Assignment() models.Assignment {
	return models.Assignment{
		LessonName: r.LessonName,
		TeacherID:  r.TeacherID,
		ClassID:    r.ClassID,
		Day:        r.Day,
		Hour:       r.Hour,
		RoomID:     r.RoomID,
	}
}

// MoveAssignmentRequest drags an existing assignment to another slot.
type MoveAssignmentRequest struct {
	Day      int     `json:"day" validate:"min=0,max=6"`
	Hour     int     `json:"hour" validate:"min=0,max=23"`
	RoomID   *string `json:"roomId" validate:"omitempty,min=1"`
	Override bool    `json:"override"`
}

// AssignmentResponse returns the stored assignment and any overridden rule warning.
type AssignmentResponse struct {
	Assignment models.Assignment `json:"assignment"`
	Warning    string            `json:"warning,omitempty"`
}

// AssignmentCheckResponse is a dry-run verdict for a manual edit.
type AssignmentCheckResponse struct {
	Allowed   bool                      `json:"allowed"`
	Conflicts []models.ScheduleConflict `json:"conflicts"`
	Rule      timetable.RuleResult      `json:"rule"`
}

// AssignmentQuery filters assignment listings.
type AssignmentQuery struct {
	ClassID   string `form:"classId" json:"classId"`
	TeacherID string `form:"teacherId" json:"teacherId"`
	RoomID    string `form:"roomId" json:"roomId"`
	Day       *int   `form:"day" json:"day" validate:"omitempty,min=0,max=6"`
}

// Filter converts the query into a repository filter.
func (q AssignmentQuery) Filter() models.AssignmentFilter {
	return models.AssignmentFilter{ClassID: q.ClassID, TeacherID: q.TeacherID, RoomID: q.RoomID, Day: q.Day}
}

// ExportQuery selects the timetable view to export.
type ExportQuery struct {
	Format    string `form:"format" json:"format" validate:"required,oneof=csv pdf"`
	ClassID   string `form:"classId" json:"classId" validate:"required_without=TeacherID"`
	TeacherID string `form:"teacherId" json:"teacherId" validate:"required_without=ClassID"`
}

// SnapshotImportResponse summarises a snapshot import.
type SnapshotImportResponse struct {
	Teachers           int   `json:"teachers"`
	Classes            int   `json:"classes"`
	Rooms              int   `json:"rooms"`
	Requirements       int   `json:"requirements"`
	Assignments        int   `json:"assignments"`
	RemovedAssignments int64 `json:"removedAssignments"`
}
