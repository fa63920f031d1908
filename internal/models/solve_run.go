package models

import "time"

// SolveRunStatus tracks an asynchronous solve through its lifecycle.
type SolveRunStatus string

const (
	SolveRunPending       SolveRunStatus = "PENDING"
	SolveRunSolving       SolveRunStatus = "SOLVING"
	SolveRunSolved        SolveRunStatus = "SOLVED"
	SolveRunPartialSolved SolveRunStatus = "PARTIAL_SOLVED"
	SolveRunFailed        SolveRunStatus = "FAILED"
	SolveRunCancelled     SolveRunStatus = "CANCELLED"
)

// Terminal reports whether no further transitions can happen.
func (s SolveRunStatus) Terminal() bool {
	switch s {
	case SolveRunSolved, SolveRunPartialSolved, SolveRunFailed, SolveRunCancelled:
		return true
	}
	return false
}

// SolveRun is the bookkeeping record of one asynchronous solve.
type SolveRun struct {
	ID          string         `json:"id"`
	Status      SolveRunStatus `json:"status"`
	ProposalID  string         `json:"proposal_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}
