package pipeline

import (
	"time"
)

// StageID identifies one of the ordered pipeline stages.
type StageID string

const (
	StageExtract   StageID = "extract"
	StageTransform StageID = "transform"
	StageReport    StageID = "report"
)

// stageOrder is the fixed execution order. Extract is mandatory, the rest
// optional; each stage runs at most once per run.
var stageOrder = []StageID{StageExtract, StageTransform, StageReport}

// StageStatus represents the current status of a stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState records the runtime state of a stage. Runs are synchronous,
// one goroutine per Pipeline.
type StageState struct {
	ID        StageID     `json:"id"`
	Status    StageStatus `json:"status"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Message   string      `json:"message,omitempty"`
	Err       error       `json:"-"`
}

// NewStageState creates a pending stage state.
func NewStageState(id StageID) *StageState {
	return &StageState{ID: id, Status: StageStatusPending}
}

// Start marks the stage active and records the start time.
func (s *StageState) Start() {
	now := time.Now()
	s.StartTime = &now
	s.Status = StageStatusActive
}

// Complete marks the stage completed and records the end time.
func (s *StageState) Complete() {
	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusCompleted
}

// Fail marks the stage failed with the given error.
func (s *StageState) Fail(err error) {
	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	s.Err = err
}

// Skip marks the stage skipped with a reason.
func (s *StageState) Skip(reason string) {
	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusSkipped
	s.Message = reason
}

// Duration returns how long the stage ran (or has been running).
func (s *StageState) Duration() time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}
