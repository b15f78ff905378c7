package models

import "time"

// CycleStatus represents the lifecycle state of a reporting cycle.
type CycleStatus string

const (
	CycleStatusActive    CycleStatus = "active"    // Agents may be triggered
	CycleStatusPaused    CycleStatus = "paused"    // Held at a human checkpoint
	CycleStatusCompleted CycleStatus = "completed" // Terminal, never deleted
)

// CycleInstance is one end-to-end run of the reporting workflow for a given
// report and period. Only the orchestrator mutates it.
type CycleInstance struct {
	ID           string      `json:"id"`
	ReportID     string      `json:"report_id"  validate:"required"`
	PeriodEnd    time.Time   `json:"period_end" validate:"required"`
	Status       CycleStatus `json:"status"     validate:"required"`
	CurrentPhase AgentType   `json:"current_phase,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
