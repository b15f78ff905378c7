package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowStep_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    StepStatus
		to      StepStatus
		allowed bool
	}{
		{"pending to in_progress", StepStatusPending, StepStatusInProgress, true},
		{"pending to completed", StepStatusPending, StepStatusCompleted, false},
		{"pending to failed", StepStatusPending, StepStatusFailed, false},
		{"in_progress to completed", StepStatusInProgress, StepStatusCompleted, true},
		{"in_progress to failed", StepStatusInProgress, StepStatusFailed, true},
		{"in_progress to pending", StepStatusInProgress, StepStatusPending, false},
		{"failed to in_progress", StepStatusFailed, StepStatusInProgress, true},
		{"failed to pending", StepStatusFailed, StepStatusPending, false},
		{"completed is terminal", StepStatusCompleted, StepStatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := &WorkflowStep{Status: tt.from}
			assert.Equal(t, tt.allowed, step.CanTransitionTo(tt.to))
		})
	}
}

func TestResolution_Verified(t *testing.T) {
	assert.False(t, (&Resolution{ImplementedBy: "alice"}).Verified())
	assert.False(t, (&Resolution{ImplementedBy: "alice", VerifiedBy: "alice"}).Verified())
	assert.True(t, (&Resolution{ImplementedBy: "alice", VerifiedBy: "bob"}).Verified())
}

func TestIssue_IsOpen(t *testing.T) {
	open := []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusPendingVerification}
	for _, status := range open {
		assert.True(t, (&Issue{Status: status}).IsOpen(), string(status))
	}

	assert.False(t, (&Issue{Status: IssueStatusResolved}).IsOpen())
	assert.False(t, (&Issue{Status: IssueStatusClosed}).IsOpen())
}

func TestIssue_Overdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Issue{}).Overdue(now))
	assert.True(t, (&Issue{DueDate: &past}).Overdue(now))
	assert.False(t, (&Issue{DueDate: &future}).Overdue(now))
}

func TestSnapshot(t *testing.T) {
	assert.Nil(t, Snapshot(nil))

	raw := Snapshot(&CycleInstance{ID: "c1", ReportID: "FR2052a"})
	assert.Contains(t, string(raw), `"report_id":"FR2052a"`)
}

func TestIsValidSeverity(t *testing.T) {
	for _, severity := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		assert.True(t, IsValidSeverity(severity))
	}

	assert.False(t, IsValidSeverity(Severity("catastrophic")))
}
