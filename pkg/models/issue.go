package models

import "time"

// Severity ranks an issue by regulatory impact. It drives the SLA clock and
// the escalation thresholds.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValidSeverity reports whether s is a member of the closed enumeration.
func IsValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// IssueStatus represents the lifecycle state of a data-quality issue.
type IssueStatus string

const (
	IssueStatusOpen                IssueStatus = "open"
	IssueStatusInProgress          IssueStatus = "in_progress"
	IssueStatusPendingVerification IssueStatus = "pending_verification"
	IssueStatusResolved            IssueStatus = "resolved"
	IssueStatusClosed              IssueStatus = "closed" // Terminal; requires four-eyes verification
)

// Resolution records how an issue was fixed. History is never rewritten: a
// re-resolution is a new record appended via the audit trail, the issue keeps
// the latest.
type Resolution struct {
	ImplementedBy string     `json:"implemented_by" validate:"required"`
	ImplementedAt time.Time  `json:"implemented_at"`
	VerifiedBy    string     `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	Description   string     `json:"description"`
}

// Verified reports whether a second party distinct from the implementer has
// confirmed the resolution (the four-eyes principle).
func (r *Resolution) Verified() bool {
	return r.VerifiedBy != "" && r.VerifiedBy != r.ImplementedBy
}

// Issue is a data-quality finding raised from a failed rule execution. Issues
// are never hard-deleted; the terminal state is closed, which requires a
// verifier distinct from the implementer.
type Issue struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Severity        Severity    `json:"severity" validate:"required,oneof=critical high medium low"`
	Status          IssueStatus `json:"status"`
	EscalationLevel int         `json:"escalation_level"`
	EscalatedAt     *time.Time  `json:"escalated_at,omitempty"`
	DueDate         *time.Time  `json:"due_date,omitempty"`
	Assignee        string      `json:"assignee,omitempty"`
	RootCause       string      `json:"root_cause,omitempty"`
	Resolution      *Resolution `json:"resolution,omitempty"`

	// Provenance: which rule, CDE and domain the issue concerns.
	RuleID     string `json:"rule_id,omitempty"`
	CDEID      string `json:"cde_id,omitempty"`
	DataDomain string `json:"data_domain,omitempty"`
	ReportID   string `json:"report_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OpenStatuses lists the statuses counted as open by the metrics aggregation.
func OpenStatuses() []IssueStatus {
	return []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusPendingVerification}
}

// IsOpen reports whether the issue still counts against open-issue metrics.
func (i *Issue) IsOpen() bool {
	switch i.Status {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusPendingVerification:
		return true
	default:
		return false
	}
}

// Overdue reports whether the issue has a due date in the past relative to now.
func (i *Issue) Overdue(now time.Time) bool {
	return i.DueDate != nil && i.DueDate.Before(now)
}

// RuleExecutionResult is the outcome of running one data-quality rule,
// produced by the external rule-execution agent. Only failed results may be
// turned into issues.
type RuleExecutionResult struct {
	RuleID        string         `json:"rule_id" validate:"required"`
	Passed        bool           `json:"passed"`
	FailedRecords int            `json:"failed_records"`
	TotalRecords  int            `json:"total_records"`
	Details       map[string]any `json:"details,omitempty"`
	ExecutedAt    time.Time      `json:"executed_at"`
}

// IssueContext tells the issue engine which CDE, domain and report a failed
// rule result concerns. Severity derivation reads it: an approved CDE makes
// the issue critical.
type IssueContext struct {
	ReportID    string `json:"report_id"`
	CDEID       string `json:"cde_id,omitempty"`
	CDEApproved bool   `json:"cde_approved,omitempty"`
	DataDomain  string `json:"data_domain,omitempty"`
	Source      string `json:"source,omitempty"`
}
