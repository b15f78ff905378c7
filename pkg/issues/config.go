package issues

import (
	"time"

	"github.com/custodia-hq/custodia/pkg/models"
)

// Config carries the SLA and escalation tables. The engine itself is
// timer-agnostic: cadence belongs to the caller-owned scheduler.
type Config struct {
	// SLA maps severity to the time allowed before an issue is due.
	SLA map[models.Severity]time.Duration

	// EscalationThreshold is the overdue grace per severity before a scan
	// escalates the issue.
	EscalationThreshold map[models.Severity]time.Duration

	// DomainSeverity maps a data domain to its configured criticality, used
	// when an issue context names a domain but no approved CDE.
	DomainSeverity map[string]models.Severity

	// MaxEscalationLevel caps scan-driven escalation.
	MaxEscalationLevel int
}

// DefaultConfig returns the suggested SLA and escalation defaults.
func DefaultConfig() Config {
	return Config{
		SLA: map[models.Severity]time.Duration{
			models.SeverityCritical: 1 * time.Hour,
			models.SeverityHigh:     4 * time.Hour,
			models.SeverityMedium:   24 * time.Hour,
			models.SeverityLow:      72 * time.Hour,
		},
		EscalationThreshold: map[models.Severity]time.Duration{
			models.SeverityCritical: 0,
			models.SeverityHigh:     30 * time.Minute,
			models.SeverityMedium:   2 * time.Hour,
			models.SeverityLow:      8 * time.Hour,
		},
		DomainSeverity: map[string]models.Severity{
			"finance":   models.SeverityHigh,
			"risk":      models.SeverityHigh,
			"customer":  models.SeverityMedium,
			"reference": models.SeverityLow,
		},
		MaxEscalationLevel: 3,
	}
}

// sla returns the configured SLA for a severity, falling back to the medium
// default when the table has no entry.
func (c Config) sla(severity models.Severity) time.Duration {
	if d, ok := c.SLA[severity]; ok {
		return d
	}

	return 24 * time.Hour
}

func (c Config) threshold(severity models.Severity) time.Duration {
	return c.EscalationThreshold[severity]
}
