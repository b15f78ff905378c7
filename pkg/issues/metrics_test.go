package issues

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-hq/custodia/pkg/models"
)

func seedIssue(t *testing.T, env *engineEnv, issue *models.Issue) {
	t.Helper()

	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = baseTime
	}

	require.NoError(t, env.persistence.Issues().Save(context.Background(), issue))
}

func TestGetIssueMetrics_OpenCounts(t *testing.T) {
	env := newEngineEnv(t)

	seedIssue(t, env, &models.Issue{ID: "i1", Status: models.IssueStatusOpen, Severity: models.SeverityCritical})
	seedIssue(t, env, &models.Issue{ID: "i2", Status: models.IssueStatusInProgress, Severity: models.SeverityHigh})
	seedIssue(t, env, &models.Issue{ID: "i3", Status: models.IssueStatusPendingVerification, Severity: models.SeverityHigh})
	seedIssue(t, env, &models.Issue{ID: "i4", Status: models.IssueStatusClosed, Severity: models.SeverityLow})

	metrics, err := env.engine.GetIssueMetrics(context.Background(), Filters{})
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.OpenCount)
	assert.Equal(t, 1, metrics.OpenBySeverity[models.SeverityCritical])
	assert.Equal(t, 2, metrics.OpenBySeverity[models.SeverityHigh])
	assert.Zero(t, metrics.OpenBySeverity[models.SeverityLow])
}

func TestGetIssueMetrics_AvgResolutionTime(t *testing.T) {
	env := newEngineEnv(t)

	seedIssue(t, env, &models.Issue{
		ID:        "i1",
		Status:    models.IssueStatusClosed,
		Severity:  models.SeverityHigh,
		CreatedAt: baseTime,
		Resolution: &models.Resolution{
			ImplementedBy: "alice",
			ImplementedAt: baseTime.Add(2 * time.Hour),
			VerifiedBy:    "bob",
		},
	})
	seedIssue(t, env, &models.Issue{
		ID:        "i2",
		Status:    models.IssueStatusClosed,
		Severity:  models.SeverityMedium,
		CreatedAt: baseTime,
		Resolution: &models.Resolution{
			ImplementedBy: "alice",
			ImplementedAt: baseTime.Add(6 * time.Hour),
			VerifiedBy:    "bob",
		},
	})
	// Open issue does not contribute to the average.
	seedIssue(t, env, &models.Issue{ID: "i3", Status: models.IssueStatusOpen, Severity: models.SeverityLow})

	metrics, err := env.engine.GetIssueMetrics(context.Background(), Filters{})
	require.NoError(t, err)

	assert.Equal(t, 4*time.Hour, metrics.AvgResolutionTime)
}

func TestGetIssueMetrics_Filters(t *testing.T) {
	env := newEngineEnv(t)

	seedIssue(t, env, &models.Issue{ID: "i1", Status: models.IssueStatusOpen, Severity: models.SeverityHigh, ReportID: "BCBS239", Assignee: "alice"})
	seedIssue(t, env, &models.Issue{ID: "i2", Status: models.IssueStatusOpen, Severity: models.SeverityHigh, ReportID: "FINREP", Assignee: "bob"})
	seedIssue(t, env, &models.Issue{ID: "i3", Status: models.IssueStatusOpen, Severity: models.SeverityLow, ReportID: "BCBS239", Assignee: "alice"})

	metrics, err := env.engine.GetIssueMetrics(context.Background(), Filters{ReportID: "BCBS239"})
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.OpenCount)

	metrics, err = env.engine.GetIssueMetrics(context.Background(), Filters{ReportID: "BCBS239", Severity: models.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.OpenCount)

	metrics, err = env.engine.GetIssueMetrics(context.Background(), Filters{Assignee: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.OpenCount)
}

func TestGetIssueMetrics_CreatedWindow(t *testing.T) {
	env := newEngineEnv(t)

	seedIssue(t, env, &models.Issue{ID: "i1", Status: models.IssueStatusOpen, Severity: models.SeverityHigh, CreatedAt: baseTime})
	seedIssue(t, env, &models.Issue{ID: "i2", Status: models.IssueStatusOpen, Severity: models.SeverityHigh, CreatedAt: baseTime.Add(48 * time.Hour)})

	cutoff := baseTime.Add(24 * time.Hour)

	metrics, err := env.engine.GetIssueMetrics(context.Background(), Filters{CreatedAfter: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.OpenCount)

	metrics, err = env.engine.GetIssueMetrics(context.Background(), Filters{CreatedBefore: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.OpenCount)
}

func TestGetIssueMetrics_RecurringThemes(t *testing.T) {
	env := newEngineEnv(t)

	seedIssue(t, env, &models.Issue{ID: "i1", Status: models.IssueStatusOpen, Severity: models.SeverityHigh, RootCause: "missing counterparty identifiers"})
	seedIssue(t, env, &models.Issue{ID: "i2", Status: models.IssueStatusOpen, Severity: models.SeverityHigh, RootCause: "null values in the balance column"})
	seedIssue(t, env, &models.Issue{ID: "i3", Status: models.IssueStatusOpen, Severity: models.SeverityMedium, RootCause: "stale feed from the upstream warehouse"})
	seedIssue(t, env, &models.Issue{ID: "i4", Status: models.IssueStatusOpen, Severity: models.SeverityMedium, RootCause: "incorrect currency conversion"})

	metrics, err := env.engine.GetIssueMetrics(context.Background(), Filters{})
	require.NoError(t, err)

	// Only themes that recur (count > 1) are reported.
	require.Len(t, metrics.RecurringThemes, 1)
	assert.Equal(t, "completeness", metrics.RecurringThemes[0].Theme)
	assert.Equal(t, 2, metrics.RecurringThemes[0].Count)
}

func TestGetIssueMetrics_ThemeOrdering(t *testing.T) {
	env := newEngineEnv(t)

	rootCauses := []string{
		"missing trade legs",
		"null settlement dates",
		"empty account references",
		"incorrect notional amounts",
		"wrong currency codes",
	}

	for i, rootCause := range rootCauses {
		seedIssue(t, env, &models.Issue{
			ID:        string(rune('a' + i)),
			Status:    models.IssueStatusOpen,
			Severity:  models.SeverityMedium,
			RootCause: rootCause,
		})
	}

	metrics, err := env.engine.GetIssueMetrics(context.Background(), Filters{})
	require.NoError(t, err)

	require.Len(t, metrics.RecurringThemes, 2)
	assert.Equal(t, Theme{Theme: "completeness", Count: 3}, metrics.RecurringThemes[0])
	assert.Equal(t, Theme{Theme: "accuracy", Count: 2}, metrics.RecurringThemes[1])
}

func TestClassifyRootCause(t *testing.T) {
	tests := []struct {
		rootCause string
		want      string
	}{
		{"missing values in mandatory fields", "completeness"},
		{"Lineage break at the transformation layer", "lineage"},
		{"no access to the entitlement store", "access"},
		{"duplicate trade bookings", "consistency"},
		{"delayed end-of-day snapshot", "timeliness"},
		{"weird spreadsheet macro", "weird"},
		{"", ""},
		{"a b c", ""},
	}

	for _, tt := range tests {
		t.Run(tt.rootCause, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRootCause(tt.rootCause))
		})
	}
}
