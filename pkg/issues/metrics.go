package issues

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/custodia-hq/custodia/pkg/models"
)

// Filters narrows the issue set a metrics aggregation runs over. Zero-valued
// fields are ignored.
type Filters struct {
	Severity      models.Severity `json:"severity,omitempty"`
	ReportID      string          `json:"report_id,omitempty"`
	DataDomain    string          `json:"data_domain,omitempty"`
	Assignee      string          `json:"assignee,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}

func (f Filters) matches(issue *models.Issue) bool {
	if f.Severity != "" && issue.Severity != f.Severity {
		return false
	}

	if f.ReportID != "" && issue.ReportID != f.ReportID {
		return false
	}

	if f.DataDomain != "" && issue.DataDomain != f.DataDomain {
		return false
	}

	if f.Assignee != "" && issue.Assignee != f.Assignee {
		return false
	}

	if f.CreatedAfter != nil && issue.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}

	if f.CreatedBefore != nil && issue.CreatedAt.After(*f.CreatedBefore) {
		return false
	}

	return true
}

// Theme is one recurring root-cause bucket with its occurrence count.
type Theme struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

// Metrics is the aggregated view over the filtered issue set.
type Metrics struct {
	OpenCount         int                     `json:"open_count"`
	OpenBySeverity    map[models.Severity]int `json:"open_by_severity"`
	AvgResolutionTime time.Duration           `json:"avg_resolution_time"`
	RecurringThemes   []Theme                 `json:"recurring_themes"`
}

// themeBuckets maps recurring data-quality themes to the keywords that
// identify them in free-text root causes. Longest keyword match wins.
var themeBuckets = map[string][]string{
	"completeness": {"missing", "null", "empty", "incomplete", "completeness"},
	"accuracy":     {"incorrect", "wrong", "mismatch", "inaccurate", "accuracy"},
	"timeliness":   {"late", "delayed", "stale", "timeliness"},
	"consistency":  {"inconsistent", "duplicate", "conflicting", "consistency"},
	"lineage":      {"lineage", "upstream", "source system", "transformation"},
	"access":       {"access", "permission", "entitlement"},
}

// GetIssueMetrics computes the open-issue counts, average resolution time and
// recurring root-cause themes over the filtered issue set.
func (e *Engine) GetIssueMetrics(ctx context.Context, filters Filters) (*Metrics, error) {
	all, err := e.persistence.Issues().GetAll(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{
		OpenBySeverity:  make(map[models.Severity]int),
		RecurringThemes: make([]Theme, 0),
	}

	themeCounts := make(map[string]int)

	var (
		resolutionTotal time.Duration
		resolvedCount   int
	)

	for _, issue := range all {
		if !filters.matches(issue) {
			continue
		}

		if issue.IsOpen() {
			metrics.OpenCount++
			metrics.OpenBySeverity[issue.Severity]++
		}

		if issue.Status == models.IssueStatusClosed && issue.Resolution != nil && !issue.Resolution.ImplementedAt.IsZero() {
			resolutionTotal += issue.Resolution.ImplementedAt.Sub(issue.CreatedAt)
			resolvedCount++
		}

		if theme := classifyRootCause(issue.RootCause); theme != "" {
			themeCounts[theme]++
		}
	}

	if resolvedCount > 0 {
		metrics.AvgResolutionTime = resolutionTotal / time.Duration(resolvedCount)
	}

	for theme, count := range themeCounts {
		if count > 1 {
			metrics.RecurringThemes = append(metrics.RecurringThemes, Theme{Theme: theme, Count: count})
		}
	}

	sort.Slice(metrics.RecurringThemes, func(i, j int) bool {
		if metrics.RecurringThemes[i].Count != metrics.RecurringThemes[j].Count {
			return metrics.RecurringThemes[i].Count > metrics.RecurringThemes[j].Count
		}

		return metrics.RecurringThemes[i].Theme < metrics.RecurringThemes[j].Theme
	})

	return metrics, nil
}

// classifyRootCause buckets a free-text root cause: the longest keyword match
// across the fixed theme set wins, falling back to the first significant word
// of the text. Empty input yields no theme.
func classifyRootCause(rootCause string) string {
	text := strings.ToLower(strings.TrimSpace(rootCause))
	if text == "" {
		return ""
	}

	var (
		bestTheme string
		bestLen   int
	)

	for theme, keywords := range themeBuckets {
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) && len(keyword) > bestLen {
				bestTheme = theme
				bestLen = len(keyword)
			}
		}
	}

	if bestTheme != "" {
		return bestTheme
	}

	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(word) >= 4 {
			return word
		}
	}

	return ""
}
