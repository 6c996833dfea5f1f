package models

import "time"

// Metric trends between two analyses. Issue counts shrink when a site
// improves, so a negative change is improving.
const (
	TrendImproving = "improving"
	TrendWorsening = "worsening"
	TrendStable    = "stable"
)

// MetricChange describes how one counter moved between the previous and
// current analysis.
type MetricChange struct {
	Previous      int     `json:"previous"`
	Current       int     `json:"current"`
	Change        int     `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Trend         string  `json:"trend"`
}

// CompareMetric computes the change between two counter values. A previous
// value of zero yields +100% for any increase, so new issue classes show up
// prominently instead of dividing by zero.
func CompareMetric(previous, current int) MetricChange {
	change := current - previous

	var percent float64
	if previous == 0 {
		if current != 0 {
			percent = 100
		}
	} else {
		percent = float64(change) / float64(previous) * 100
	}

	trend := TrendStable
	if change < 0 {
		trend = TrendImproving
	} else if change > 0 {
		trend = TrendWorsening
	}

	return MetricChange{
		Previous:      previous,
		Current:       current,
		Change:        change,
		PercentChange: percent,
		Trend:         trend,
	}
}

// AnalysisComparison is the trend report between a client's two most recent
// analyses. HasPrevious is false when fewer than two analyses exist, in
// which case Metrics is empty.
type AnalysisComparison struct {
	HasPrevious  bool                    `json:"has_previous"`
	PreviousDate time.Time               `json:"previous_date,omitempty"`
	CurrentDate  time.Time               `json:"current_date,omitempty"`
	DaysBetween  int                     `json:"days_between,omitempty"`
	Metrics      map[string]MetricChange `json:"metrics,omitempty"`
}

// Compare builds the trend report for the errors, warnings and notices
// counters of two analyses. Either argument nil yields HasPrevious=false.
func Compare(previous, current *Analysis) AnalysisComparison {
	if previous == nil || current == nil {
		return AnalysisComparison{HasPrevious: false}
	}
	return AnalysisComparison{
		HasPrevious:  true,
		PreviousDate: previous.AnalysisDate,
		CurrentDate:  current.AnalysisDate,
		DaysBetween:  int(current.AnalysisDate.Sub(previous.AnalysisDate).Hours() / 24),
		Metrics: map[string]MetricChange{
			"errors":   CompareMetric(previous.TotalErrors, current.TotalErrors),
			"warnings": CompareMetric(previous.TotalWarnings, current.TotalWarnings),
			"notices":  CompareMetric(previous.TotalNotices, current.TotalNotices),
		},
	}
}
