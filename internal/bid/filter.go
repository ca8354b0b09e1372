package bid

import (
	"strings"
	"time"
)

// LifecycleStatus classifies a notice against its begin/close window. It is
// recomputed on every evaluation, never stored.
type LifecycleStatus string

const (
	StatusBefore  LifecycleStatus = "before"
	StatusOngoing LifecycleStatus = "ongoing"
	StatusClosed  LifecycleStatus = "closed"
	// StatusUnknown means one of the window bounds is missing. It matches
	// only the "all" filter, never a specific status.
	StatusUnknown LifecycleStatus = "insufficient-info"
)

// Lifecycle derives the notice status from the begin/close timestamps
// relative to now.
func Lifecycle(r Record, now time.Time) LifecycleStatus {
	if r.NoticeBeginAt == nil || r.NoticeCloseAt == nil {
		return StatusUnknown
	}
	switch {
	case now.Before(*r.NoticeBeginAt):
		return StatusBefore
	case now.After(*r.NoticeCloseAt):
		return StatusClosed
	default:
		return StatusOngoing
	}
}

// BudgetThreshold is the fixed budget floor applied when the budget toggle
// is on. The toggle overrides any explicit MinBudget rather than combining
// with it, matching the dashboard's behavior.
const BudgetThreshold int64 = 2_000_000_000

// Criteria are the search filters. Zero values match everything; set fields
// combine with AND semantics.
type Criteria struct {
	// Year filters on ExpectedYear; 0 matches any year.
	Year int
	// Query is a case-insensitive substring match against the title. When
	// SearchOrg is set (the list view) it also matches the requesting org.
	Query     string
	SearchOrg bool

	MinBudget       int64
	BudgetThreshold bool

	// Status is one of "", "all", "before", "ongoing", "closed".
	Status string
	// ReNotice is one of "", "all", "yes", "no".
	ReNotice string
}

// Filter applies the criteria over a bid set, returning a new slice with
// input order preserved. Records are never mutated.
func Filter(records []Record, c Criteria, now time.Time) []Record {
	query := strings.ToLower(strings.TrimSpace(c.Query))

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if c.Year != 0 && r.ExpectedYear != c.Year {
			continue
		}

		if query != "" {
			matched := strings.Contains(strings.ToLower(r.Title), query)
			if !matched && c.SearchOrg {
				matched = strings.Contains(strings.ToLower(r.RequestingOrg), query)
			}
			if !matched {
				continue
			}
		}

		threshold := c.MinBudget
		if c.BudgetThreshold {
			threshold = BudgetThreshold
		}
		if r.BudgetAmount < threshold {
			continue
		}

		if c.Status != "" && c.Status != "all" {
			if Lifecycle(r, now) != LifecycleStatus(c.Status) {
				continue
			}
		}

		switch c.ReNotice {
		case "yes":
			if !r.ReNotice {
				continue
			}
		case "no":
			if r.ReNotice {
				continue
			}
		}

		out = append(out, r)
	}
	return out
}

// SearchResultStats summarizes a filtered set for the search view header.
type SearchResultStats struct {
	Total         int     `json:"total"`
	AvgBudget     int64   `json:"avg_budget"`
	MaxBudget     int64   `json:"max_budget"`
	ReNoticeCount int     `json:"re_notice_count"`
	ReNoticeRate  float64 `json:"re_notice_rate"`
}

// SearchStats computes header stats over an already-filtered set.
func SearchStats(filtered []Record) SearchResultStats {
	stats := SearchResultStats{Total: len(filtered)}
	if stats.Total == 0 {
		return stats
	}

	var sum int64
	for _, r := range filtered {
		sum += r.BudgetAmount
		if r.BudgetAmount > stats.MaxBudget {
			stats.MaxBudget = r.BudgetAmount
		}
		if r.ReNotice {
			stats.ReNoticeCount++
		}
	}
	stats.AvgBudget = sum / int64(stats.Total)
	stats.ReNoticeRate = float64(stats.ReNoticeCount) / float64(stats.Total) * 100
	return stats
}
