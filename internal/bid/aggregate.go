package bid

import (
	"math"
	"sort"
	"time"
)

// upcomingLimit caps the "next expected bids" list.
const upcomingLimit = 10

// MonthBucket is one month of the chart series. Actual and predicted sums
// are kept separate so callers can stack and color them independently; the
// count covers both.
type MonthBucket struct {
	Month           int   `json:"month"`
	ActualAmount    int64 `json:"actual_amount"`
	PredictedAmount int64 `json:"predicted_amount"`
	BidCount        int   `json:"bid_count"`
}

// YearStats is computed over the year's actual records only, except
// PredictionCount which counts the forecasts for the same year.
type YearStats struct {
	TotalAmount     int64 `json:"total_amount"`
	TotalBids       int   `json:"total_bids"`
	AwardedBids     int   `json:"awarded_bids"`
	CompletionRate  int   `json:"completion_rate"`
	PredictionCount int   `json:"prediction_count"`
}

type YearSummary struct {
	Year     int           `json:"year"`
	Monthly  []MonthBucket `json:"monthly"`
	Stats    YearStats     `json:"stats"`
	Upcoming []Record      `json:"upcoming"`
}

// Summarize aggregates the merged bid set for one year into chart-ready
// monthly series, headline stats, and the upcoming list. Amounts stay raw
// whole-currency integers; unit formatting is the display layer's concern.
func Summarize(records []Record, year int, now time.Time) YearSummary {
	var yearRecords []Record
	for _, r := range records {
		if r.ExpectedYear == year {
			yearRecords = append(yearRecords, r)
		}
	}

	monthly := make([]MonthBucket, 12)
	for i := range monthly {
		monthly[i].Month = i + 1
	}

	var stats YearStats
	for _, r := range yearRecords {
		if r.ExpectedMonth >= 1 && r.ExpectedMonth <= 12 {
			b := &monthly[r.ExpectedMonth-1]
			b.BidCount++
			if r.IsPrediction {
				b.PredictedAmount += r.ContractAmount
			} else {
				b.ActualAmount += r.ContractAmount
			}
		}

		if r.IsPrediction {
			stats.PredictionCount++
			continue
		}
		stats.TotalBids++
		stats.TotalAmount += r.ContractAmount
		if r.AwardedVendor != "" {
			stats.AwardedBids++
		}
	}
	if stats.TotalBids > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.AwardedBids) / float64(stats.TotalBids) * 100))
	}

	var upcoming []Record
	for _, r := range yearRecords {
		if !expectedDate(r).Before(now) {
			upcoming = append(upcoming, r)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return expectedDate(upcoming[i]).Before(expectedDate(upcoming[j]))
	})
	if len(upcoming) > upcomingLimit {
		upcoming = upcoming[:upcomingLimit]
	}

	return YearSummary{Year: year, Monthly: monthly, Stats: stats, Upcoming: upcoming}
}

// expectedDate resolves a record's expected bid time, reconstructing from
// the year/month pair when the stored date string is unparsable.
func expectedDate(r Record) time.Time {
	if t, ok := parseBidDateTime(r.ExpectedBidDate); ok {
		return t
	}
	return monthStart(r.ExpectedYear, r.ExpectedMonth)
}
