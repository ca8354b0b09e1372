package bid

import (
	"testing"
	"time"
)

func fixtureYear() []Record {
	return []Record{
		{ID: "a", ExpectedYear: 2024, ExpectedMonth: 1, ExpectedBidDate: "2024-01-10", ContractAmount: 100, AwardedVendor: "낙찰사 A"},
		{ID: "b", ExpectedYear: 2024, ExpectedMonth: 1, ExpectedBidDate: "2024-01-20", ContractAmount: 200},
		{ID: "c", ExpectedYear: 2024, ExpectedMonth: 7, ExpectedBidDate: "2024-07-01", ContractAmount: 300, AwardedVendor: "낙찰사 B"},
		{ID: "a_pred_1", ExpectedYear: 2024, ExpectedMonth: 7, ExpectedBidDate: "2024-07-10", ContractAmount: 100, IsPrediction: true, PredictionCycle: 1},
		{ID: "other-year", ExpectedYear: 2025, ExpectedMonth: 1, ExpectedBidDate: "2025-01-05", ContractAmount: 999},
	}
}

func TestSummarize_MonthlySeriesKeepsActualAndPredictedApart(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	summary := Summarize(fixtureYear(), 2024, now)

	if len(summary.Monthly) != 12 {
		t.Fatalf("expected 12 month buckets, got %d", len(summary.Monthly))
	}

	jan := summary.Monthly[0]
	if jan.ActualAmount != 300 || jan.PredictedAmount != 0 || jan.BidCount != 2 {
		t.Errorf("january: got actual=%d predicted=%d count=%d", jan.ActualAmount, jan.PredictedAmount, jan.BidCount)
	}

	jul := summary.Monthly[6]
	if jul.ActualAmount != 300 || jul.PredictedAmount != 100 || jul.BidCount != 2 {
		t.Errorf("july: got actual=%d predicted=%d count=%d", jul.ActualAmount, jul.PredictedAmount, jul.BidCount)
	}
}

func TestSummarize_StatsOverActualOnly(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	summary := Summarize(fixtureYear(), 2024, now)

	if summary.Stats.TotalBids != 3 {
		t.Errorf("expected 3 actual bids, got %d", summary.Stats.TotalBids)
	}
	if summary.Stats.TotalAmount != 600 {
		t.Errorf("expected total amount 600, got %d", summary.Stats.TotalAmount)
	}
	if summary.Stats.AwardedBids != 2 {
		t.Errorf("expected 2 awarded bids, got %d", summary.Stats.AwardedBids)
	}
	if summary.Stats.CompletionRate != 67 {
		t.Errorf("expected completion rate round(2/3*100)=67, got %d", summary.Stats.CompletionRate)
	}
	if summary.Stats.PredictionCount != 1 {
		t.Errorf("expected 1 prediction, got %d", summary.Stats.PredictionCount)
	}

	// The monthly actual sums and the headline total are the same set.
	var monthlyActual int64
	for _, b := range summary.Monthly {
		monthlyActual += b.ActualAmount
	}
	if monthlyActual != summary.Stats.TotalAmount {
		t.Errorf("monthly actual sum %d != stats total %d", monthlyActual, summary.Stats.TotalAmount)
	}
}

func TestSummarize_CompletionRateZeroGuard(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	summary := Summarize(nil, 2024, now)

	if summary.Stats.CompletionRate != 0 {
		t.Errorf("expected 0 completion rate on empty year, got %d", summary.Stats.CompletionRate)
	}
	if summary.Stats.TotalBids != 0 || summary.Stats.TotalAmount != 0 {
		t.Errorf("expected empty stats, got %+v", summary.Stats)
	}
}

func TestSummarize_UpcomingSortedAndCapped(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var records []Record
	for month := 1; month <= 12; month++ {
		records = append(records, Record{
			ID:              string(rune('a' + month)),
			ExpectedYear:    2024,
			ExpectedMonth:   month,
			ExpectedBidDate: time.Date(2024, time.Month(month), 15, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		})
	}
	// A prediction later in the year participates too.
	records = append(records, Record{
		ID: "p_pred_1", IsPrediction: true, PredictionCycle: 1,
		ExpectedYear: 2024, ExpectedMonth: 8, ExpectedBidDate: "2024-08-01",
	})

	summary := Summarize(records, 2024, now)

	if len(summary.Upcoming) != 8 {
		// June 15 onward: months 6..12 plus the August prediction.
		t.Fatalf("expected 8 upcoming records, got %d", len(summary.Upcoming))
	}
	for i := 1; i < len(summary.Upcoming); i++ {
		prev := expectedDate(summary.Upcoming[i-1])
		cur := expectedDate(summary.Upcoming[i])
		if cur.Before(prev) {
			t.Fatalf("upcoming not sorted ascending at %d: %s before %s", i, cur, prev)
		}
	}
	for _, r := range summary.Upcoming {
		if expectedDate(r).Before(now) {
			t.Errorf("record %q is in the past", r.ID)
		}
	}
}

func TestSummarize_UpcomingCapAtTen(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var records []Record
	for day := 1; day <= 15; day++ {
		records = append(records, Record{
			ID:              time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC).Format("id-2006-01-02"),
			ExpectedYear:    2024,
			ExpectedMonth:   3,
			ExpectedBidDate: time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		})
	}

	summary := Summarize(records, 2024, now)
	if len(summary.Upcoming) != 10 {
		t.Fatalf("expected upcoming capped at 10, got %d", len(summary.Upcoming))
	}
}
