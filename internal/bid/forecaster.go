package bid

import (
	"fmt"
	"strings"
)

// forecastCycles is how many future bid cycles are projected per record.
const forecastCycles = 3

const predictionIDInfix = "_pred_"

// Forecast projects future recurring bids from historical service durations.
// For every actual record with a known duration it emits one synthetic
// record per cycle, dated duration*cycle calendar months after the anchor
// date. Records without a duration, and records that are themselves
// predictions, produce nothing. The generator has no failure mode:
// unparsable anchor dates fall back to the record's year/month.
func Forecast(actual []Record) []Record {
	var predictions []Record
	for _, r := range actual {
		if r.ServiceDurationMonths <= 0 || r.IsPrediction {
			continue
		}

		anchor, ok := parseBidDateTime(r.ExpectedBidDate)
		if !ok {
			anchor = monthStart(r.ExpectedYear, r.ExpectedMonth)
		}

		for cycle := 1; cycle <= forecastCycles; cycle++ {
			predicted := anchor.AddDate(0, r.ServiceDurationMonths*cycle, 0)

			p := r
			p.ID = fmt.Sprintf("%s%s%d", r.ID, predictionIDInfix, cycle)
			p.Title = fmt.Sprintf("%s (%d차 예측)", r.Title, cycle)
			p.ExpectedBidDate = formatDateOnly(predicted)
			p.ExpectedYear = predicted.Year()
			p.ExpectedMonth = int(predicted.Month())
			p.IsPrediction = true
			p.PredictionCycle = cycle
			// A forecast never claims an award outcome.
			p.AwardedVendor = ""
			p.AwardedAmount = 0
			predictions = append(predictions, p)
		}
	}
	return predictions
}

// BaseID resolves a prediction id back to the id of the record it was
// derived from. Actual ids pass through unchanged. Annotation writes are
// always keyed by the base id.
func BaseID(id string) string {
	if i := strings.Index(id, predictionIDInfix); i >= 0 {
		return id[:i]
	}
	return id
}
