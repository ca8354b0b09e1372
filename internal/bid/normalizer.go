package bid

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// FromGrouped converts one entry of the curated grouped store into a
// canonical Record. fields carries the store's Korean source keys. now is
// only used as the documented fallback when the year/month grouping keys are
// unparsable. The function is total: malformed input degrades to defaults,
// it never fails.
func FromGrouped(yearKey, monthKey, id string, fields map[string]any, annotations map[string]Annotation, now time.Time) Record {
	year, err := strconv.Atoi(yearKey)
	if err != nil || year < 1000 || year > 9999 {
		year = now.Year()
	}
	month, err := strconv.Atoi(monthKey)
	if err != nil || month < 1 || month > 12 {
		month = 1
	}

	title := asString(fields, "공고명")
	if title == "" {
		title = PlaceholderTitle
	}
	org := asString(fields, "채권자명")
	if org == "" {
		org = PlaceholderOrg
	}

	date := asString(fields, "입찰일시")
	if date == "" {
		date = fmt.Sprintf("%04d-%02d-01", year, month)
	}

	r := Record{
		ID:              id,
		Title:           title,
		RequestingOrg:   org,
		AnnouncementURL: asString(fields, "입찰공고URL"),
		ContractAmount:  asInt64(fields, "사업금액"),
		AwardedVendor:   asString(fields, "개찰업체정보"),
		AwardedAmount:   asInt64(fields, "낙찰금액"),
		FailureReason:   asString(fields, "유찰사유"),
		ExpectedBidDate: date,
		ExpectedYear:    year,
		ExpectedMonth:   month,
	}

	if ann, ok := annotations[id]; ok && ann.ServiceDurationMonths > 0 {
		r.ServiceDurationMonths = ann.ServiceDurationMonths
	}

	return r
}

// FromDocument converts one flat document-store notice into a canonical
// Record. The document keeps the G2B field names it was collected with.
func FromDocument(doc map[string]any, annotations map[string]Annotation, now time.Time) Record {
	id := asString(doc, "id")
	if id == "" {
		id = asString(doc, "bidNtceNo")
	}

	title := asString(doc, "bidNtceNm")
	if title == "" {
		title = PlaceholderTitle
	}
	org := asString(doc, "dminsttNm")
	if org == "" {
		org = asString(doc, "ntceInsttNm")
	}
	if org == "" {
		org = PlaceholderOrg
	}
	url := asString(doc, "bidNtceUrl")
	if url == "" {
		url = asString(doc, "stdNtceDocUrl")
	}

	date := asString(doc, "bidNtceDt")
	year, month := now.Year(), int(now.Month())
	if t, ok := parseBidDateTime(date); ok {
		year, month = t.Year(), int(t.Month())
	} else if date == "" {
		date = fmt.Sprintf("%04d-%02d-01", year, month)
	}

	budget := asInt64(doc, "asignBdgtAmt")

	vendor := asString(doc, "sucsfbidMthdNm")
	if vendor == "" {
		vendor = "진행중"
	}

	r := Record{
		ID:              id,
		Title:           title,
		RequestingOrg:   org,
		AnnouncementURL: url,
		ContractAmount:  budget,
		AwardedVendor:   vendor,
		AwardedAmount:   budget,
		ExpectedBidDate: date,
		ExpectedYear:    year,
		ExpectedMonth:   month,
		BudgetAmount:    budget,
		EstimatedPrice:  asInt64(doc, "presmptPrce"),
		ReNotice:        isReNotice(asString(doc, "reNtceYn")),
	}

	if t, ok := parseBidDateTime(asString(doc, "bidBeginDt")); ok {
		r.NoticeBeginAt = &t
	}
	if t, ok := parseBidDateTime(asString(doc, "bidClseDt")); ok {
		r.NoticeCloseAt = &t
	}

	if ann, ok := annotations[id]; ok && ann.ServiceDurationMonths > 0 {
		r.ServiceDurationMonths = ann.ServiceDurationMonths
	}

	return r
}

// isReNotice collapses the source's inconsistent re-notice encodings into a
// boolean. Both the flag value "Y" and the literal label "재공고" mean yes;
// this is the single place that interprets the raw flag.
func isReNotice(raw string) bool {
	return raw == "Y" || raw == "재공고"
}

// BuildRecords walks a grouped snapshot and normalizes every entry, merging
// annotations by bid id. Keys are visited in sorted order so output ordering
// is deterministic for identical input.
func BuildRecords(snap GroupedSnapshot, annotations map[string]Annotation, now time.Time) []Record {
	var records []Record
	for _, yearKey := range sortedKeys(snap) {
		months := snap[yearKey]
		for _, monthKey := range sortedKeys(months) {
			entries := months[monthKey]
			for _, id := range sortedKeys(entries) {
				fields := entries[id]
				if fields == nil {
					continue
				}
				records = append(records, FromGrouped(yearKey, monthKey, id, fields, annotations, now))
			}
		}
	}
	return records
}

// sortedKeys orders map keys numerically where both parse as integers
// (year and month grouping keys), falling back to string order otherwise.
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
