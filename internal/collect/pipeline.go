package collect

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// Stats summarizes one collection run.
type Stats struct {
	Found   int `json:"found"`
	Saved   int `json:"saved"`
	Curated int `json:"curated"`
	Removed int `json:"removed"`
	Errors  int `json:"errors"`
}

// NoticeStore is the document-store surface the pipeline writes to.
type NoticeStore interface {
	Upsert(ctx context.Context, docs []map[string]any, collectedAt time.Time) (int, error)
	RemoveOrdinals(ctx context.Context, noticeNo string, ordinals []string) (int, error)
	LatestNoticeTime(ctx context.Context) (time.Time, bool, error)
}

// BidStore is the grouped realtime-store surface the pipeline writes
// curated records to.
type BidStore interface {
	Put(ctx context.Context, year, month, id string, fields map[string]any) error
}

// Pipeline pulls tender notices from the open API, dedupes re-notice
// ordinals, and lands them in the backing stores.
type Pipeline struct {
	client   *Client
	registry *Registry
	notices  NoticeStore
	bids     BidStore
	now      func() time.Time
}

func NewPipeline(client *Client, reg *Registry, notices NoticeStore, bids BidStore, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		client:   client,
		registry: reg,
		notices:  notices,
		bids:     bids,
		now:      now,
	}
}

// chunkRanges splits [from, to] into windows of at most chunkDays each. The
// windows abut at one-minute boundaries so no notice is fetched twice.
func chunkRanges(from, to time.Time, chunkDays int) [][2]time.Time {
	if chunkDays <= 0 {
		chunkDays = 1
	}
	var ranges [][2]time.Time
	start := from
	for !start.After(to) {
		end := start.AddDate(0, 0, chunkDays).Add(-time.Minute)
		if end.After(to) {
			end = to
		}
		ranges = append(ranges, [2]time.Time{start, end})
		start = end.Add(time.Minute)
	}
	return ranges
}

// extractOrdinal reads a re-notice ordinal value (bidNtceOrd) and returns
// the normalized key plus its numeric value. Unparsable input maps to ("", 0).
func extractOrdinal(value any) (string, int) {
	switch v := value.(type) {
	case nil:
		return "", 0
	case string:
		cleaned := strings.TrimSpace(v)
		var digits strings.Builder
		for _, ch := range cleaned {
			if ch >= '0' && ch <= '9' {
				digits.WriteRune(ch)
			}
		}
		n := 0
		if digits.Len() > 0 {
			n, _ = strconv.Atoi(digits.String())
		}
		return cleaned, n
	case float64:
		n := int(v)
		return fmt.Sprintf("%03d", n), n
	case int:
		return fmt.Sprintf("%03d", v), v
	}
	return "", 0
}

// selectLatestVariants keeps only the highest re-notice ordinal per notice
// number. It returns the surviving records plus the superseded ordinal keys
// per notice number, which the caller should remove from the store.
func selectLatestVariants(records []map[string]any) ([]map[string]any, map[string][]string) {
	type entry struct {
		record   map[string]any
		orderVal int
		orderKey string
		index    int
	}

	latest := make(map[string]*entry)
	stale := make(map[string][]string)
	var order []string
	var extras []map[string]any

	for i, record := range records {
		baseNo := strings.TrimSpace(asStr(record["bidNtceNo"]))
		if baseNo == "" {
			extras = append(extras, record)
			continue
		}

		orderKey, orderVal := extractOrdinal(record["bidNtceOrd"])
		cur, ok := latest[baseNo]
		if !ok {
			latest[baseNo] = &entry{record: record, orderVal: orderVal, orderKey: orderKey, index: i}
			order = append(order, baseNo)
			continue
		}
		if orderVal > cur.orderVal {
			if cur.orderKey != "" {
				stale[baseNo] = append(stale[baseNo], cur.orderKey)
			}
			cur.record = record
			cur.orderVal = orderVal
			cur.orderKey = orderKey
		} else if orderKey != "" && orderKey != cur.orderKey {
			stale[baseNo] = append(stale[baseNo], orderKey)
		}
	}

	keep := make([]map[string]any, 0, len(order)+len(extras))
	for _, baseNo := range order {
		keep = append(keep, latest[baseNo].record)
	}
	keep = append(keep, extras...)
	return keep, stale
}

// matchesAnyKeyword reports whether the notice title contains one of the
// curated keywords, case-insensitively.
func matchesAnyKeyword(title string, keywords []string) bool {
	lowered := strings.ToLower(title)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func asStr(v any) string {
	s, _ := v.(string)
	return s
}

// IncrementalFrom decides where an incremental run should start: one second
// past the newest stored notice, or the fallback when the store is empty.
func (p *Pipeline) IncrementalFrom(ctx context.Context, fallback time.Time) time.Time {
	latest, ok, err := p.notices.LatestNoticeTime(ctx)
	if err != nil {
		log.Printf("collect: latest notice lookup failed, using fallback: %v", err)
		return fallback
	}
	if !ok {
		return fallback
	}
	return latest.Add(time.Second)
}

// Run collects notices published in [from, to]. Per-notice failures are
// counted and logged but never abort the run.
func (p *Pipeline) Run(ctx context.Context, from, to time.Time) (Stats, error) {
	var stats Stats
	if !from.Before(to) {
		return stats, nil
	}

	var collected []map[string]any
	for _, window := range chunkRanges(from, to, p.registry.ChunkDays) {
		for _, source := range p.registry.Sources {
			page := 1
			for {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
				items, total, err := p.client.ListNotices(ctx, source, page, window[0], window[1], p.registry.ListKeyword)
				if err != nil {
					log.Printf("collect: %s page %d failed: %v", source.Path, page, err)
					stats.Errors++
					break
				}
				if len(items) == 0 {
					break
				}
				collected = append(collected, items...)
				if page*p.registry.RowsPerPage >= total {
					break
				}
				page++
			}
		}
	}

	stats.Found = len(collected)
	if len(collected) == 0 {
		return stats, nil
	}

	deduped, stale := selectLatestVariants(collected)

	collectedAt := p.now()
	saved, err := p.notices.Upsert(ctx, deduped, collectedAt)
	if err != nil {
		return stats, fmt.Errorf("failed to upsert notices: %w", err)
	}
	stats.Saved = saved

	for noticeNo, ordinals := range stale {
		removed, err := p.notices.RemoveOrdinals(ctx, noticeNo, ordinals)
		if err != nil {
			log.Printf("collect: ordinal cleanup for %s failed: %v", noticeNo, err)
			stats.Errors++
			continue
		}
		stats.Removed += removed
	}

	for _, doc := range deduped {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		title := asStr(doc["bidNtceNm"])
		if !matchesAnyKeyword(title, p.registry.CuratedKeywords) {
			continue
		}
		if err := p.curate(ctx, doc); err != nil {
			log.Printf("collect: curation for %q failed: %v", title, err)
			stats.Errors++
			continue
		}
		stats.Curated++
	}

	return stats, nil
}

// curate enriches one notice with its award result and writes it to the
// grouped realtime store under its announcement year and month.
func (p *Pipeline) curate(ctx context.Context, doc map[string]any) error {
	noticeNo := strings.TrimSpace(asStr(doc["bidNtceNo"]))
	if noticeNo == "" {
		return fmt.Errorf("notice has no bidNtceNo")
	}

	now := p.now()

	amount, err := p.client.AwardAmount(ctx, noticeNo, now)
	if err != nil {
		return fmt.Errorf("award amount lookup: %w", err)
	}
	corpInfo, err := p.client.OpeningCorpInfo(ctx, noticeNo, now)
	if err != nil {
		return fmt.Errorf("opening corp lookup: %w", err)
	}

	failReason := ""
	if amount == "" {
		clsfcNo, err := p.client.ClassificationNo(ctx, noticeNo, now)
		if err != nil {
			return fmt.Errorf("classification lookup: %w", err)
		}
		if clsfcNo != "" {
			failReason, err = p.client.FailureReason(ctx, noticeNo, clsfcNo, now)
			if err != nil {
				return fmt.Errorf("failure reason lookup: %w", err)
			}
		}
	}

	noticeAt := asStr(doc["bidNtceDt"])
	year, month := noticeYearMonth(noticeAt, now)

	budget := parseAmount(doc["presmptPrce"]) + parseAmount(doc["VAT"])

	fields := map[string]any{
		"공고명":    asStr(doc["bidNtceNm"]),
		"채권자명":   asStr(doc["crdtrNm"]),
		"사업금액":   budget,
		"입찰공고URL": asStr(doc["bidNtceDtlUrl"]),
		"입찰일시":   noticeAt,
		"낙찰금액":   amount,
		"개찰업체정보": corpInfo,
		"유찰사유":   failReason,
	}

	return p.bids.Put(ctx, year, month, noticeNo, fields)
}

var noticeTimeFormats = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func noticeYearMonth(raw string, fallback time.Time) (string, string) {
	for _, layout := range noticeTimeFormats {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return strconv.Itoa(t.Year()), fmt.Sprintf("%02d", int(t.Month()))
		}
	}
	return strconv.Itoa(fallback.Year()), fmt.Sprintf("%02d", int(fallback.Month()))
}

func parseAmount(v any) int64 {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return int64(n)
	case int64:
		if n < 0 {
			return 0
		}
		return n
	case int:
		if n < 0 {
			return 0
		}
		return int64(n)
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if cleaned == "" {
			return 0
		}
		if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil && parsed > 0 {
			return int64(parsed)
		}
	}
	return 0
}
