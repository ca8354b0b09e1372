package bid

import (
	"reflect"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestFromGrouped_PlaceholdersAndCoercion(t *testing.T) {
	fields := map[string]any{
		"사업금액":   "1,234,567",
		"낙찰금액":   "not a number",
		"개찰업체정보": "주식회사 테스트",
		"입찰일시":   "2024-03-14 10:30",
	}

	r := FromGrouped("2024", "3", "bid-1", fields, nil, testNow)

	if r.Title != PlaceholderTitle {
		t.Errorf("expected placeholder title, got %q", r.Title)
	}
	if r.RequestingOrg != PlaceholderOrg {
		t.Errorf("expected placeholder org, got %q", r.RequestingOrg)
	}
	if r.ContractAmount != 1234567 {
		t.Errorf("expected contract amount 1234567, got %d", r.ContractAmount)
	}
	if r.AwardedAmount != 0 {
		t.Errorf("expected unparsable award amount to degrade to 0, got %d", r.AwardedAmount)
	}
	if r.ExpectedYear != 2024 || r.ExpectedMonth != 3 {
		t.Errorf("expected 2024-03, got %d-%d", r.ExpectedYear, r.ExpectedMonth)
	}
	if r.ExpectedBidDate != "2024-03-14 10:30" {
		t.Errorf("expected source date kept, got %q", r.ExpectedBidDate)
	}
	if r.IsPrediction {
		t.Error("actual record must not be a prediction")
	}
}

func TestFromGrouped_BadGroupKeysFallBack(t *testing.T) {
	r := FromGrouped("20xx", "notamonth", "bid-2", map[string]any{}, nil, testNow)

	if r.ExpectedYear != testNow.Year() {
		t.Errorf("expected fallback year %d, got %d", testNow.Year(), r.ExpectedYear)
	}
	if r.ExpectedMonth != 1 {
		t.Errorf("expected fallback month 1, got %d", r.ExpectedMonth)
	}
	if r.ExpectedBidDate != "2025-01-01" {
		t.Errorf("expected reconstructed date 2025-01-01, got %q", r.ExpectedBidDate)
	}
	if r.ExpectedMonth < 1 || r.ExpectedMonth > 12 {
		t.Errorf("month out of range: %d", r.ExpectedMonth)
	}
}

func TestFromGrouped_AnnotationMerge(t *testing.T) {
	annotations := map[string]Annotation{
		"bid-3": {ServiceDurationMonths: 12},
	}

	with := FromGrouped("2024", "5", "bid-3", map[string]any{"공고명": "콜센터 운영"}, annotations, testNow)
	without := FromGrouped("2024", "5", "bid-4", map[string]any{"공고명": "콜센터 운영"}, annotations, testNow)

	if with.ServiceDurationMonths != 12 {
		t.Errorf("expected annotated duration 12, got %d", with.ServiceDurationMonths)
	}
	if without.ServiceDurationMonths != 0 {
		t.Errorf("expected default duration 0, got %d", without.ServiceDurationMonths)
	}
}

func TestFromGrouped_Idempotent(t *testing.T) {
	fields := map[string]any{
		"공고명":  "헬프데스크 위탁 운영",
		"채권자명": "한국테스트공사",
		"사업금액": float64(500000000),
		"입찰일시": "2024-11-01 14:00",
	}
	annotations := map[string]Annotation{"bid-5": {ServiceDurationMonths: 6}}

	first := FromGrouped("2024", "11", "bid-5", fields, annotations, testNow)
	second := FromGrouped("2024", "11", "bid-5", fields, annotations, testNow)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization must be idempotent: %+v != %+v", first, second)
	}
}

func TestFromDocument_FieldMapping(t *testing.T) {
	doc := map[string]any{
		"id":           "20240312345-000",
		"bidNtceNm":    "고객센터 상담 시스템 구축",
		"dminsttNm":    "조달청",
		"bidNtceUrl":   "https://www.g2b.go.kr/notice/1",
		"asignBdgtAmt": "2500000000",
		"presmptPrce":  "2300000000",
		"bidNtceDt":    "2024-03-12 09:00:00",
		"bidBeginDt":   "2024-03-15 09:00:00",
		"bidClseDt":    "2024-03-29 18:00:00",
		"reNtceYn":     "N",
	}

	r := FromDocument(doc, nil, testNow)

	if r.ID != "20240312345-000" {
		t.Errorf("unexpected id %q", r.ID)
	}
	if r.BudgetAmount != 2500000000 || r.EstimatedPrice != 2300000000 {
		t.Errorf("unexpected amounts: budget=%d estimated=%d", r.BudgetAmount, r.EstimatedPrice)
	}
	if r.ExpectedYear != 2024 || r.ExpectedMonth != 3 {
		t.Errorf("expected 2024-03, got %d-%d", r.ExpectedYear, r.ExpectedMonth)
	}
	if r.NoticeBeginAt == nil || r.NoticeCloseAt == nil {
		t.Fatal("expected notice window to be parsed")
	}
	if r.ReNotice {
		t.Error("reNtceYn=N must normalize to false")
	}
}

func TestFromDocument_OrgFallbackChain(t *testing.T) {
	r := FromDocument(map[string]any{"ntceInsttNm": "공고기관"}, nil, testNow)
	if r.RequestingOrg != "공고기관" {
		t.Errorf("expected notice-institution fallback, got %q", r.RequestingOrg)
	}

	r = FromDocument(map[string]any{}, nil, testNow)
	if r.RequestingOrg != PlaceholderOrg {
		t.Errorf("expected placeholder org, got %q", r.RequestingOrg)
	}
	if r.Title != PlaceholderTitle {
		t.Errorf("expected placeholder title, got %q", r.Title)
	}
}

func TestFromDocument_UnparsableDateFallsBackToNow(t *testing.T) {
	r := FromDocument(map[string]any{"bidNtceDt": "언제인지 모름"}, nil, testNow)

	if r.ExpectedYear != testNow.Year() || r.ExpectedMonth != int(testNow.Month()) {
		t.Errorf("expected current-date fallback, got %d-%d", r.ExpectedYear, r.ExpectedMonth)
	}
}

func TestIsReNotice_Encodings(t *testing.T) {
	tests := []struct {
		raw      string
		expected bool
	}{
		{"Y", true},
		{"재공고", true},
		{"N", false},
		{"", false},
		{"y", false},
	}

	for _, tt := range tests {
		if got := isReNotice(tt.raw); got != tt.expected {
			t.Errorf("isReNotice(%q) = %v, expected %v", tt.raw, got, tt.expected)
		}
	}
}

func TestBuildRecords_DeterministicOrder(t *testing.T) {
	snap := GroupedSnapshot{
		"2025": {
			"2":  {"b": {"공고명": "둘"}, "a": {"공고명": "하나"}},
			"10": {"c": {"공고명": "셋"}},
		},
		"2024": {
			"12": {"d": {"공고명": "넷"}},
		},
	}

	first := BuildRecords(snap, nil, testNow)
	second := BuildRecords(snap, nil, testNow)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected deterministic output for identical snapshots")
	}

	ids := make([]string, len(first))
	for i, r := range first {
		ids[i] = r.ID
	}
	expected := []string{"d", "a", "b", "c"}
	if !reflect.DeepEqual(ids, expected) {
		t.Fatalf("expected order %v, got %v", expected, ids)
	}
}
