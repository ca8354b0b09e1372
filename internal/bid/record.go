package bid

import "time"

// Placeholder strings used when a source record is missing display fields.
// These are the literal values the dashboard renders, so they are part of
// the data contract, not presentation.
const (
	PlaceholderTitle = "제목 없음"
	PlaceholderOrg   = "기관명 없음"
)

// Record is the canonical bid shape every component downstream of the
// normalizer operates on. Actual records come from one of the two backing
// stores; predicted records are derived in memory and never persisted.
type Record struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	RequestingOrg   string `json:"requesting_org"`
	AnnouncementURL string `json:"announcement_url,omitempty"`

	ContractAmount int64  `json:"contract_amount"`
	AwardedVendor  string `json:"awarded_vendor"`
	AwardedAmount  int64  `json:"awarded_amount"`
	FailureReason  string `json:"failure_reason,omitempty"`

	// ServiceDurationMonths is user-editable metadata merged from the
	// annotation store. Zero means unknown and disables forecasting.
	ServiceDurationMonths int `json:"service_duration_months"`

	// ExpectedBidDate is an ISO datetime string, or "YYYY-MM-01" when the
	// source only carried a year/month grouping. ExpectedYear and
	// ExpectedMonth are always kept in sync with it.
	ExpectedBidDate string `json:"expected_bid_date"`
	ExpectedYear    int    `json:"expected_year"`
	ExpectedMonth   int    `json:"expected_month"`

	IsPrediction    bool `json:"is_prediction"`
	PredictionCycle int  `json:"prediction_cycle,omitempty"`

	// Document-store sourced records only.
	BudgetAmount   int64      `json:"budget_amount,omitempty"`
	EstimatedPrice int64      `json:"estimated_price,omitempty"`
	NoticeBeginAt  *time.Time `json:"notice_begin_at,omitempty"`
	NoticeCloseAt  *time.Time `json:"notice_close_at,omitempty"`
	ReNotice       bool       `json:"re_notice"`
}

// Annotation is the user-maintained metadata stored per base bid id in the
// annotation store.
type Annotation struct {
	ServiceDurationMonths int    `json:"service_duration_months"`
	LastModifiedAt        string `json:"last_modified_at,omitempty"`
	ModifiedBy            string `json:"modified_by,omitempty"`
}

// GroupedSnapshot is the raw curated-store shape: year -> month -> bid id ->
// source fields. Field names are the Korean keys the store actually holds
// (공고명, 채권자명, 사업금액, ...); the normalizer is the only place that
// interprets them.
type GroupedSnapshot map[string]map[string]map[string]map[string]any

// Snapshot is one full input to Recompute: the curated grouped tree plus the
// annotations merged by bid id.
type Snapshot struct {
	Grouped     GroupedSnapshot
	Annotations map[string]Annotation
}
