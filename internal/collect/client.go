package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const inquiryTimeFormat = "200601021504"

// Client calls the G2B open API: the notice list endpoints and the award
// result (낙찰/개찰/유찰) lookups.
type Client struct {
	httpClient   *http.Client
	listBaseURL  string
	awardBaseURL string
	serviceKey   string
	rowsPerPage  int
}

func NewClient(reg *Registry) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		listBaseURL:  strings.TrimRight(reg.ListBaseURL, "/"),
		awardBaseURL: strings.TrimRight(reg.AwardBaseURL, "/"),
		serviceKey:   decodeServiceKey(reg.ServiceKey),
		rowsPerPage:  reg.RowsPerPage,
	}
}

// decodeServiceKey accepts keys issued either raw or URL-encoded.
func decodeServiceKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.Contains(key, "%") {
		if decoded, err := url.QueryUnescape(key); err == nil {
			return decoded
		}
	}
	return key
}

// envelope is the G2B response wrapper. Items may arrive as an array or, for
// single-result pages, a bare object.
type envelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      json.RawMessage `json:"items"`
			TotalCount int             `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

func decodeItems(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return nil, nil
	}

	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var single map[string]any
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]any{single}, nil
	}

	return nil, fmt.Errorf("unrecognized items payload: %s", trimmed)
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) (*envelope, error) {
	params.Set("serviceKey", c.serviceKey)
	params.Set("type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if code := env.Response.Header.ResultCode; code != "00" {
		return nil, fmt.Errorf("api error %s: %s", code, env.Response.Header.ResultMsg)
	}
	return &env, nil
}

// ListNotices fetches one page of tender notices from a list source within
// the inquiry window. Returns the page items and the total count.
func (c *Client) ListNotices(ctx context.Context, source SourceConfig, page int, begin, end time.Time, keyword string) ([]map[string]any, int, error) {
	params := url.Values{}
	params.Set("pageNo", fmt.Sprintf("%d", page))
	params.Set("numOfRows", fmt.Sprintf("%d", c.rowsPerPage))
	params.Set("inqryDiv", "1")
	params.Set("inqryBgnDt", begin.Format(inquiryTimeFormat))
	params.Set("inqryEndDt", end.Format(inquiryTimeFormat))
	if keyword != "" {
		params.Set("bidNtceNm", keyword)
	}

	env, err := c.fetch(ctx, c.listBaseURL+"/"+source.Path, params)
	if err != nil {
		return nil, 0, err
	}
	items, err := decodeItems(env.Response.Body.Items)
	if err != nil {
		return nil, 0, err
	}
	return items, env.Response.Body.TotalCount, nil
}

// awardParams builds the shared parameter set for the award lookups. The
// window spans the previous year through the end of the current one.
func (c *Client) awardParams(noticeNo string, inquiryDiv string, now time.Time) url.Values {
	params := url.Values{}
	params.Set("pageNo", "1")
	params.Set("numOfRows", "1")
	if inquiryDiv != "" {
		params.Set("inqryDiv", inquiryDiv)
	}
	params.Set("bidNtceNo", noticeNo)
	params.Set("inqryBgnDt", fmt.Sprintf("%d01010000", now.Year()-1))
	params.Set("inqryEndDt", fmt.Sprintf("%d12312359", now.Year()))
	return params
}

func (c *Client) awardField(ctx context.Context, path string, params url.Values, field string) (string, error) {
	env, err := c.fetch(ctx, c.awardBaseURL+"/"+path, params)
	if err != nil {
		return "", err
	}
	items, err := decodeItems(env.Response.Body.Items)
	if err != nil || len(items) == 0 {
		return "", err
	}
	switch v := items[0][field].(type) {
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", nil
}

// AwardAmount looks up the winning bid amount for a notice, empty when the
// bid has no result yet.
func (c *Client) AwardAmount(ctx context.Context, noticeNo string, now time.Time) (string, error) {
	return c.awardField(ctx, "getScsbidListSttusServc", c.awardParams(noticeNo, "4", now), "sucsfbidAmt")
}

// OpeningCorpInfo looks up the bid-opening company information.
func (c *Client) OpeningCorpInfo(ctx context.Context, noticeNo string, now time.Time) (string, error) {
	return c.awardField(ctx, "getOpengResultListInfoServcPPSSrch", c.awardParams(noticeNo, "3", now), "opengCorpInfo")
}

// ClassificationNo resolves the bid classification number needed for the
// failure-reason lookup.
func (c *Client) ClassificationNo(ctx context.Context, noticeNo string, now time.Time) (string, error) {
	return c.awardField(ctx, "getOpengResultListInfoServcPPSSrch", c.awardParams(noticeNo, "3", now), "bidClsfcNo")
}

// FailureReason looks up why a bid round failed (유찰사유).
func (c *Client) FailureReason(ctx context.Context, noticeNo, classificationNo string, now time.Time) (string, error) {
	params := c.awardParams(noticeNo, "", now)
	params.Set("bidClsfcNo", classificationNo)
	return c.awardField(ctx, "getOpengResultListInfoFailing", params, "nobidRsn")
}
