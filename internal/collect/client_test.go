package collect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := &Registry{
		ListBaseURL:  srv.URL,
		AwardBaseURL: srv.URL,
		ServiceKey:   "test-key",
		RowsPerPage:  50,
	}
	return NewClient(reg), srv
}

func TestDecodeItems(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"array", `[{"bidNtceNo":"1"},{"bidNtceNo":"2"}]`, 2},
		{"single object", `{"bidNtceNo":"1"}`, 1},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
	}
	for _, tc := range cases {
		items, err := decodeItems(json.RawMessage(tc.raw))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if len(items) != tc.want {
			t.Errorf("%s: got %d items, want %d", tc.name, len(items), tc.want)
		}
	}

	if _, err := decodeItems(json.RawMessage(`42`)); err == nil {
		t.Error("expected error for non-object payload")
	}
}

func TestDecodeServiceKey(t *testing.T) {
	if got := decodeServiceKey("plain-key"); got != "plain-key" {
		t.Errorf("plain key changed: %q", got)
	}
	if got := decodeServiceKey("abc%2Bdef%3D%3D"); got != "abc+def==" {
		t.Errorf("encoded key not decoded: %q", got)
	}
}

func TestListNoticesSendsInquiryWindow(t *testing.T) {
	var gotQuery map[string]string

	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":[{"bidNtceNo":"2025-1"}],"totalCount":1}}}`))
	})

	begin := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 3, 23, 59, 0, 0, time.UTC)
	items, total, err := client.ListNotices(context.Background(), SourceConfig{Path: "getBidPblancListInfoServcPPSSrch"}, 1, begin, end, "AX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("got %d items total %d", len(items), total)
	}

	expect := map[string]string{
		"pageNo":     "1",
		"numOfRows":  "50",
		"inqryDiv":   "1",
		"inqryBgnDt": "202506010000",
		"inqryEndDt": "202506032359",
		"bidNtceNm":  "AX",
		"type":       "json",
		"serviceKey": "test-key",
	}
	for k, want := range expect {
		if gotQuery[k] != want {
			t.Errorf("param %s = %q, want %q", k, gotQuery[k], want)
		}
	}
}

func TestListNoticesRejectsAPIError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"header":{"resultCode":"30","resultMsg":"SERVICE KEY IS NOT REGISTERED"},"body":{}}}`))
	})

	_, _, err := client.ListNotices(context.Background(), SourceConfig{Path: "x"}, 1, time.Now(), time.Now(), "")
	if err == nil {
		t.Fatal("expected an error for resultCode 30")
	}
}

func TestAwardAmountEmptyWhenNoResult(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":null,"totalCount":0}}}`))
	})

	amount, err := client.AwardAmount(context.Background(), "2025-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != "" {
		t.Errorf("got %q, want empty", amount)
	}
}

func TestAwardAmountReadsSingleObjectItems(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":{"sucsfbidAmt":"123450000"},"totalCount":1}}}`))
	})

	amount, err := client.AwardAmount(context.Background(), "2025-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != "123450000" {
		t.Errorf("got %q, want 123450000", amount)
	}
}
