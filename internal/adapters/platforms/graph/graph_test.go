package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/services/pulse/domain"
)

type denyGov struct{ wait time.Duration }

func (g denyGov) Reserve(links.Platform, string, int) domain.Reservation {
	return domain.Reservation{Wait: g.wait}
}
func (g denyGov) Estimate(links.Platform, int) time.Duration { return g.wait }
func (denyGov) Pick(links.Platform) string                   { return "token0" }

func newTestClient(t *testing.T, h http.Handler, gov domain.Governor) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, TokensCSV: "tok-a"}, gov)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func graphErr(code, sub int, msg string) map[string]any {
	return map[string]any{"error": map[string]any{"message": msg, "code": code, "error_subcode": sub}}
}

func fbMux(t *testing.T, posts int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v19.0/bakery", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-a" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, 200, map[string]any{"id": "42", "name": "The Bakery", "followers_count": 2000, "fan_count": 1900})
	})
	mux.HandleFunc("GET /v19.0/bakery/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "13" {
			t.Errorf("posts limit = %q, want 13", r.URL.Query().Get("limit"))
		}
		var data []map[string]any
		for i := 0; i < posts; i++ {
			p := map[string]any{
				"id":           fmt.Sprintf("p%d", i),
				"message":      fmt.Sprintf("Fresh bread &amp; croissants %d", i),
				"created_time": "2025-02-01T10:00:00+0000",
				"shares":       map[string]any{"count": 2},
				"reactions":    map[string]any{"summary": map[string]any{"total_count": 10}},
				"likes":        map[string]any{"summary": map[string]any{"total_count": 8}},
				"comments":     map[string]any{"summary": map[string]any{"total_count": 0}},
			}
			if i == 0 {
				p["comments"] = map[string]any{"summary": map[string]any{"total_count": 150}}
			}
			data = append(data, p)
		}
		writeJSON(w, 200, map[string]any{"data": data})
	})
	mux.HandleFunc("GET /v19.0/p0/comments", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := 0
		if r.URL.Query().Get("after") == "c1" {
			start = 100
		}
		var data []map[string]any
		for i := start; i < start+n && i < 150; i++ {
			data = append(data, map[string]any{"message": fmt.Sprintf("so good %d", i), "from": map[string]any{"name": "fan"}})
		}
		resp := map[string]any{"data": data}
		if start == 0 {
			resp["paging"] = map[string]any{"cursors": map[string]any{"after": "c1"}, "next": "https://next"}
		}
		writeJSON(w, 200, resp)
	})
	return mux
}

func TestFacebookFetch(t *testing.T) {
	c := newTestClient(t, fbMux(t, 3), nil)
	f := NewFacebook(c)
	prof, items, truncated, err := f.Fetch(context.Background(),
		links.Target{Platform: links.Facebook, Kind: links.KindProfile, ID: "bakery"},
		content.Limits{Posts: 12, Comments: 120})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if prof.Audience != 2000 || prof.DisplayName != "The Bakery" {
		t.Fatalf("profile = %+v", prof)
	}
	if truncated || len(items) != 3 {
		t.Fatalf("truncated=%v items=%d", truncated, len(items))
	}
	first := items[0]
	if first.Text != "Fresh bread & croissants 0" {
		t.Fatalf("text = %q", first.Text)
	}
	if len(first.Comments) != 120 || !first.CommentsTruncated {
		t.Fatalf("comments = %d truncated=%v", len(first.Comments), first.CommentsTruncated)
	}
	if items[1].CommentsTruncated || len(items[1].Comments) != 0 {
		t.Fatalf("post without comments: %+v", items[1])
	}
	if first.Counts != (content.Counts{Comments: 150, Shares: 2, Reactions: 10}) {
		t.Fatalf("counts = %+v", first.Counts)
	}
	if !first.PublishedAt.Equal(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", first.PublishedAt)
	}
}

func TestFacebookPostsTruncated(t *testing.T) {
	c := newTestClient(t, fbMux(t, 13), nil)
	_, items, truncated, err := NewFacebook(c).Fetch(context.Background(),
		links.Target{Platform: links.Facebook, ID: "bakery"}, content.Limits{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !truncated || len(items) != 12 {
		t.Fatalf("truncated=%v items=%d want true,12", truncated, len(items))
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		header map[string]string
		kind   domain.ErrorKind
		wait   time.Duration
		calls  int32
	}{
		{name: "missing page", status: 404, body: graphErr(803, 0, "alias does not exist"), kind: domain.KindNotFound, calls: 1},
		{name: "unsupported get", status: 400, body: graphErr(100, 33, "does not exist"), kind: domain.KindNotFound, calls: 1},
		{name: "permission", status: 403, body: graphErr(10, 0, "permission denied"), kind: domain.KindPrivate, calls: 1},
		{
			name: "business use case throttled", status: 400, body: graphErr(80001, 0, "too many calls"),
			header: map[string]string{"X-Business-Use-Case-Usage": `{"42":[{"type":"pages","call_count":100,"estimated_time_to_regain_access":5}]}`},
			kind:   domain.KindRateLimited, wait: 5 * time.Minute, calls: 1,
		},
		{
			name: "short retry-after retried inline", status: 429, body: graphErr(4, 0, "app limit"),
			header: map[string]string{"Retry-After": "1"},
			kind:   domain.KindRateLimited, wait: time.Second, calls: 2,
		},
		{name: "server error retried once", status: 500, body: graphErr(2, 0, "service unavailable"), kind: domain.KindUpstreamUnavailable, calls: 2},
		{name: "bad token not retried", status: 400, body: graphErr(190, 0, "expired"), kind: domain.KindUpstreamUnavailable, calls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				writeJSON(w, tt.status, tt.body)
			})
			c := newTestClient(t, h, nil)
			_, _, _, err := NewFacebook(c).Fetch(context.Background(), links.Target{Platform: links.Facebook, ID: "x"}, content.Limits{})
			ae, ok := domain.AsAdapterError(err)
			if !ok {
				t.Fatalf("err = %v, want AdapterError", err)
			}
			if ae.Kind != tt.kind || ae.RetryAfter != tt.wait || ae.Platform != links.Facebook {
				t.Fatalf("got kind=%s wait=%v platform=%s", ae.Kind, ae.RetryAfter, ae.Platform)
			}
			if calls.Load() != tt.calls {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.calls)
			}
		})
	}
}

func TestTransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	mux := fbMux(t, 1)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, 503, graphErr(1, 0, "unknown error"))
			return
		}
		mux.ServeHTTP(w, r)
	})
	c := newTestClient(t, h, nil)
	if _, _, _, err := NewFacebook(c).Fetch(context.Background(), links.Target{Platform: links.Facebook, ID: "bakery"}, content.Limits{}); err != nil {
		t.Fatalf("Fetch after one transient failure: %v", err)
	}
}

func TestGovernorDenialDoesNotCallUpstream(t *testing.T) {
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	c := newTestClient(t, h, denyGov{wait: 7 * time.Second})
	_, _, _, err := NewFacebook(c).Fetch(context.Background(), links.Target{Platform: links.Facebook, ID: "bakery"}, content.Limits{})
	ae, ok := domain.AsAdapterError(err)
	if !ok || ae.Kind != domain.KindRateLimited || ae.RetryAfter != 7*time.Second {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("upstream called %d times", calls.Load())
	}
}

func TestMissingConfiguration(t *testing.T) {
	c := NewClient(Options{}, nil)
	_, _, _, err := NewFacebook(c).Fetch(context.Background(), links.Target{ID: "x"}, content.Limits{})
	if ae, ok := domain.AsAdapterError(err); !ok || ae.Kind != domain.KindUpstreamUnavailable || ae.Message != MsgNoToken {
		t.Fatalf("no token err = %v", err)
	}
	c = NewClient(Options{TokensCSV: "t"}, nil)
	_, _, _, err = NewInstagram(c, "").Fetch(context.Background(), links.Target{ID: "x"}, content.Limits{})
	if ae, ok := domain.AsAdapterError(err); !ok || ae.Message != MsgNoBusinessAccount {
		t.Fatalf("no ig account err = %v", err)
	}
}

func TestInstagramFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v19.0/1789", func(w http.ResponseWriter, r *http.Request) {
		if f := r.URL.Query().Get("fields"); !strings.Contains(f, "business_discovery.username(chef)") || !strings.Contains(f, "media.limit(13)") {
			t.Errorf("fields = %q", f)
		}
		writeJSON(w, 200, map[string]any{"business_discovery": map[string]any{
			"username": "chef", "name": "Chef Ana", "followers_count": 5000,
			"media": map[string]any{"data": []map[string]any{
				{"id": "m1", "caption": "Pasta night", "comments_count": 2, "like_count": 300, "timestamp": "2025-01-05T18:00:00+0000"},
				{"id": "m2", "caption": "Dessert", "comments_count": 3, "like_count": 200, "timestamp": "2025-01-04T18:00:00+0000"},
			}},
		}})
	})
	mux.HandleFunc("GET /v19.0/m1/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"data": []map[string]any{{"text": "yum", "username": "a"}, {"text": "recipe?", "username": "b"}}})
	})
	mux.HandleFunc("GET /v19.0/m2/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, graphErr(10, 0, "Application does not have permission for this action"))
	})
	c := newTestClient(t, mux, nil)
	prof, items, truncated, err := NewInstagram(c, "1789").Fetch(context.Background(),
		links.Target{Platform: links.Instagram, Kind: links.KindProfile, ID: "chef"}, content.Limits{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if prof.Audience != 5000 || prof.DisplayName != "Chef Ana" || truncated {
		t.Fatalf("profile=%+v truncated=%v", prof, truncated)
	}
	if len(items) != 2 || len(items[0].Comments) != 2 || len(items[1].Comments) != 0 {
		t.Fatalf("items = %+v", items)
	}
	if items[1].Counts.Comments != 3 || items[1].CommentsTruncated {
		t.Fatalf("unreadable comments should keep counts without truncation: %+v", items[1])
	}
}

func TestComputeWait(t *testing.T) {
	tests := []struct {
		name string
		h    map[string]string
		want time.Duration
	}{
		{"none", nil, 0},
		{"retry-after", map[string]string{"Retry-After": "12"}, 12 * time.Second},
		{"app usage full", map[string]string{"X-App-Usage": `{"call_count":100,"total_time":20,"total_cputime":5}`}, time.Minute},
		{"app usage fine", map[string]string{"X-App-Usage": `{"call_count":40}`}, 0},
		{"buc regain", map[string]string{"X-Business-Use-Case-Usage": `{"1":[{"call_count":90,"estimated_time_to_regain_access":3}]}`}, 3 * time.Minute},
	}
	for _, tt := range tests {
		h := http.Header{}
		for k, v := range tt.h {
			h.Set(k, v)
		}
		if got := computeWait(h); got != tt.want {
			t.Fatalf("%s: computeWait = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	l := content.Limits{Posts: 12, Comments: 1000}
	if got := (&Facebook{}).EstimateCost(links.Target{}, l); got != 2+12*10 {
		t.Fatalf("facebook cost = %d", got)
	}
	if got := (&Instagram{}).EstimateCost(links.Target{}, content.Limits{Posts: 10, Comments: 50}); got != 11 {
		t.Fatalf("instagram cost = %d", got)
	}
	if got := Credentials(2); got[0] != "token0" || got[1] != "token1" {
		t.Fatalf("Credentials = %v", got)
	}
}
