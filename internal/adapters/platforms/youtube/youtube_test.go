package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/metrics"
	"audiencepulse/internal/services/pulse/domain"
)

type denyGov struct{ wait time.Duration }

func (g denyGov) Reserve(links.Platform, string, int) domain.Reservation {
	return domain.Reservation{Wait: g.wait}
}
func (g denyGov) Estimate(links.Platform, int) time.Duration { return g.wait }
func (denyGov) Pick(links.Platform) string                   { return "key0" }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiErr(code int, reason, msg string) map[string]any {
	return map[string]any{"error": map[string]any{
		"code": code, "message": msg,
		"errors": []map[string]any{{"reason": reason, "message": msg, "domain": "youtube"}},
	}}
}

func newAdapter(t *testing.T, h http.Handler, gov domain.Governor) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a, err := New(context.Background(), Options{APIKeysCSV: "k1", Endpoint: srv.URL + "/"}, gov)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.sleep = func(context.Context, time.Duration) error { return nil }
	return a
}

func channel(subs string) map[string]any {
	return map[string]any{
		"id":      "UCchef",
		"snippet": map[string]any{"title": "Chef Ana"},
		"statistics": map[string]any{
			"subscriberCount": subs, "hiddenSubscriberCount": false,
		},
		"contentDetails": map[string]any{"relatedPlaylists": map[string]any{"uploads": "UUchef"}},
	}
}

func video(id, comments string) map[string]any {
	return map[string]any{
		"id": id,
		"snippet": map[string]any{
			"title": "Video " + id, "description": "Weeknight pasta", "channelId": "UCchef",
			"publishedAt": "2025-01-10T12:00:00Z",
		},
		"statistics": map[string]any{"viewCount": "1000", "likeCount": "50", "commentCount": comments},
	}
}

func channelMux(t *testing.T, uploads int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k1" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		if h := r.URL.Query().Get("forHandle"); h != "@chef" {
			t.Errorf("forHandle = %q", h)
		}
		writeJSON(w, 200, map[string]any{"items": []any{channel("1000")}})
	})
	mux.HandleFunc("GET /youtube/v3/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("playlistId") != "UUchef" || r.URL.Query().Get("maxResults") != "9" {
			t.Errorf("playlistItems query = %v", r.URL.Query())
		}
		var items []any
		for i := 0; i < uploads; i++ {
			items = append(items, map[string]any{"contentDetails": map[string]any{"videoId": fmt.Sprintf("v%d", i)}})
		}
		writeJSON(w, 200, map[string]any{"items": items})
	})
	mux.HandleFunc("GET /youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["id"]
		var items []any
		// answer out of order; the adapter restores upload order
		for i := len(ids) - 1; i >= 0; i-- {
			c := "0"
			if ids[i] == "v0" {
				c = "3"
			}
			items = append(items, video(ids[i], c))
		}
		writeJSON(w, 200, map[string]any{"items": items})
	})
	mux.HandleFunc("GET /youtube/v3/commentThreads", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("textFormat") != "html" || r.URL.Query().Get("videoId") != "v0" {
			t.Errorf("commentThreads query = %v", r.URL.Query())
		}
		var items []any
		for i, txt := range []string{"Love this &lt;3", "<b>Great</b> recipe", "so tasty"} {
			items = append(items, map[string]any{"snippet": map[string]any{"topLevelComment": map[string]any{
				"snippet": map[string]any{"textDisplay": txt, "authorDisplayName": "fan" + strconv.Itoa(i)},
			}}})
		}
		writeJSON(w, 200, map[string]any{"items": items})
	})
	return mux
}

func TestFetchChannel(t *testing.T) {
	a := newAdapter(t, channelMux(t, 9), nil)
	prof, items, truncated, err := a.Fetch(context.Background(),
		links.Target{Platform: links.YouTube, Kind: links.KindChannel, ID: "@chef"}, content.Limits{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if prof.Audience != 1000 || prof.DisplayName != "Chef Ana" || prof.TargetID != "@chef" {
		t.Fatalf("profile = %+v", prof)
	}
	if !truncated || len(items) != 8 {
		t.Fatalf("truncated=%v items=%d want true,8", truncated, len(items))
	}
	if items[0].ID != "v0" || items[7].ID != "v7" {
		t.Fatalf("order = %s..%s", items[0].ID, items[7].ID)
	}
	first := items[0]
	if len(first.Comments) != 3 || first.Comments[0].Text != "Love this <3" || first.Comments[1].Text != "Great recipe" {
		t.Fatalf("comments = %+v", first.Comments)
	}
	if first.Text != "Video v0\nWeeknight pasta" || first.Counts.Views != 1000 || first.Type != content.Video {
		t.Fatalf("item = %+v", first)
	}
}

func TestFetchVideoZeroSubscribers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"items": []any{video("abc", "4")}})
	})
	mux.HandleFunc("GET /youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "UCchef" {
			t.Errorf("channel id = %q", r.URL.Query().Get("id"))
		}
		writeJSON(w, 200, map[string]any{"items": []any{channel("0")}})
	})
	mux.HandleFunc("GET /youtube/v3/commentThreads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, apiErr(403, "commentsDisabled", "The video has disabled comments."))
	})
	a := newAdapter(t, mux, nil)
	prof, items, truncated, err := a.Fetch(context.Background(),
		links.Target{Platform: links.YouTube, Kind: links.KindVideo, ID: "abc"}, content.Limits{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if truncated || len(items) != 1 || len(items[0].Comments) != 0 {
		t.Fatalf("truncated=%v items=%+v", truncated, items)
	}
	res := metrics.ComputeEngagement(links.YouTube, prof, items, truncated)
	if res.Engagement.Defined || res.UndefinedReason != metrics.ReasonZeroAudience || res.SampleSize != 1 {
		t.Fatalf("engagement = %+v", res)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		kind   domain.ErrorKind
		wait   time.Duration
		calls  int32
	}{
		{name: "quota", status: 403, body: apiErr(403, "quotaExceeded", "quota"), kind: domain.KindRateLimited, wait: time.Hour, calls: 1},
		{name: "forbidden", status: 403, body: apiErr(403, "forbidden", "private"), kind: domain.KindPrivate, calls: 1},
		{name: "not found", status: 404, body: apiErr(404, "channelNotFound", "gone"), kind: domain.KindNotFound, calls: 1},
		{name: "backend", status: 503, body: apiErr(503, "backendError", "down"), kind: domain.KindUpstreamUnavailable, calls: 2},
		{name: "bad key", status: 400, body: apiErr(400, "keyInvalid", "API key not valid"), kind: domain.KindUpstreamUnavailable, calls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			a := newAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.status, tt.body)
			}), nil)
			_, _, _, err := a.Fetch(context.Background(), links.Target{Platform: links.YouTube, Kind: links.KindChannel, ID: "UCx"}, content.Limits{})
			ae, ok := domain.AsAdapterError(err)
			if !ok || ae.Kind != tt.kind || ae.RetryAfter != tt.wait {
				t.Fatalf("err = %v (%+v)", err, ae)
			}
			if calls.Load() != tt.calls {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.calls)
			}
		})
	}
}

func TestChannelNotFoundWhenEmpty(t *testing.T) {
	a := newAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"items": []any{}})
	}), nil)
	_, _, _, err := a.Fetch(context.Background(), links.Target{Platform: links.YouTube, Kind: links.KindChannel, ID: "user:nobody"}, content.Limits{})
	if ae, ok := domain.AsAdapterError(err); !ok || ae.Kind != domain.KindNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestNoKeyAndGovernor(t *testing.T) {
	a, err := New(context.Background(), Options{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _, _, err = a.Fetch(context.Background(), links.Target{Kind: links.KindVideo, ID: "x"}, content.Limits{})
	if ae, ok := domain.AsAdapterError(err); !ok || ae.Message != MsgNoKey || ae.Kind != domain.KindUpstreamUnavailable {
		t.Fatalf("no key err = %v", err)
	}

	var calls atomic.Int32
	a = newAdapter(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }), denyGov{wait: 4 * time.Second})
	_, _, _, err = a.Fetch(context.Background(), links.Target{Kind: links.KindVideo, ID: "x"}, content.Limits{})
	if ae, ok := domain.AsAdapterError(err); !ok || ae.Kind != domain.KindRateLimited || ae.RetryAfter != 4*time.Second {
		t.Fatalf("governor err = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("upstream called despite denial")
	}
}

func TestEstimateCost(t *testing.T) {
	a := &Adapter{}
	if got := a.EstimateCost(links.Target{Kind: links.KindVideo}, content.Limits{Posts: 1, Comments: 1000}); got != 12 {
		t.Fatalf("video cost = %d", got)
	}
	if got := a.EstimateCost(links.Target{Kind: links.KindChannel}, content.Limits{Posts: 8, Comments: 100}); got != 11 {
		t.Fatalf("channel cost = %d", got)
	}
}
