package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"audiencepulse/internal/core/links"
	"audiencepulse/internal/services/pulse/domain"
)

// APIError is the Graph error object
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph %d: code %d/%d: %s", e.Status, e.Code, e.Subcode, e.Message)
}

func parseAPIError(status int, body []byte) *APIError {
	var env struct {
		Error APIError `json:"error"`
	}
	_ = json.Unmarshal(body, &env)
	e := env.Error
	e.Status = status
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return &e
}

// classify maps an HTTP status plus Graph error codes onto adapter error kinds
func classify(p links.Platform, status int, body []byte, wait time.Duration) *domain.AdapterError {
	ae := parseAPIError(status, body)
	kind := domain.KindUpstreamUnavailable
	msg := ae.Message
	switch {
	case ae.Code == 4 || ae.Code == 17 || ae.Code == 32 || ae.Code == 613 || (ae.Code >= 80001 && ae.Code <= 80014):
		kind = domain.KindRateLimited
	case status == http.StatusTooManyRequests:
		kind = domain.KindRateLimited
	case ae.Code == 190:
		msg = "Graph API token rejected"
	case ae.Code == 1 || ae.Code == 2 || status >= 500:
		kind = domain.KindUpstreamUnavailable
	case ae.Code == 803 || ae.Code == 110 || (ae.Code == 100 && ae.Subcode == 33) || status == http.StatusNotFound:
		kind = domain.KindNotFound
	case ae.Code == 10 || (ae.Code >= 200 && ae.Code <= 299) || status == http.StatusForbidden:
		kind = domain.KindPrivate
	case ae.Code == 100:
		kind = domain.KindNotFound
	}
	if kind == domain.KindRateLimited && wait <= 0 {
		wait = time.Minute
	}
	out := domain.NewAdapterError(kind, p, msg, ae)
	out.Permanent = ae.Code == 190
	if kind == domain.KindRateLimited {
		out.RetryAfter = wait
	}
	return out
}

// usage is one entry of X-App-Usage or X-Business-Use-Case-Usage
type usage struct {
	CallCount    int `json:"call_count"`
	TotalTime    int `json:"total_time"`
	TotalCPUTime int `json:"total_cputime"`
	// minutes, business use case header only
	RegainAccess int `json:"estimated_time_to_regain_access"`
}

func (u usage) max() int { return max(u.CallCount, u.TotalTime, u.TotalCPUTime) }

// computeWait derives a retry hint from Retry-After and the usage headers
func computeWait(h http.Header) time.Duration {
	if s := h.Get("Retry-After"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	var wait time.Duration
	if s := h.Get("X-Business-Use-Case-Usage"); s != "" {
		var buc map[string][]usage
		if json.Unmarshal([]byte(s), &buc) == nil {
			for _, list := range buc {
				for _, u := range list {
					if d := time.Duration(u.RegainAccess) * time.Minute; d > wait {
						wait = d
					}
					if u.max() >= 100 && wait < time.Minute {
						wait = time.Minute
					}
				}
			}
		}
	}
	if s := h.Get("X-App-Usage"); s != "" {
		var u usage
		if json.Unmarshal([]byte(s), &u) == nil && u.max() >= 100 && wait < time.Minute {
			wait = time.Minute
		}
	}
	return wait
}
