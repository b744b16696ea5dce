package youtube

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"

	"audiencepulse/internal/core/links"
	"audiencepulse/internal/services/pulse/domain"
)

const msgKeyRejected = "YouTube API key rejected"

// quota reasons reported with 403
var rateReasons = map[string]time.Duration{
	"rateLimitExceeded":     time.Minute,
	"userRateLimitExceeded": time.Minute,
	"quotaExceeded":         time.Hour,
	"dailyLimitExceeded":    time.Hour,
}

func reasons(ge *googleapi.Error) []string {
	out := make([]string, 0, len(ge.Errors))
	for _, e := range ge.Errors {
		out = append(out, e.Reason)
	}
	return out
}

func hasReason(err error, reason string) bool {
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return false
	}
	for _, r := range reasons(ge) {
		if r == reason {
			return true
		}
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if n, err := strconv.Atoi(h.Get("Retry-After")); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}

// classify maps API errors onto adapter error kinds; anything not from the API is a
// transport failure
func classify(err error) *domain.AdapterError {
	if ae, ok := domain.AsAdapterError(err); ok {
		return ae
	}
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return domain.NewAdapterError(domain.KindUpstreamUnavailable, links.YouTube, "youtube request failed", err)
	}
	hint := retryAfter(ge.Header)
	for _, r := range reasons(ge) {
		if d, ok := rateReasons[r]; ok {
			if hint <= 0 {
				hint = d
			}
			return &domain.AdapterError{Kind: domain.KindRateLimited, Platform: links.YouTube, RetryAfter: hint, Message: ge.Message, Err: err}
		}
		if r == "keyInvalid" || r == "keyExpired" {
			return domain.NotConfigured(links.YouTube, msgKeyRejected, err)
		}
	}
	switch {
	case ge.Code == http.StatusTooManyRequests:
		if hint <= 0 {
			hint = time.Minute
		}
		return &domain.AdapterError{Kind: domain.KindRateLimited, Platform: links.YouTube, RetryAfter: hint, Message: ge.Message, Err: err}
	case ge.Code == http.StatusNotFound:
		return domain.NewAdapterError(domain.KindNotFound, links.YouTube, ge.Message, err)
	case ge.Code == http.StatusForbidden || ge.Code == http.StatusUnauthorized:
		return domain.NewAdapterError(domain.KindPrivate, links.YouTube, ge.Message, err)
	}
	return domain.NewAdapterError(domain.KindUpstreamUnavailable, links.YouTube, ge.Message, err)
}
