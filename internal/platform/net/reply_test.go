package net_test

import (
	"errors"
	"net/http"
	"testing"

	perr "audiencepulse/internal/platform/errors"
	pnet "audiencepulse/internal/platform/net"
)

func TestSuccessEnvelopes(t *testing.T) {
	cases := []struct {
		name   string
		fn     func(any, string) (int, pnet.Wire)
		status int
	}{
		{"ok", pnet.OK, http.StatusOK},
		{"accepted", pnet.Accepted, http.StatusAccepted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			status, w := c.fn(map[string]string{"job_id": "j1"}, "req-1")
			if status != c.status || w.StatusCode != c.status {
				t.Fatalf("status %d/%d want %d", status, w.StatusCode, c.status)
			}
			if w.Status != http.StatusText(c.status) || w.RequestID != "req-1" {
				t.Fatalf("wire mismatch: %+v", w)
			}
			if w.Data.(map[string]string)["job_id"] != "j1" {
				t.Fatalf("data mismatch: %+v", w.Data)
			}
		})
	}
}

func TestErrorEnvelope(t *testing.T) {
	status, w := pnet.Error(perr.WithField(perr.InvalidArgf("unsupported link"), "links"), "req-9")
	if status != http.StatusBadRequest || w.Code != perr.ErrorCodeInvalidArgument {
		t.Fatalf("unexpected %d %+v", status, w)
	}
	if w.Error != "unsupported link" || w.Field != "links" || w.RequestID != "req-9" {
		t.Fatalf("wire mismatch: %+v", w)
	}

	if w.Data != nil {
		t.Fatalf("plain error should carry no data: %+v", w.Data)
	}

	detailed := perr.WithDetails(perr.New(perr.ErrorCodeUnavailable, "no platform returned data"), map[string]string{"job_id": "j7"})
	status, w = pnet.Error(detailed, "")
	if status != http.StatusServiceUnavailable || w.Data.(map[string]string)["job_id"] != "j7" {
		t.Fatalf("details not carried: %d %+v", status, w)
	}

	status, w = pnet.Error(errors.New("boom"), "")
	if status != http.StatusInternalServerError || w.Code != perr.ErrorCodeUnknown {
		t.Fatalf("foreign error mapping: %d %+v", status, w)
	}

	status, w = pnet.Error(nil, "r")
	if status != http.StatusOK || w.Error != "" {
		t.Fatalf("nil error should produce OK: %d %+v", status, w)
	}
}
