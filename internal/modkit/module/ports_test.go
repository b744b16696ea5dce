package module

import (
	"strings"
	"testing"

	kit "audiencepulse/internal/platform/testkit"
)

type analyzer interface{ Analyze() string }

type analyzerImpl struct{}

func (analyzerImpl) Analyze() string { return "ok" }

type bundle struct {
	Service analyzer
}

type hiddenBundle struct {
	svc analyzer
}

func TestPortsOf(t *testing.T) {
	tests := []struct {
		name  string
		ports any
		ok    bool
	}{
		{name: "nil ports", ports: nil},
		{name: "bundle is the port", ports: analyzerImpl{}, ok: true},
		{name: "struct field", ports: bundle{Service: analyzerImpl{}}, ok: true},
		{name: "pointer to struct", ports: &bundle{Service: analyzerImpl{}}, ok: true},
		{name: "nil pointer", ports: (*bundle)(nil)},
		{name: "empty field", ports: bundle{}},
		{name: "unexported field ignored", ports: hiddenBundle{svc: analyzerImpl{}}},
		{name: "scalar", ports: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModule{name: "pulse", ports: tt.ports}
			got, ok := PortsOf[analyzer](m)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Analyze() != "ok" {
				t.Fatalf("unexpected port %#v", got)
			}
		})
	}
}

func TestPortsOfNilModule(t *testing.T) {
	if _, ok := PortsOf[analyzer](nil); ok {
		t.Fatalf("nil module should not yield a port")
	}
}

func TestMustPortsOf(t *testing.T) {
	m := &fakeModule{name: "pulse", ports: bundle{Service: analyzerImpl{}}}
	if got := MustPortsOf[analyzer](m).Analyze(); got != "ok" {
		t.Fatalf("MustPortsOf = %q", got)
	}

	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, `"meta"`) || !strings.Contains(msg, "analyzer") {
			t.Fatalf("panic = %v, want module name and port type", r)
		}
	}()
	_ = MustPortsOf[analyzer](&fakeModule{name: "meta"})
	t.Fatalf("expected panic")
}

func TestMustPortsOfFound(t *testing.T) {
	kit.MustNotPanic(t, func() {
		_ = MustPortsOf[analyzer](&fakeModule{name: "pulse", ports: analyzerImpl{}})
	})
}
