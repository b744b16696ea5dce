package raw

import "testing"

func TestConfGet(t *testing.T) {
	t.Setenv("LOG_SERVICE", " audiencepulse-api ")

	tests := []struct {
		name string
		conf Conf
		key  string
		def  string
		want string
	}{
		{name: "prefixed hit trimmed", conf: New().Prefix("LOG_"), key: "SERVICE", def: "x", want: "audiencepulse-api"},
		{name: "root full key", conf: New(), key: "LOG_SERVICE", def: "x", want: "audiencepulse-api"},
		{name: "missing returns default", conf: New().Prefix("LOG_"), key: "MISSING", def: "defv", want: "defv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conf.Get(tt.key, tt.def); got != tt.want {
				t.Fatalf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfGetBool(t *testing.T) {
	c := New().Prefix("RB_")
	t.Setenv("RB_T1", "true")
	t.Setenv("RB_T2", "1")
	t.Setenv("RB_T3", "YES")
	t.Setenv("RB_T4", " on ")
	t.Setenv("RB_F1", "false")
	t.Setenv("RB_F2", "maybe")

	tests := []struct {
		key  string
		def  bool
		want bool
	}{
		{"T1", false, true},
		{"T2", false, true},
		{"T3", false, true},
		{"T4", false, true},
		{"F1", true, false},
		{"F2", true, false},
		{"MISSING", true, true},
		{"MISSING", false, false},
	}
	for _, tt := range tests {
		if got := c.GetBool(tt.key, tt.def); got != tt.want {
			t.Fatalf("GetBool(%q, %v) = %v, want %v", tt.key, tt.def, got, tt.want)
		}
	}
}

func TestConfGetInt(t *testing.T) {
	c := New().Prefix("RI_")
	t.Setenv("RI_OK", " 42 ")
	t.Setenv("RI_NONNUM", "12x")
	t.Setenv("RI_NEG", "-5")

	tests := []struct {
		key  string
		def  int
		want int
	}{
		{"OK", 0, 42},
		{"NONNUM", 9, 9},
		{"NEG", 3, 3},
		{"MISSING", 11, 11},
	}
	for _, tt := range tests {
		if got := c.GetInt(tt.key, tt.def); got != tt.want {
			t.Fatalf("GetInt(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestConfGetOneOf(t *testing.T) {
	c := New().Prefix("RO_")
	t.Setenv("RO_FORMAT", "JSON")
	t.Setenv("RO_BAD", "xml")

	if got := c.GetOneOf("FORMAT", "console", "json", "console"); got != "json" {
		t.Fatalf("GetOneOf = %q, want json", got)
	}
	if got := c.GetOneOf("BAD", "console", "json", "console"); got != "console" {
		t.Fatalf("GetOneOf invalid = %q, want console", got)
	}
}
