package templatefmt

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value    time.Duration
		expected string
	}{
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "1.5m"},
		{2 * time.Hour, "2.0h"},
		{-45 * time.Second, "45.0s"},
	}
	for _, testCase := range cases {
		if got := FormatDuration(testCase.value); got != testCase.expected {
			t.Fatalf("duration %v: expected %q, got %q", testCase.value, testCase.expected, got)
		}
	}
	if got := FormatDuration("not a duration"); got != "0.0s" {
		t.Fatalf("expected fallback for bad type, got %q", got)
	}
}

func TestParseScriptTemplateHelpers(t *testing.T) {
	t.Parallel()

	script, err := ParseScriptTemplate("test", `{{ fmtDuration .Elapsed }} {{ json .Tags }}`)
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}

	var rendered strings.Builder
	err = script.Execute(&rendered, map[string]any{
		"Elapsed": 90 * time.Second,
		"Tags":    []string{"prod", "db"},
	})
	if err != nil {
		t.Fatalf("execute template: %v", err)
	}
	if rendered.String() != `1.5m ["prod","db"]` {
		t.Fatalf("unexpected render: %q", rendered.String())
	}
}

func TestParseScriptTemplateRejectsBrokenBody(t *testing.T) {
	t.Parallel()

	if _, err := ParseScriptTemplate("broken", "{{ .Oops"); err == nil {
		t.Fatalf("expected parse error")
	}
}
