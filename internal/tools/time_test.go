package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCurrentTime(t *testing.T) {
	r := NewRegistry()
	fixed := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	registerTimeTool(r, nil, func() time.Time { return fixed })

	out, err := r.Execute(context.Background(), CurrentTime, "{}")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"Date: 2026-03-02 (Monday)", "Time: 23:30:00 UTC", "ISO week: 2026-W10", "RFC3339: 2026-03-02T23:30:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	out, err = r.Execute(context.Background(), CurrentTime, `{"timezone": "Asia/Tokyo"}`)
	if err != nil {
		t.Fatalf("execute with timezone: %v", err)
	}
	if !strings.Contains(out, "Date: 2026-03-03 (Tuesday)") {
		t.Errorf("timezone override not applied:\n%s", out)
	}

	if _, err := r.Execute(context.Background(), CurrentTime, `{"timezone": "Mars/Olympus"}`); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
