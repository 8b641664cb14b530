package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestLineReporter(t *testing.T) {
	t.Setenv("CI", "true")
	var buf bytes.Buffer
	r := NewReporter(&buf, "Recommending")
	if _, ok := r.(*LineReporter); !ok {
		t.Fatalf("expected LineReporter in CI, got %T", r)
	}

	r.Start(2)
	r.Update(1, "AAPL")
	r.Update(2, "MSFT")
	r.Finish()

	want := "Recommending: 2 item(s)\n[1/2] AAPL\n[2/2] MSFT\nRecommending: done\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestBarReporter(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	var buf bytes.Buffer
	r := NewReporter(&buf, "Recommending")
	if _, ok := r.(*BarReporter); !ok {
		t.Fatalf("expected BarReporter, got %T", r)
	}
	r.Start(1)
	r.Update(1, "AAPL")
	r.Finish()
	if !strings.Contains(buf.String(), "AAPL") && buf.Len() == 0 {
		t.Error("expected progress output")
	}
}
