package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

type fakeCounter struct {
	mu          sync.Mutex
	outstanding int
	total       int
}

func (f *fakeCounter) OutstandingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outstanding
}

func (f *fakeCounter) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func TestProgressQuietMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&fakeCounter{total: 10}, true)
	p.SetOutput(&buf)

	p.Start()
	p.Stop()

	if buf.Len() != 0 {
		t.Errorf("quiet mode wrote output: %q", buf.String())
	}
}

func TestProgressDisplay(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&fakeCounter{outstanding: 3, total: 10}, false)
	p.SetOutput(&buf)

	p.display()

	out := buf.String()
	if !strings.Contains(out, "7/10") {
		t.Errorf("expected completed/total counts, got %q", out)
	}
	if !strings.Contains(out, "70.0%") {
		t.Errorf("expected percentage, got %q", out)
	}
	if !strings.Contains(out, "\033[K") {
		t.Errorf("expected line-clear control sequence, got %q", out)
	}
}

func TestProgressDisplayEmptyCampaign(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&fakeCounter{}, false)
	p.SetOutput(&buf)

	p.display()

	if !strings.Contains(buf.String(), "0/0") {
		t.Errorf("expected zero counts, got %q", buf.String())
	}
}

func TestProgressPrintClearsLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&fakeCounter{total: 1}, false)
	p.SetOutput(&buf)

	p.Printf("scenario %s finished", "baseline")

	out := buf.String()
	if !strings.HasPrefix(out, "\r\033[K") {
		t.Errorf("expected line clear before message, got %q", out)
	}
	if !strings.Contains(out, "scenario baseline finished\n") {
		t.Errorf("expected message with newline, got %q", out)
	}
}

func TestProgressStopIdempotent(t *testing.T) {
	p := NewProgress(&fakeCounter{total: 1}, false)
	p.SetOutput(&bytes.Buffer{})

	p.Start()
	p.Stop()
	p.Stop()
}
