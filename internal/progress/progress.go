// Package progress displays live campaign progress on stderr.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Counter exposes the campaign's run counts. *state.State implements it.
type Counter interface {
	OutstandingCount() int
	Total() int
}

// Progress polls a Counter and refreshes a single status line. If quiet is
// set nothing is displayed.
type Progress struct {
	startTime time.Time
	counter   Counter
	limiter   *rate.Limiter
	cancel    context.CancelFunc
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

// NewProgress creates a progress indicator polling counter once per second.
func NewProgress(counter Counter, quiet bool) *Progress {
	return &Progress{
		counter: counter,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		quiet:   quiet,
		output:  os.Stderr,
	}
}

// SetOutput sets the output writer for progress display.
func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// Start begins displaying progress updates.
func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		for {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			p.display()
		}
	}()
}

// Stop halts the progress display and clears the line.
func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	fmt.Fprint(p.output, "\r\033[K")
	p.mu.Unlock()
}

// Print outputs a message, clearing the progress line first if active.
func (p *Progress) Print(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.quiet {
		fmt.Fprint(p.output, "\r\033[K")
	}
	fmt.Fprintln(p.output, message)
}

// Printf outputs a formatted message, clearing the progress line first if active.
func (p *Progress) Printf(format string, args ...interface{}) {
	p.Print(fmt.Sprintf(format, args...))
}

func (p *Progress) display() {
	total := p.counter.Total()
	completed := total - p.counter.OutstandingCount()

	elapsed := time.Since(p.startTime).Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60

	var pct float64
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}

	p.mu.Lock()
	fmt.Fprintf(p.output, "\r\033[K[%02d:%02d] Simulations: %d/%d (%.1f%%)",
		mins, secs, completed, total, pct)
	p.mu.Unlock()
}
