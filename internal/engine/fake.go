package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// FakeLink is a scripted in-memory engine for tests. Each setup starts an
// evacuation that finishes after TicksToFinish steps. FailCommands and
// StepDelay inject engine errors and hangs.
type FakeLink struct {
	TicksToFinish int
	// StepDelay makes every `go` command block, to exercise run deadlines.
	StepDelay time.Duration
	// FailCommands errors out any command containing one of these substrings.
	FailCommands []string

	mu       sync.Mutex
	ticks    int
	seed     int64
	Commands []string
	closed   bool
}

func (f *FakeLink) Command(cmd string) error {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)

	for _, fail := range f.FailCommands {
		if strings.Contains(cmd, fail) {
			f.mu.Unlock()
			return fmt.Errorf("engine error for %q: scripted failure", cmd)
		}
	}
	var delay time.Duration
	switch cmd {
	case ClearCommand, SetupCommand:
		f.ticks = 0
	case GoCommand:
		delay = f.StepDelay
		f.ticks++
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

func (f *FakeLink) Report(src string) (gjson.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case src == FinishedReporter:
		done := f.TicksToFinish > 0 && f.ticks >= f.TicksToFinish
		return gjson.Parse(fmt.Sprintf("%t", done)), nil
	case src == TicksReporter:
		return gjson.Parse(fmt.Sprintf("%d", f.ticks)), nil
	case strings.HasPrefix(src, "seed-simulation"):
		var seed int64
		fmt.Sscanf(src, "seed-simulation %d", &seed)
		if seed == 0 {
			seed = 77777 // the engine "picked" one
		}
		f.seed = seed
		// Engines are known to serialize numbers as strings.
		return gjson.Parse(fmt.Sprintf("%q", fmt.Sprint(seed))), nil
	}
	return gjson.Result{}, fmt.Errorf("unknown reporter %q", src)
}

func (f *FakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
