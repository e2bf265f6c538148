package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/engine"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/server"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

// ResultSink receives final run results. The synchronization server's client
// implements it.
type ResultSink interface {
	PutResults(ctx context.Context, payload server.ResultPayload) error
}

// Worker executes one shard of run descriptors sequentially, reusing a
// single engine link across the whole shard to amortize engine startup.
type Worker struct {
	Link    engine.Link
	Results ResultSink
	// Reopen replaces a link whose engine was shut down after a timed-out
	// attempt. Leaving it nil keeps the existing link.
	Reopen func() (engine.Link, error)
	// Timeout is the wall-clock deadline for one run attempt.
	Timeout time.Duration
	// Attempts is how many times a timed-out run is tried in total.
	Attempts int
	Logger   *log.Logger
}

// RunBatch drives every descriptor of the shard. Per-run failures are
// isolated: the run is reported unsuccessful and the worker moves on.
func (w *Worker) RunBatch(ctx context.Context, batch []*sim.Descriptor) error {
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}
	for _, d := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload := w.runOne(ctx, d, logger)
		if err := w.Results.PutResults(ctx, payload); err != nil {
			logger.Printf("submitting result for %s: %v", d.ID, err)
		}
	}
	return nil
}

// runOne executes a single run under the wall-clock deadline, retrying a
// timed-out run up to Attempts times, and always produces a result payload.
// Engine errors are not retried; the run is simply marked unsuccessful.
func (w *Worker) runOne(ctx context.Context, d *sim.Descriptor, logger *log.Logger) server.ResultPayload {
	start := time.Now()
	attempts := w.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var ticks *int
	var seed int64
	for attempt := 1; attempt <= attempts; attempt++ {
		var err error
		ticks, seed, err = w.attempt(ctx, d)
		if err == nil {
			break
		}
		if errors.Is(err, context.DeadlineExceeded) && attempt < attempts {
			logger.Printf("simulation %s timed out after %v, attempt %d of %d",
				d.ID, w.Timeout, attempt, attempts)
			continue
		}
		logger.Printf("simulation %s failed: %v", d.ID, err)
		ticks = nil
		break
	}

	elapsed := time.Since(start).Seconds()
	return server.ResultPayload{
		SimulationID:    d.ID,
		NetlogoSeed:     seed,
		EvacuationTicks: ticks,
		EvacuationTime:  elapsed,
		Success:         ticks != nil && *ticks < d.Params.MaxNetlogoTicks,
	}
}

type attemptResult struct {
	ticks *int
	seed  int64
	err   error
}

// attempt runs one setup+step cycle, racing the engine against the run's
// deadline. The link is not safe for concurrent use, so a timed-out attempt
// is not simply abandoned: the engine is shut down, which fails the drive
// goroutine's next call, and the link is replaced before anything else
// touches it.
func (w *Worker) attempt(ctx context.Context, d *sim.Descriptor) (*int, int64, error) {
	runCtx := ctx
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	done := make(chan attemptResult, 1)
	go func() {
		ticks, seed, err := w.drive(d)
		done <- attemptResult{ticks: ticks, seed: seed, err: err}
	}()

	select {
	case res := <-done:
		return res.ticks, res.seed, res.err
	case <-runCtx.Done():
	}

	w.Link.Close()
	<-done
	if w.Reopen != nil {
		link, err := w.Reopen()
		if err != nil {
			return nil, 0, fmt.Errorf("replacing engine after timeout: %w", err)
		}
		w.Link = link
	}
	return nil, 0, runCtx.Err()
}

// drive performs the engine conversation for one run: clear, configure,
// seed, setup, then step until the termination predicate holds or the tick
// ceiling is reached. Returns nil ticks when the evacuation did not finish.
func (w *Worker) drive(d *sim.Descriptor) (*int, int64, error) {
	if err := w.Link.Command(engine.ClearCommand); err != nil {
		return nil, 0, err
	}
	for _, cmd := range engine.SetupCommands(d) {
		if err := w.Link.Command(cmd); err != nil {
			return nil, 0, err
		}
	}

	seedValue, err := w.Link.Report(fmt.Sprintf(engine.SeedReporter, d.Seed))
	if err != nil {
		return nil, 0, err
	}
	seed := seedValue.Int()

	if err := w.Link.Command(engine.SetupCommand); err != nil {
		return nil, seed, err
	}

	finished := false
	for step := 0; step < d.Params.MaxNetlogoTicks; step++ {
		value, err := w.Link.Report(engine.FinishedReporter)
		if err != nil {
			return nil, seed, err
		}
		if value.Bool() {
			finished = true
			break
		}
		if err := w.Link.Command(engine.GoCommand); err != nil {
			return nil, seed, err
		}
	}
	if !finished {
		// Did not finish within the tick ceiling.
		return nil, seed, nil
	}

	ticksValue, err := w.Link.Report(engine.TicksReporter)
	if err != nil {
		return nil, seed, err
	}
	ticks := int(ticksValue.Int())
	return &ticks, seed, nil
}
