package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/engine"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/server"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

func TestBuildBatchesRoundRobin(t *testing.T) {
	pool := descriptors("alpha", 7)
	batches := BuildBatches(pool, 3)

	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	// Round-robin: batch 0 gets indexes 0,3,6, batch 1 gets 1,4, batch 2 gets 2,5.
	wantSizes := []int{3, 2, 2}
	for i, batch := range batches {
		if len(batch) != wantSizes[i] {
			t.Errorf("batch %d: expected %d runs, got %d", i, wantSizes[i], len(batch))
		}
	}
	if batches[0][1].ID != "alpha_3" {
		t.Errorf("expected alpha_3 in batch 0, got %s", batches[0][1].ID)
	}
}

func TestBuildBatchesMoreWorkersThanRuns(t *testing.T) {
	pool := descriptors("beta", 2)
	batches := BuildBatches(pool, 5)

	if len(batches) != 2 {
		t.Fatalf("expected empty shards dropped, got %d batches", len(batches))
	}
	for _, batch := range batches {
		if len(batch) != 1 {
			t.Errorf("expected 1 run per batch, got %d", len(batch))
		}
	}
}

func TestBuildBatchesInvalidWorkerCount(t *testing.T) {
	batches := BuildBatches(descriptors("gamma", 3), 0)
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("expected a single batch of 3, got %v", batches)
	}
}

func TestWorkerRunBatchSuccess(t *testing.T) {
	link := &engine.FakeLink{TicksToFinish: 5}
	sink := &recordingSink{}
	w := &Worker{
		Link:     link,
		Results:  sink,
		Timeout:  5 * time.Second,
		Attempts: 2,
		Logger:   discard(),
	}

	batch := descriptors("run", 2)
	if err := w.RunBatch(context.Background(), batch); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	results := sink.all()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("%s: expected success", r.SimulationID)
		}
		if r.EvacuationTicks == nil || *r.EvacuationTicks != 5 {
			t.Errorf("%s: expected 5 ticks, got %v", r.SimulationID, r.EvacuationTicks)
		}
		if r.NetlogoSeed == 0 {
			t.Errorf("%s: expected engine-picked seed", r.SimulationID)
		}
	}
}

func TestWorkerRunBatchTickCeiling(t *testing.T) {
	// The evacuation never finishes, so the worker gives up at the tick
	// ceiling and reports an unsuccessful run with no tick count.
	link := &engine.FakeLink{TicksToFinish: 0}
	sink := &recordingSink{}
	w := &Worker{Link: link, Results: sink, Timeout: 5 * time.Second, Logger: discard()}

	batch := descriptors("stuck", 1)
	batch[0].Params.MaxNetlogoTicks = 10
	if err := w.RunBatch(context.Background(), batch); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	results := sink.all()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Success {
		t.Error("expected unsuccessful run")
	}
	if results[0].EvacuationTicks != nil {
		t.Errorf("expected nil ticks, got %d", *results[0].EvacuationTicks)
	}
}

func TestWorkerRunBatchEngineFailure(t *testing.T) {
	// A scripted engine error marks the run failed without retrying, and the
	// rest of the shard still runs.
	link := &engine.FakeLink{TicksToFinish: 3, FailCommands: []string{`"fragile_0"`}}
	sink := &recordingSink{}
	w := &Worker{Link: link, Results: sink, Timeout: 5 * time.Second, Attempts: 2, Logger: discard()}

	if err := w.RunBatch(context.Background(), descriptors("fragile", 2)); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	results := sink.all()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Success || results[0].EvacuationTicks != nil {
		t.Errorf("expected failed first run, got %+v", results[0])
	}
	if !results[1].Success {
		t.Errorf("expected second run to succeed, got %+v", results[1])
	}
}

func TestWorkerRunBatchTimeoutRetries(t *testing.T) {
	// Every step blocks longer than the deadline, so both attempts time out
	// and the run is reported unsuccessful.
	link := &engine.FakeLink{TicksToFinish: 100, StepDelay: 30 * time.Millisecond}
	sink := &recordingSink{}
	w := &Worker{
		Link:     link,
		Results:  sink,
		Timeout:  20 * time.Millisecond,
		Attempts: 2,
		Logger:   discard(),
	}

	batch := descriptors("slow", 1)
	batch[0].Params.MaxNetlogoTicks = 5
	if err := w.RunBatch(context.Background(), batch); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	results := sink.all()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Success || results[0].EvacuationTicks != nil {
		t.Errorf("expected timed-out run to fail, got %+v", results[0])
	}
}

// exclusiveLink fails the test's invariant flag whenever two calls are in
// flight at once. Calls block long enough that a leftover drive goroutine
// from a timed-out attempt would overlap any new engine traffic.
type exclusiveLink struct {
	delay    time.Duration
	inFlight atomic.Int32
	overlap  atomic.Bool
	closed   atomic.Bool
}

func (l *exclusiveLink) enter() {
	if l.inFlight.Add(1) != 1 {
		l.overlap.Store(true)
	}
}

func (l *exclusiveLink) exit() { l.inFlight.Add(-1) }

func (l *exclusiveLink) Command(string) error {
	l.enter()
	defer l.exit()
	if l.closed.Load() {
		return fmt.Errorf("engine closed")
	}
	time.Sleep(l.delay)
	return nil
}

func (l *exclusiveLink) Report(string) (gjson.Result, error) {
	l.enter()
	defer l.exit()
	if l.closed.Load() {
		return gjson.Result{}, fmt.Errorf("engine closed")
	}
	time.Sleep(l.delay)
	return gjson.Parse("false"), nil
}

func (l *exclusiveLink) Close() error {
	l.closed.Store(true)
	return nil
}

func TestWorkerTimeoutNeverOverlapsLinkUse(t *testing.T) {
	// A timed-out attempt must not keep driving the link while the retry or
	// the next descriptor's run is using it.
	link := &exclusiveLink{delay: 60 * time.Millisecond}
	sink := &recordingSink{}
	w := &Worker{
		Link:     link,
		Results:  sink,
		Timeout:  20 * time.Millisecond,
		Attempts: 2,
		Logger:   discard(),
	}

	batch := descriptors("serial", 2)
	for _, d := range batch {
		d.Params.MaxNetlogoTicks = 3
	}
	if err := w.RunBatch(context.Background(), batch); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if link.overlap.Load() {
		t.Fatal("link was driven by two attempts at once")
	}
	if len(sink.all()) != 2 {
		t.Fatalf("expected 2 results, got %d", len(sink.all()))
	}
}

func TestWorkerTimeoutReplacesLink(t *testing.T) {
	// After the first attempt times out the engine is torn down; the retry
	// runs against a fresh link and succeeds.
	slow := &engine.FakeLink{TicksToFinish: 100, StepDelay: 30 * time.Millisecond}
	fresh := &engine.FakeLink{TicksToFinish: 2}
	sink := &recordingSink{}
	reopened := 0
	w := &Worker{
		Link:    slow,
		Results: sink,
		Reopen: func() (engine.Link, error) {
			reopened++
			return fresh, nil
		},
		Timeout:  20 * time.Millisecond,
		Attempts: 2,
		Logger:   discard(),
	}

	batch := descriptors("revive", 1)
	batch[0].Params.MaxNetlogoTicks = 5
	if err := w.RunBatch(context.Background(), batch); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if reopened != 1 {
		t.Fatalf("expected 1 reopen, got %d", reopened)
	}
	if !slow.Closed() {
		t.Error("timed-out link was not closed")
	}
	results := sink.all()
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("expected successful retry on the fresh link, got %+v", results)
	}
	if results[0].EvacuationTicks == nil || *results[0].EvacuationTicks != 2 {
		t.Errorf("expected 2 ticks from the fresh link, got %v", results[0].EvacuationTicks)
	}
}

func TestWorkerRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &Worker{Link: &engine.FakeLink{TicksToFinish: 1}, Results: &recordingSink{}, Logger: discard()}
	if err := w.RunBatch(ctx, descriptors("halt", 3)); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestBatchFileRoundTrip(t *testing.T) {
	batch := descriptors("persisted", 3)
	file, err := writeBatchFile(batch)
	if err != nil {
		t.Fatalf("writeBatchFile: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(file) })

	loaded, err := ReadBatchFile(file)
	if err != nil {
		t.Fatalf("ReadBatchFile: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(loaded))
	}
	if loaded[2].ID != batch[2].ID || loaded[2].Seed != batch[2].Seed {
		t.Errorf("descriptor mismatch: %+v vs %+v", loaded[2], batch[2])
	}
}

func TestScheduleStagingFailureSpawnsNothing(t *testing.T) {
	// All shards are staged before any worker starts, so a staging failure
	// surfaces as an error with no processes left behind.
	t.Setenv("TMPDIR", filepath.Join(t.TempDir(), "missing"))

	p := &Pool{Workers: 2, ServerURL: "http://127.0.0.1:0", EngineCommand: "true", Logger: discard()}
	err := p.Schedule(context.Background(), descriptors("staged", 4))
	if err == nil || !strings.Contains(err.Error(), "staging batch") {
		t.Fatalf("expected staging error, got %v", err)
	}
}

func TestReadBatchFileMissing(t *testing.T) {
	if _, err := ReadBatchFile("no-such-batch.json"); err == nil {
		t.Fatal("expected error for missing batch file")
	}
}

func descriptors(scenario string, n int) []*sim.Descriptor {
	s := &sim.Scenario{Name: scenario, Strategy: "AlwaysAskHelp", Params: sim.DefaultParams()}
	s.Params.NumOfSamples = n
	s.BuildDescriptors()
	return s.Simulations
}

type recordingSink struct {
	mu      sync.Mutex
	results []server.ResultPayload
}

func (r *recordingSink) PutResults(_ context.Context, payload server.ResultPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, payload)
	return nil
}

func (r *recordingSink) all() []server.ResultPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]server.ResultPayload(nil), r.results...)
}

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
