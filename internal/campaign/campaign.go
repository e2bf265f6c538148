// Package campaign runs a full experiment: it registers every scenario's run
// pool with the synchronization state, hands the pool to the scheduler, and
// reconciles until no run is outstanding.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/config"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/results"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/state"
)

// ErrStalled is returned when consecutive scheduling passes stop making
// progress: the same runs stay outstanding pass after pass.
var ErrStalled = errors.New("campaign stalled: outstanding simulations not shrinking")

// maxStalledPasses is how many consecutive no-progress passes are tolerated
// before the campaign aborts with ErrStalled.
const maxStalledPasses = 3

// Scheduler dispatches a pool of runs and returns when the pass is over.
// *scheduler.Pool implements it.
type Scheduler interface {
	Schedule(ctx context.Context, pool []*sim.Descriptor) error
}

// Campaign ties one experiment's configuration, synchronization state and
// scheduler together for a single end-to-end execution.
type Campaign struct {
	Experiment *config.Experiment
	State      *state.State
	Scheduler  Scheduler
	// OutputFolder receives the aggregated CSV tables. Empty disables
	// aggregation output.
	OutputFolder string
	Logger       *log.Logger
}

// Run executes the campaign: register the pool, schedule and reconcile until
// every run has a result, then aggregate. On normal return no run is
// outstanding and every id completed exactly once.
func (c *Campaign) Run(ctx context.Context) error {
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	if err := c.State.Register(c.Experiment.Scenarios); err != nil {
		return fmt.Errorf("registering campaign: %w", err)
	}

	pool := c.Experiment.Descriptors()
	logger.Printf("starting campaign: %d simulations in %d scenarios",
		len(pool), len(c.Experiment.Scenarios))
	start := time.Now()

	stalled := 0
	for len(pool) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Scheduler.Schedule(ctx, pool); err != nil {
			return fmt.Errorf("scheduling pass: %w", err)
		}

		remaining := c.reconcile(pool)
		switch {
		case len(remaining) == 0:
			pool = nil
		case len(remaining) < len(pool):
			logger.Printf("%d simulations did not report, rescheduling", len(remaining))
			stalled = 0
			pool = remaining
		default:
			stalled++
			if stalled >= maxStalledPasses {
				// The table still gets one row per requested run; the
				// stalled ones carry success=false and empty metrics.
				if aggErr := c.aggregate(logger); aggErr != nil {
					logger.Printf("aggregating stalled campaign: %v", aggErr)
				}
				return fmt.Errorf("%w after %d passes, %d remaining (e.g. %s)",
					ErrStalled, stalled, len(remaining), remaining[0].ID)
			}
			logger.Printf("no progress this pass (%d of %d), retrying", stalled, maxStalledPasses)
			pool = remaining
		}
	}

	logger.Printf("campaign finished: %d simulations in %v",
		c.State.Total(), time.Since(start).Round(time.Second))
	return c.aggregate(logger)
}

// reconcile intersects the scheduled pool with the still-outstanding id set,
// preserving pool order.
func (c *Campaign) reconcile(pool []*sim.Descriptor) []*sim.Descriptor {
	outstanding := make(map[string]struct{})
	for _, id := range c.State.Outstanding() {
		outstanding[id] = struct{}{}
	}

	var remaining []*sim.Descriptor
	for _, d := range pool {
		if _, open := outstanding[d.ID]; open {
			remaining = append(remaining, d)
		}
	}
	return remaining
}

func (c *Campaign) aggregate(logger *log.Logger) error {
	if c.OutputFolder == "" {
		return nil
	}
	if err := os.MkdirAll(c.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("creating output folder: %w", err)
	}

	table := results.Aggregate(c.State.Scenarios())
	if err := results.WriteCSV(table, filepath.Join(c.OutputFolder, "experiment_data.csv")); err != nil {
		logger.Printf("writing experiment data: %v", err)
	}
	pivot := results.PivotTicks(c.State.Scenarios())
	if err := results.WriteCSV(pivot, filepath.Join(c.OutputFolder, "processed_data.csv")); err != nil {
		logger.Printf("writing processed data: %v", err)
	}
	return nil
}
