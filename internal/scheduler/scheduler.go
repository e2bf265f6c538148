package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

// Pool schedules run descriptors across worker processes. Each worker is a
// re-exec of the current binary running the hidden worker subcommand, so a
// crashed or wedged engine takes down only its own shard.
type Pool struct {
	// Workers is the number of worker processes per scheduling pass.
	Workers int
	// ServerURL is the synchronization server workers report back to.
	ServerURL string
	// EngineCommand launches the simulation engine adapter.
	EngineCommand string
	// ModelPath is handed to the engine adapter verbatim.
	ModelPath string
	Timeout   time.Duration
	Attempts  int
	Logger    *log.Logger
}

// Schedule partitions the pool round-robin, spawns one worker process per
// shard, and waits for all of them. Worker crashes are logged rather than
// propagated: their unfinished runs stay outstanding on the server and are
// picked up by the next reconciliation pass.
func (p *Pool) Schedule(ctx context.Context, pool []*sim.Descriptor) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	if len(pool) == 0 {
		return nil
	}

	batches := BuildBatches(pool, p.Workers)
	logger.Printf("scheduling %d simulations across %d workers", len(pool), len(batches))

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating worker executable: %w", err)
	}

	// Stage every shard before spawning anything, so a staging failure
	// never leaves half the workers running unsupervised.
	files := make([]string, len(batches))
	for i, batch := range batches {
		file, err := writeBatchFile(batch)
		if err != nil {
			for _, staged := range files[:i] {
				os.Remove(staged)
			}
			return fmt.Errorf("staging batch %d: %w", i, err)
		}
		files[i] = file
	}

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(worker int, file string) {
			defer wg.Done()
			defer os.Remove(file)
			if err := p.spawn(ctx, self, file); err != nil {
				logger.Printf("worker %d exited abnormally: %v", worker, err)
			}
		}(i, file)
	}
	wg.Wait()
	return nil
}

func (p *Pool) spawn(ctx context.Context, self, batchFile string) error {
	cmd := exec.CommandContext(ctx, self, "worker",
		"--batch", batchFile,
		"--server", p.ServerURL,
		"--engine", p.EngineCommand,
		"--model", p.ModelPath,
		"--timeout", p.Timeout.String(),
		"--attempts", fmt.Sprint(p.Attempts),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// writeBatchFile stages a shard as a JSON temp file for the worker process.
func writeBatchFile(batch []*sim.Descriptor) (string, error) {
	f, err := os.CreateTemp("", "evak-batch-*.json")
	if err != nil {
		return "", err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(batch); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// ReadBatchFile loads a staged shard inside the worker process.
func ReadBatchFile(path string) ([]*sim.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var batch []*sim.Descriptor
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decoding batch file: %w", err)
	}
	return batch, nil
}
