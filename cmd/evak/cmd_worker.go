package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/engine"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/scheduler"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/server"
)

// newWorkerCmd is the hidden entry point the scheduler re-execs for each
// shard. It is not meant to be invoked by hand.
func newWorkerCmd() *cobra.Command {
	var batchFile string
	var serverURL string
	var engineCommand string
	var modelPath string
	var timeout time.Duration
	var attempts int

	cmd := &cobra.Command{
		Use:    "worker",
		Hidden: true,
		Short:  "Run one shard of simulations (internal)",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := scheduler.ReadBatchFile(batchFile)
			if err != nil {
				return err
			}

			link, err := engine.Open(engineCommand, modelPath)
			if err != nil {
				return fmt.Errorf("starting engine: %w", err)
			}

			w := &scheduler.Worker{
				Link:    link,
				Results: server.NewClient(serverURL),
				Reopen: func() (engine.Link, error) {
					return engine.Open(engineCommand, modelPath)
				},
				Timeout:  timeout,
				Attempts: attempts,
				Logger:   log.New(os.Stderr, fmt.Sprintf("worker[%d] ", os.Getpid()), log.LstdFlags),
			}
			// The worker may have replaced the link after a timeout, so
			// close whichever one it holds at exit.
			defer func() { w.Link.Close() }()
			return w.RunBatch(cmd.Context(), batch)
		},
	}
	cmd.Flags().StringVar(&batchFile, "batch", "", "path to the staged shard file")
	cmd.Flags().StringVar(&serverURL, "server", "", "synchronization server URL")
	cmd.Flags().StringVar(&engineCommand, "engine", "", "engine launch command")
	cmd.Flags().StringVar(&modelPath, "model", "", "model file handed to the engine")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-run wall-clock deadline")
	cmd.Flags().IntVar(&attempts, "attempts", 2, "attempts per run before giving up")
	cmd.MarkFlagRequired("batch")
	cmd.MarkFlagRequired("server")
	cmd.MarkFlagRequired("engine")
	return cmd
}
