package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/campaign"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/config"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/progress"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/scheduler"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/server"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/state"
)

func newServeCmd() *cobra.Command {
	var experimentPath string
	var settingsPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the synchronization server and worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(settingsPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), experimentPath, settings)
		},
	}
	cmd.Flags().StringVar(&experimentPath, "experiment", "", "path to the experiment configuration (JSON, required)")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "path to the runtime settings file (YAML)")
	cmd.MarkFlagRequired("experiment")
	return cmd
}

func serve(parent context.Context, experimentPath string, settings config.Settings) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := state.New(logger)
	start := func(folder server.ExperimentFolder) error {
		return runCampaign(ctx, st, experimentPath, settings, folder, logger)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: server.New(st, start, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("synchronization server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	logger.Printf("server stopped")
	return nil
}

// runCampaign executes one full campaign for an incoming /start request. The
// experiment configuration is reloaded each time so that every campaign gets
// fresh descriptors.
func runCampaign(ctx context.Context, st *state.State, experimentPath string,
	settings config.Settings, folder server.ExperimentFolder, logger *log.Logger) error {

	experiment, err := config.LoadExperiment(experimentPath, logger)
	if err != nil {
		return err
	}

	output := folder.Path
	if output == "" {
		output = filepath.Join(settings.DataFolder, folder.Name)
	}

	pool := &scheduler.Pool{
		Workers:       settings.Workers,
		ServerURL:     fmt.Sprintf("http://127.0.0.1:%d", settings.Port),
		EngineCommand: experiment.EngineCommand,
		ModelPath:     experiment.ModelPath,
		Timeout:       settings.RunTimeout,
		Attempts:      settings.RunAttempts,
		Logger:        logger,
	}

	prog := progress.NewProgress(st, settings.Quiet)
	prog.Start()
	defer prog.Stop()

	c := &campaign.Campaign{
		Experiment:   experiment,
		State:        st,
		Scheduler:    pool,
		OutputFolder: output,
		Logger:       logger,
	}
	err = c.Run(ctx)
	prog.Stop()
	switch {
	case err == nil:
		prog.Printf("campaign finished, results in %s", output)
	case errors.Is(err, campaign.ErrStalled):
		prog.Printf("campaign aborted: %v", err)
	}
	return err
}
