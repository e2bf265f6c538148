package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/campaign"
)

const (
	ExitSuccess        = 0
	ExitCampaignFailed = 1
	ExitError          = 2
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "evak",
		Short: "Robot-assisted evacuation simulation campaigns",
		Long: `evak orchestrates parameter-sweep campaigns of evacuation simulations.

The serve command runs the synchronization server that brokers robot
decisions, collects results and drives the worker pool. The run command
kicks off a campaign against a running server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newValidateCmd(),
		newWorkerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, campaign.ErrStalled) {
			os.Exit(ExitCampaignFailed)
		}
		os.Exit(ExitError)
	}
}
