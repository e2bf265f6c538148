package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/config"
)

func newValidateCmd() *cobra.Command {
	var experimentPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an experiment configuration and print the expanded sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			experiment, err := config.LoadExperiment(experimentPath, log.New(io.Discard, "", 0))
			if err != nil {
				return err
			}

			total := 0
			for _, scenario := range experiment.Scenarios {
				fmt.Printf("%-40s %-16s %d simulations\n",
					scenario.Name, scenario.Strategy, len(scenario.Simulations))
				total += len(scenario.Simulations)
			}
			fmt.Printf("%d scenarios, %d simulations, target scenario %q\n",
				len(experiment.Scenarios), total, experiment.TargetScenario)
			return nil
		},
	}
	cmd.Flags().StringVar(&experimentPath, "experiment", "", "path to the experiment configuration (JSON, required)")
	cmd.MarkFlagRequired("experiment")
	return cmd
}
