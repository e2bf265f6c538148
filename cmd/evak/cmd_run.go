package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/server"
)

func newRunCmd() *cobra.Command {
	var serverURL string
	var name string
	var path string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a campaign on a running synchronization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = time.Now().Format("2006-01-02-15-04-05")
			}

			client := server.NewClient(serverURL)
			folder := server.ExperimentFolder{Name: name, Path: path}
			if err := client.Start(cmd.Context(), folder); err != nil {
				return fmt.Errorf("starting campaign %q: %w", name, err)
			}
			fmt.Printf("campaign %q finished\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:5000", "synchronization server URL")
	cmd.Flags().StringVar(&name, "name", "", "campaign name (default: current timestamp)")
	cmd.Flags().StringVar(&path, "folder", "", "output folder path (default: under the server's data folder)")
	return cmd
}
