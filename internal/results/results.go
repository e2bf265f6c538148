// Package results flattens completed campaign runs into tabular form and
// writes the CSV artifacts of an experiment.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

// Table is an in-memory CSV: a header and its rows. It stays available to the
// caller even when writing it to disk fails.
type Table struct {
	Header []string
	Rows   [][]string
}

// Aggregate flattens every run of every scenario into one row: identity
// columns, the full parameter snapshot, then the result fields. Scenarios
// contribute rows in registration order.
func Aggregate(scenarios []*sim.Scenario) Table {
	table := Table{Header: header(scenarios)}
	for _, scenario := range scenarios {
		for _, d := range scenario.Simulations {
			table.Rows = append(table.Rows, row(scenario, d))
		}
	}
	return table
}

func header(scenarios []*sim.Scenario) []string {
	cols := []string{"simulation_id", "scenario", "adaptation_strategy"}
	params := sim.DefaultParams()
	if len(scenarios) > 0 {
		params = scenarios[0].Params
	}
	for _, f := range params.Fields() {
		cols = append(cols, f.Name)
	}
	return append(cols,
		"netlogo_seed", "evacuation_ticks", "evacuation_time", "success",
		"robot_actions", "robot_responses", "contacts")
}

func row(scenario *sim.Scenario, d *sim.Descriptor) []string {
	cells := []string{d.ID, scenario.Name, scenario.Strategy}
	for _, f := range d.Params.Fields() {
		cells = append(cells, formatValue(f.Value))
	}
	r := d.Result
	return append(cells,
		fmt.Sprint(r.NetlogoSeed),
		formatTicks(r.EvacuationTicks),
		fmt.Sprintf("%.3f", r.EvacuationTime),
		fmt.Sprint(r.Success),
		strings.Join(r.Actions, ";"),
		strings.Join(r.Responses, ";"),
		fmt.Sprint(r.Contacts),
	)
}

// PivotTicks builds the ticks-by-scenario view: one row per sample index, one
// column per scenario, cell = that sample's evacuation ticks. Runs that did
// not finish leave their cell empty.
func PivotTicks(scenarios []*sim.Scenario) Table {
	table := Table{Header: []string{"sample"}}
	depth := 0
	for _, scenario := range scenarios {
		table.Header = append(table.Header, scenario.Name)
		if len(scenario.Simulations) > depth {
			depth = len(scenario.Simulations)
		}
	}

	for i := 0; i < depth; i++ {
		cells := []string{fmt.Sprint(i)}
		for _, scenario := range scenarios {
			if i >= len(scenario.Simulations) {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, formatTicks(scenario.Simulations[i].Result.EvacuationTicks))
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// WriteCSV persists the table. The table itself is untouched on failure, so
// callers can log the error and keep working with the in-memory data.
func WriteCSV(table Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(table.Header); err != nil {
		f.Close()
		return fmt.Errorf("writing header to %s: %w", path, err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		f.Close()
		return fmt.Errorf("writing rows to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func formatTicks(ticks *int) string {
	if ticks == nil {
		return ""
	}
	return fmt.Sprint(*ticks)
}

func formatValue(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprint(v)
}
