// Package config loads the experiment configuration (JSON) and the runtime
// settings (YAML), and expands the configured scenarios into concrete run
// descriptors.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"unicode"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/strategy"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/sweep"
)

// Experiment is a fully validated and expanded experiment configuration.
// Scenarios carry their run descriptors; the configuration is immutable from
// here on.
type Experiment struct {
	EngineCommand  string
	ModelPath      string
	TargetScenario string
	Scenarios      []*sim.Scenario
}

// Descriptors returns the full run pool across all scenarios.
func (e *Experiment) Descriptors() []*sim.Descriptor {
	var pool []*sim.Descriptor
	for _, s := range e.Scenarios {
		pool = append(pool, s.Simulations...)
	}
	return pool
}

type rawExperiment struct {
	EngineCommand             string           `json:"engineCommand"`
	NetlogoModelPath          string           `json:"netlogoModelPath"`
	TargetScenarioForAnalysis string           `json:"targetScenarioForAnalysis"`
	ScenarioParams            map[string]any   `json:"scenarioParams"`
	SimulationScenarios       []map[string]any `json:"simulationScenarios"`
}

// Keys of a scenario entry that are not engine parameters.
const (
	keyName        = "name"
	keyDescription = "description"
	keyEnabled     = "enabled"
	keyStrategy    = "adaptation_strategy"
)

// LoadExperiment reads, validates and expands the experiment configuration.
// Any failure here is fatal for the whole campaign, before any run starts.
func LoadExperiment(path string, logger *log.Logger) (*Experiment, error) {
	if logger == nil {
		logger = log.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}
	return ParseExperiment(data, logger)
}

// ParseExperiment builds an Experiment from raw JSON configuration bytes.
func ParseExperiment(data []byte, logger *log.Logger) (*Experiment, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return nil, fmt.Errorf("invalid JSON in configuration: %w", err)
	}
	for _, required := range []string{"scenarioParams", "simulationScenarios", "targetScenarioForAnalysis"} {
		if _, ok := present[required]; !ok {
			return nil, fmt.Errorf("missing key in configuration: %q", required)
		}
	}

	var raw rawExperiment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	exp := &Experiment{
		EngineCommand:  raw.EngineCommand,
		ModelPath:      raw.NetlogoModelPath,
		TargetScenario: raw.TargetScenarioForAnalysis,
	}

	defaults := toSnakeCaseKeys(raw.ScenarioParams)
	names := map[string]bool{}

	for _, entry := range raw.SimulationScenarios {
		entry = toSnakeCaseKeys(entry)

		enabled, ok := entry[keyEnabled].(bool)
		if !ok {
			return nil, fmt.Errorf("scenario %v missing boolean %q key", entry[keyName], keyEnabled)
		}
		if !enabled {
			continue
		}
		name, _ := entry[keyName].(string)
		if name == "" {
			return nil, fmt.Errorf("each scenario must have a non-empty %q key", keyName)
		}
		if names[name] {
			return nil, fmt.Errorf("duplicate scenario name: %q", name)
		}
		names[name] = true

		scenarios, err := buildScenario(name, defaults, entry)
		if err != nil {
			return nil, err
		}
		exp.Scenarios = append(exp.Scenarios, scenarios...)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("no enabled scenarios found in configuration")
	}
	if exp.TargetScenario != "" && !names[exp.TargetScenario] {
		logger.Printf("warning: target scenario for analysis %q not found in simulation scenarios",
			exp.TargetScenario)
	}
	return exp, nil
}

// buildScenario merges the shared defaults with a scenario's overrides and
// expands it: scalar values configure the template directly, multi-valued
// parameters (lists or {start,end,step} ranges) go through the sweep builder.
func buildScenario(name string, defaults, overrides map[string]any) ([]*sim.Scenario, error) {
	template := &sim.Scenario{Name: name, Enabled: true, Params: sim.DefaultParams()}
	varying := map[string][]any{}

	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	for key, value := range merged {
		switch key {
		case keyName, keyEnabled:
			continue
		case keyDescription:
			template.Description, _ = value.(string)
			continue
		case keyStrategy:
			switch s := value.(type) {
			case string:
				template.Strategy = s
			case []any:
				// A strategy list sweeps the scenario across strategies.
				if len(s) == 0 {
					return nil, fmt.Errorf("scenario %q: empty %q list", name, keyStrategy)
				}
				for _, v := range s {
					strat, ok := v.(string)
					if !ok {
						return nil, fmt.Errorf("scenario %q: %q values must be strings, got %T",
							name, keyStrategy, v)
					}
					if !strategy.Known(strat) {
						return nil, fmt.Errorf("scenario %q: unknown adaptation strategy %q (known: %s)",
							name, strat, strings.Join(strategy.Names(), ", "))
					}
				}
				template.Strategy, _ = s[0].(string)
				varying[keyStrategy] = s
			default:
				return nil, fmt.Errorf("scenario %q: %q must be a string or a list of strings",
					name, keyStrategy)
			}
			continue
		}

		values, multi, err := expandValue(key, value)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", name, err)
		}
		if multi {
			if !template.Params.Has(key) {
				return nil, fmt.Errorf("scenario %q: parameter %q not in scenario", name, key)
			}
			varying[key] = values
			continue
		}
		if err := template.Params.Set(key, values[0]); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", name, err)
		}
	}

	if template.Strategy == "" {
		return nil, fmt.Errorf("scenario %q: missing adaptation strategy", name)
	}
	if !strategy.Known(template.Strategy) {
		return nil, fmt.Errorf("scenario %q: unknown adaptation strategy %q (known: %s)",
			name, template.Strategy, strings.Join(strategy.Names(), ", "))
	}

	if len(varying) > 0 {
		return sweep.Build(template, varying, template.Params.NumOfSamples)
	}
	template.BuildDescriptors()
	return []*sim.Scenario{template}, nil
}

// expandValue normalizes one configured value: a {start,end,step} object or a
// list yields a multi-valued expansion, anything else stays a single scalar.
func expandValue(key string, value any) (values []any, multi bool, err error) {
	switch v := value.(type) {
	case map[string]any:
		r, ok := parseRange(v)
		if !ok {
			return nil, false, fmt.Errorf("parameter %q: object value must be a {start,end,step} range", key)
		}
		expanded, err := r.Expand()
		if err != nil {
			return nil, false, fmt.Errorf("parameter %q: %w", key, err)
		}
		return expanded, true, nil
	case []any:
		if len(v) == 0 {
			return nil, false, fmt.Errorf("parameter %q: empty value list", key)
		}
		return v, true, nil
	}
	return []any{value}, false, nil
}

func parseRange(m map[string]any) (sweep.Range, bool) {
	start, okStart := m["start"].(float64)
	end, okEnd := m["end"].(float64)
	if !okStart || !okEnd {
		return sweep.Range{}, false
	}
	step, _ := m["step"].(float64)
	return sweep.Range{Start: start, End: end, Step: step}, true
}

// toSnakeCaseKeys converts every camelCase key of the map to snake_case, the
// canonical parameter naming used internally.
func toSnakeCaseKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[toSnakeCase(k)] = v
	}
	return out
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
