// Package sweep expands a scenario template into the concrete scenarios of a
// parameter sweep: range specs become explicit value lists, and the cartesian
// product of every multi-valued parameter yields one scenario per combination.
package sweep

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

// Range is a {start,end,step} value spec from the configuration. End is
// exclusive, matching the range semantics of the configuration format.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Step  float64 `json:"step"`
}

// Expand returns the explicit value list for the range. Values are computed
// as start + i*step rather than by accumulation, to limit float drift.
func (r Range) Expand() ([]any, error) {
	step := r.Step
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return nil, fmt.Errorf("range step must be positive, got %v", step)
	}
	var values []any
	for i := 0; ; i++ {
		v := r.Start + float64(i)*step
		if v >= r.End {
			break
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("range {start:%v end:%v step:%v} expands to no values",
			r.Start, r.End, step)
	}
	return values, nil
}

// Build expands a scenario template against a set of varying parameters.
// Each combination of the cartesian product becomes a scenario named after
// the template plus the varied values, carrying samples run descriptors.
// Every varying key must name either the scenario's strategy binding or a
// parameter of its parameter set.
func Build(template *sim.Scenario, varying map[string][]any, samples int) ([]*sim.Scenario, error) {
	keys := make([]string, 0, len(varying))
	for key := range varying {
		if key != "adaptation_strategy" && !template.Params.Has(key) {
			return nil, fmt.Errorf("parameter %q not in scenario %q", key, template.Name)
		}
		keys = append(keys, key)
	}
	// Stable combination order, so repeated builds yield the same scenarios.
	sort.Strings(keys)

	scenarios := []*sim.Scenario{}
	for _, combo := range combinations(keys, varying) {
		scenario := template.Copy()
		scenario.Name = comboName(template.Name, keys, combo)
		scenario.Params.NumOfSamples = samples
		for key, value := range combo {
			if key == "adaptation_strategy" {
				s, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("parameter %q: expected string, got %T", key, value)
				}
				scenario.Strategy = s
				continue
			}
			if err := scenario.Params.Set(key, value); err != nil {
				return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
			}
		}
		scenario.BuildDescriptors()
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

// combinations returns the cartesian product of the varying values, one map
// per combination, iterating keys in the given order.
func combinations(keys []string, varying map[string][]any) []map[string]any {
	combos := []map[string]any{{}}
	for _, key := range keys {
		next := make([]map[string]any, 0, len(combos)*len(varying[key]))
		for _, combo := range combos {
			for _, value := range varying[key] {
				extended := make(map[string]any, len(combo)+1)
				for k, v := range combo {
					extended[k] = v
				}
				extended[key] = value
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

// comboName derives the expanded scenario name from the template name and the
// varied values. Underscores are replaced so the derived run ids still split
// cleanly on the first underscore.
func comboName(base string, keys []string, combo map[string]any) string {
	var b strings.Builder
	b.WriteString(base)
	for _, key := range keys {
		b.WriteString("-")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(formatValue(combo[key]))
	}
	return strings.ReplaceAll(b.String(), "_", "-")
}

func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case int:
		return strconv.Itoa(n)
	case bool:
		return strconv.FormatBool(n)
	case string:
		return n
	}
	return fmt.Sprintf("%v", v)
}
