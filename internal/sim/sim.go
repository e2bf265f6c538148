// Package sim defines the core data model for an evacuation campaign:
// engine parameters, scenarios, run descriptors and their results.
package sim

import "fmt"

// Params holds the engine parameters for a single run. Values are copied
// into each Descriptor as a flat snapshot at build time.
type Params struct {
	Seed                  int64   `json:"seed"`
	NumOfSamples          int     `json:"num_of_samples"`
	NumOfRobots           int     `json:"num_of_robots"`
	NumOfPassengers       int     `json:"num_of_passengers"`
	NumOfStaff            int     `json:"num_of_staff"`
	FallLength            int     `json:"fall_length"`
	FallChance            float64 `json:"fall_chance"`
	AllowStaffSupport     bool    `json:"allow_staff_support"`
	AllowPassengerSupport bool    `json:"allow_passenger_support"`
	MaxNetlogoTicks       int     `json:"max_netlogo_ticks"`
	RoomType              int     `json:"room_type"`
	EnableVideo           bool    `json:"enable_video"`
}

// DefaultParams returns the parameter defaults used when the configuration
// does not override a value.
func DefaultParams() Params {
	return Params{
		Seed:            0,
		NumOfSamples:    30,
		NumOfRobots:     1,
		NumOfPassengers: 800,
		NumOfStaff:      10,
		FallLength:      500,
		FallChance:      0.05,
		MaxNetlogoTicks: 2000,
		RoomType:        8,
	}
}

// Has reports whether name is a known parameter key (snake_case form).
func (p *Params) Has(name string) bool {
	switch name {
	case "seed", "num_of_samples", "num_of_robots", "num_of_passengers",
		"num_of_staff", "fall_length", "fall_chance", "allow_staff_support",
		"allow_passenger_support", "max_netlogo_ticks", "room_type", "enable_video":
		return true
	}
	return false
}

// Set assigns the parameter named by its snake_case key. JSON decoding hands
// numbers over as float64, so numeric fields accept any numeric type.
func (p *Params) Set(name string, value any) error {
	switch name {
	case "seed":
		n, err := toInt64(value)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
		p.Seed = n
	case "num_of_samples":
		return setInt(&p.NumOfSamples, name, value)
	case "num_of_robots":
		return setInt(&p.NumOfRobots, name, value)
	case "num_of_passengers":
		return setInt(&p.NumOfPassengers, name, value)
	case "num_of_staff":
		return setInt(&p.NumOfStaff, name, value)
	case "fall_length":
		return setInt(&p.FallLength, name, value)
	case "fall_chance":
		f, err := toFloat(value)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
		p.FallChance = f
	case "allow_staff_support":
		return setBool(&p.AllowStaffSupport, name, value)
	case "allow_passenger_support":
		return setBool(&p.AllowPassengerSupport, name, value)
	case "max_netlogo_ticks":
		return setInt(&p.MaxNetlogoTicks, name, value)
	case "room_type":
		return setInt(&p.RoomType, name, value)
	case "enable_video":
		return setBool(&p.EnableVideo, name, value)
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}
	return nil
}

// Fields returns the parameters as an ordered name/value list, used by the
// result aggregator to emit one CSV column per parameter.
func (p *Params) Fields() []Field {
	return []Field{
		{"seed", p.Seed},
		{"num_of_samples", p.NumOfSamples},
		{"num_of_robots", p.NumOfRobots},
		{"num_of_passengers", p.NumOfPassengers},
		{"num_of_staff", p.NumOfStaff},
		{"fall_length", p.FallLength},
		{"fall_chance", p.FallChance},
		{"allow_staff_support", p.AllowStaffSupport},
		{"allow_passenger_support", p.AllowPassengerSupport},
		{"max_netlogo_ticks", p.MaxNetlogoTicks},
		{"room_type", p.RoomType},
		{"enable_video", p.EnableVideo},
	}
}

// Field is a named parameter value.
type Field struct {
	Name  string
	Value any
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func setInt(dst *int, name string, v any) error {
	n, err := toInt64(v)
	if err != nil {
		return fmt.Errorf("parameter %q: %w", name, err)
	}
	*dst = int(n)
	return nil
}

func setBool(dst *bool, name string, v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("parameter %q: expected bool, got %T", name, v)
	}
	*dst = b
	return nil
}

// Result holds the outcome of a single run. It is created empty at
// descriptor-build time and filled in by the synchronization state as
// callbacks and the final submission arrive. A nil EvacuationTicks means the
// run did not finish within the tick ceiling.
type Result struct {
	NetlogoSeed     int64    `json:"netlogo_seed"`
	EvacuationTicks *int     `json:"evacuation_ticks"`
	EvacuationTime  float64  `json:"evacuation_time"`
	Success         bool     `json:"success"`
	Actions         []string `json:"robot_actions"`
	Responses       []string `json:"robot_responses"`
	Contacts        int      `json:"contacts"`
}

// Descriptor identifies one concrete run: a unique id, the owning scenario,
// a seed (0 delegates seeding to the engine) and a flat parameter snapshot.
// Read-only after build, except for the embedded Result.
type Descriptor struct {
	ID           string `json:"id"`
	ScenarioName string `json:"scenario_name"`
	Seed         int64  `json:"seed"`
	Params       Params `json:"params"`
	Result       Result `json:"result"`
}

// Scenario is a named parameter configuration bound to a decision strategy,
// expandable into NumOfSamples concrete runs. Immutable after descriptors are
// built.
type Scenario struct {
	Name        string
	Description string
	Enabled     bool
	Strategy    string
	Params      Params
	Simulations []*Descriptor
}

// BuildDescriptors creates the scenario's run descriptors, one per sample,
// with derived ids and seeds.
func (s *Scenario) BuildDescriptors() {
	for i := 0; i < s.Params.NumOfSamples; i++ {
		s.Simulations = append(s.Simulations, &Descriptor{
			ID:           GenerateID(s.Name, i),
			ScenarioName: s.Name,
			Seed:         GenerateSeed(s.Params.Seed, i),
			Params:       s.Params,
		})
	}
}

// Copy returns a scenario with the same configuration and no descriptors.
func (s *Scenario) Copy() *Scenario {
	return &Scenario{
		Name:        s.Name,
		Description: s.Description,
		Enabled:     s.Enabled,
		Strategy:    s.Strategy,
		Params:      s.Params,
	}
}
