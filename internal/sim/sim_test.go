package sim

import "testing"

func TestScenario_BuildDescriptors(t *testing.T) {
	s := &Scenario{Name: "baseline", Enabled: true, Params: DefaultParams()}
	s.Params.NumOfSamples = 3
	s.BuildDescriptors()

	if len(s.Simulations) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(s.Simulations))
	}
	want := []string{"baseline_0", "baseline_1", "baseline_2"}
	for i, d := range s.Simulations {
		if d.ID != want[i] {
			t.Errorf("descriptor %d id = %q, want %q", i, d.ID, want[i])
		}
		if d.Seed != 0 {
			t.Errorf("descriptor %q seed = %d, want 0 (base seed 0)", d.ID, d.Seed)
		}
		if d.ScenarioName != "baseline" {
			t.Errorf("descriptor %q scenario = %q, want baseline", d.ID, d.ScenarioName)
		}
	}
}

func TestScenario_BuildDescriptorsSeedsReproducible(t *testing.T) {
	build := func() []*Descriptor {
		s := &Scenario{Name: "seeded", Params: DefaultParams()}
		s.Params.Seed = 42
		s.Params.NumOfSamples = 5
		s.BuildDescriptors()
		return s.Simulations
	}
	first, second := build(), build()
	for i := range first {
		if first[i].Seed != second[i].Seed {
			t.Errorf("descriptor %d seed differs across builds: %d != %d",
				i, first[i].Seed, second[i].Seed)
		}
		if first[i].Seed == 0 {
			t.Errorf("descriptor %d seed = 0 despite nonzero base", i)
		}
	}
}

func TestParams_Set(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"num_of_robots", float64(4)}, // JSON numbers decode as float64
		{"num_of_samples", 10},
		{"fall_chance", 0.3},
		{"enable_video", true},
		{"seed", float64(99)},
	}
	p := DefaultParams()
	for _, tt := range tests {
		if err := p.Set(tt.key, tt.value); err != nil {
			t.Errorf("Set(%q, %v) returned error: %v", tt.key, tt.value, err)
		}
	}
	if p.NumOfRobots != 4 || p.NumOfSamples != 10 || p.FallChance != 0.3 ||
		!p.EnableVideo || p.Seed != 99 {
		t.Errorf("Set did not apply values: %+v", p)
	}
}

func TestParams_SetUnknownKey(t *testing.T) {
	p := DefaultParams()
	if err := p.Set("num_of_aliens", 1); err == nil {
		t.Error("expected error for unknown parameter, got nil")
	}
}

func TestParams_SetWrongType(t *testing.T) {
	p := DefaultParams()
	if err := p.Set("num_of_robots", "four"); err == nil {
		t.Error("expected error for string value on int parameter, got nil")
	}
	if err := p.Set("enable_video", 1); err == nil {
		t.Error("expected error for numeric value on bool parameter, got nil")
	}
}

func TestParams_FieldsCoverEveryKey(t *testing.T) {
	p := DefaultParams()
	for _, f := range p.Fields() {
		if !p.Has(f.Name) {
			t.Errorf("Fields() returned %q but Has(%q) is false", f.Name, f.Name)
		}
	}
	if len(p.Fields()) != 12 {
		t.Errorf("expected 12 parameter fields, got %d", len(p.Fields()))
	}
}
