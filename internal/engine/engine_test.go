package engine

import (
	"strings"
	"testing"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

func TestSetupCommands_CoverEveryParameter(t *testing.T) {
	d := &sim.Descriptor{
		ID:           "baseline_0",
		ScenarioName: "baseline",
		Params:       sim.DefaultParams(),
	}
	d.Params.NumOfRobots = 3
	d.Params.EnableVideo = true

	commands := SetupCommands(d)

	want := []string{
		`set SIMULATION_ID "baseline_0"`,
		"set NUM_OF_ROBOTS 3",
		"set NUM_OF_PASSENGERS 800",
		"set NUM_OF_STAFF 10",
		"set DEFAULT_FALL_LENGTH 500",
		"set FALL_CHANCE 0.05",
		"set REQUEST_STAFF_SUPPORT FALSE",
		"set REQUEST_BYSTANDER_SUPPORT FALSE",
		"set ENABLE_FRAME_GENERATION TRUE",
		"set ROOM_ENVIRONMENT_TYPE 8",
	}
	if len(commands) != len(want) {
		t.Fatalf("expected %d commands, got %d: %v", len(want), len(commands), commands)
	}
	for i, cmd := range commands {
		if cmd != want[i] {
			t.Errorf("command %d = %q, want %q", i, cmd, want[i])
		}
	}
}

func TestFakeLink_StepLoop(t *testing.T) {
	link := &FakeLink{TicksToFinish: 5}

	if err := link.Command(SetupCommand); err != nil {
		t.Fatalf("setup: %v", err)
	}
	steps := 0
	for {
		finished, err := link.Report(FinishedReporter)
		if err != nil {
			t.Fatalf("report finished: %v", err)
		}
		if finished.Bool() {
			break
		}
		if err := link.Command(GoCommand); err != nil {
			t.Fatalf("go: %v", err)
		}
		steps++
		if steps > 100 {
			t.Fatal("step loop never finished")
		}
	}
	ticks, err := link.Report(TicksReporter)
	if err != nil {
		t.Fatalf("report ticks: %v", err)
	}
	if ticks.Int() != 5 {
		t.Errorf("ticks = %d, want 5", ticks.Int())
	}
}

func TestFakeLink_SeedReporter(t *testing.T) {
	link := &FakeLink{TicksToFinish: 1}

	// Nonzero seed echoes back, possibly as a string value.
	seed, err := link.Report("seed-simulation 1234")
	if err != nil {
		t.Fatalf("seed report: %v", err)
	}
	if seed.Int() != 1234 {
		t.Errorf("seed = %d, want 1234", seed.Int())
	}

	// Zero seed makes the engine pick its own.
	seed, err = link.Report("seed-simulation 0")
	if err != nil {
		t.Fatalf("seed report: %v", err)
	}
	if seed.Int() == 0 {
		t.Error("engine-picked seed is 0")
	}
}

func TestFakeLink_ScriptedFailure(t *testing.T) {
	link := &FakeLink{TicksToFinish: 1, FailCommands: []string{"NUM_OF_ROBOTS"}}
	err := link.Command("set NUM_OF_ROBOTS 2")
	if err == nil || !strings.Contains(err.Error(), "scripted failure") {
		t.Errorf("expected scripted failure, got %v", err)
	}
	if err := link.Command(SetupCommand); err != nil {
		t.Errorf("unrelated command failed: %v", err)
	}
}

func TestOpen_EmptyCommand(t *testing.T) {
	if _, err := Open("", "model.nlogo"); err == nil {
		t.Error("expected error for empty engine command, got nil")
	}
}
