// Package engine drives one external simulation engine instance over a
// line-delimited JSON protocol. The engine itself is an opaque collaborator;
// this package only knows its command and reporter vocabulary.
package engine

import (
	"fmt"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
)

// Engine commands and reporters. Commands mutate engine state and return
// nothing; reporters return a value.
const (
	ClearCommand = "clear"
	SetupCommand = "setup"
	GoCommand    = "go"

	setSimulationIDCommand     = `set SIMULATION_ID "%s"`
	setNumOfRobotsCommand      = "set NUM_OF_ROBOTS %d"
	setNumOfPassengersCommand  = "set NUM_OF_PASSENGERS %d"
	setNumOfStaffCommand       = "set NUM_OF_STAFF %d"
	setFallLengthCommand       = "set DEFAULT_FALL_LENGTH %d"
	setFallChanceCommand       = "set FALL_CHANCE %v"
	setStaffSupportCommand     = "set REQUEST_STAFF_SUPPORT %s"
	setPassengerSupportCommand = "set REQUEST_BYSTANDER_SUPPORT %s"
	setFrameGenerationCommand  = "set ENABLE_FRAME_GENERATION %s"
	setRoomTypeCommand         = "set ROOM_ENVIRONMENT_TYPE %d"

	// SeedReporter applies the given seed (0 lets the engine pick) and
	// reports the seed actually in effect.
	SeedReporter = "seed-simulation %d"
	// FinishedReporter is the termination predicate for the step loop.
	FinishedReporter = "evacuation-finished?"
	// TicksReporter reports the engine's discrete time counter.
	TicksReporter = "ticks"
)

func engineBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// SetupCommands maps a descriptor's parameter snapshot to the command
// sequence that configures the engine before setup.
func SetupCommands(d *sim.Descriptor) []string {
	p := d.Params
	return []string{
		fmt.Sprintf(setSimulationIDCommand, d.ID),
		fmt.Sprintf(setNumOfRobotsCommand, p.NumOfRobots),
		fmt.Sprintf(setNumOfPassengersCommand, p.NumOfPassengers),
		fmt.Sprintf(setNumOfStaffCommand, p.NumOfStaff),
		fmt.Sprintf(setFallLengthCommand, p.FallLength),
		fmt.Sprintf(setFallChanceCommand, p.FallChance),
		fmt.Sprintf(setStaffSupportCommand, engineBool(p.AllowStaffSupport)),
		fmt.Sprintf(setPassengerSupportCommand, engineBool(p.AllowPassengerSupport)),
		fmt.Sprintf(setFrameGenerationCommand, engineBool(p.EnableVideo)),
		fmt.Sprintf(setRoomTypeCommand, p.RoomType),
	}
}
