// Package strategy implements the pluggable decision policies a robot uses
// when it makes contact with a fallen survivor mid-run. Strategies are
// resolved by name through a static registry.
package strategy

import "fmt"

// Robot actions a strategy can return to the engine.
const (
	ActionAskHelp   = "ask-help"
	ActionCallStaff = "call-staff"
)

// Survivor gender.
const (
	Female = iota
	Male
)

// Survivor cultural cluster.
const (
	Arab = iota
	NearEast
	LatinAmerica
	EastEurope
	LatinEurope
	Nordic
	Germanic
	African
	Anglo
	Confucian
	FarEast
)

// Survivor age group.
const (
	Child = iota
	Adult
	Elderly
)

// Survivor describes a passenger involved in a contact: the candidate helper
// standing near a fallen victim, or the victim itself.
type Survivor struct {
	Gender          int
	CulturalCluster int
	Age             int
}

// Strategy decides the robot's action when it contacts a fallen victim.
type Strategy interface {
	Decide(candidate, victim Survivor, helperVictimDistance, responderVictimDistance float64) string
}

// registry maps strategy names to constructors. Names match the
// adaptationStrategy values accepted by the configuration.
var registry = map[string]func() Strategy{
	"AlwaysAskHelp":   func() Strategy { return AlwaysAskHelp{} },
	"AlwaysCallStaff": func() Strategy { return AlwaysCallStaff{} },
	"Random":          func() Strategy { return NewRandom() },
	"HelpMatrix":      func() Strategy { return HelpMatrix{} },
	"Optimal":         func() Strategy { return Optimal{} },
	"NoRobot":         func() Strategy { return NoRobot{} },
}

// New returns a fresh instance of the named strategy.
func New(name string) (Strategy, error) {
	construct, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown adaptation strategy %q", name)
	}
	return construct(), nil
}

// Known reports whether name is a registered strategy.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns the registered strategy names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
