package strategy

import "math/rand"

// AlwaysAskHelp always asks a nearby passenger for help.
type AlwaysAskHelp struct{}

func (AlwaysAskHelp) Decide(candidate, victim Survivor, helperDist, responderDist float64) string {
	return ActionAskHelp
}

// AlwaysCallStaff always calls a staff member.
type AlwaysCallStaff struct{}

func (AlwaysCallStaff) Decide(candidate, victim Survivor, helperDist, responderDist float64) string {
	return ActionCallStaff
}

// NoRobot stands in for scenarios without robot intervention; contacts only
// ever summon staff.
type NoRobot struct{}

func (NoRobot) Decide(candidate, victim Survivor, helperDist, responderDist float64) string {
	return ActionCallStaff
}

// Random picks between the two actions with equal probability.
type Random struct {
	rng *rand.Rand
}

func NewRandom() *Random {
	return &Random{rng: rand.New(rand.NewSource(rand.Int63()))}
}

func (r *Random) Decide(candidate, victim Survivor, helperDist, responderDist float64) string {
	if r.rng.Float64() < 0.5 {
		return ActionAskHelp
	}
	return ActionCallStaff
}

// helpMatrix gives the empirical chance a candidate helps a fallen victim.
//
// Rows are the helper: male adult/elderly ingroup, male adult/elderly
// outgroup, female adult/elderly ingroup, female adult/elderly outgroup.
// Columns are the victim: male child/adult/elderly, female child/adult/elderly.
// Ingroup means the same cultural cluster.
var helpMatrix = [8][6]float64{
	{0.3, 0.15, 0.3, 0.4, 0.3, 0.4},
	{0.15, 0.075, 0.15, 0.2, 0.15, 0.2},
	{0.252, 0.126, 0.252, 0.336, 0.252, 0.336},
	{0.126, 0.063, 0.126, 0.168, 0.126, 0.168},
	{0.15, 0.075, 0.15, 0.2, 0.15, 0.2},
	{0.075, 0.0375, 0.075, 0.1, 0.075, 0.1},
	{0.126, 0.063, 0.126, 0.168, 0.126, 0.168},
	{0.063, 0.0315, 0.063, 0.084, 0.063, 0.084},
}

// helpChanceThreshold separates "worth asking" from "call staff instead".
const helpChanceThreshold = 0.2

func helpChance(candidate, victim Survivor) float64 {
	row := 0
	if candidate.Gender == Female {
		row += 4
	}
	if candidate.CulturalCluster != victim.CulturalCluster {
		row += 2
	}
	if candidate.Age == Elderly {
		row++
	}

	col := 0
	if victim.Gender == Female {
		col += 3
	}
	if victim.Age == Adult {
		col++
	}
	if victim.Age == Elderly {
		col += 2
	}

	return helpMatrix[row][col]
}

// HelpMatrix asks for help whenever the matrix chance for the candidate and
// victim demographics clears the threshold.
type HelpMatrix struct{}

func (HelpMatrix) Decide(candidate, victim Survivor, helperDist, responderDist float64) string {
	if helpChance(candidate, victim) > helpChanceThreshold {
		return ActionAskHelp
	}
	return ActionCallStaff
}

// Optimal behaves like HelpMatrix but calls staff outright when a first
// responder is already closer to the victim than the candidate helper.
type Optimal struct{}

func (Optimal) Decide(candidate, victim Survivor, helperDist, responderDist float64) string {
	if responderDist < helperDist {
		return ActionCallStaff
	}
	if helpChance(candidate, victim) > helpChanceThreshold {
		return ActionAskHelp
	}
	return ActionCallStaff
}
