package sim

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Engine seeds must fit in a signed 32-bit integer and must not be 0, which
// the engine reserves for "pick your own seed".
const (
	minSeed = -2147483647
	maxSeed = 2147483646
)

// GenerateID derives the run id for the index-th sample of a scenario.
// Underscores in the scenario name are replaced so that splitting the id on
// the first underscore always recovers exactly (scenario name, index).
func GenerateID(scenarioName string, index int) string {
	return strings.ReplaceAll(scenarioName, "_", "-") + "_" + strconv.Itoa(index)
}

// SplitID recovers the scenario name and sample index from a run id.
func SplitID(id string) (scenarioName string, index int, err error) {
	name, idx, found := strings.Cut(id, "_")
	if !found || name == "" {
		return "", 0, fmt.Errorf("malformed simulation id %q", id)
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return "", 0, fmt.Errorf("malformed simulation id %q: %w", id, err)
	}
	return name, n, nil
}

// ScenarioNameFromID returns the scenario a run id belongs to.
func ScenarioNameFromID(id string) (string, error) {
	name, _, err := SplitID(id)
	return name, err
}

// GenerateSeed derives the engine seed for the index-th sample. A base seed
// of 0 returns 0, delegating randomness entirely to the engine. Otherwise
// the seed is the first nonzero draw from a generator seeded with
// base*(index+1), so repeated calls with the same inputs return the same
// value and resubmitted descriptors keep their original seed.
func GenerateSeed(base int64, index int) int64 {
	if base == 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(base * int64(index+1)))
	for {
		seed := rng.Int63n(maxSeed-minSeed+1) + minSeed
		if seed != 0 {
			return seed
		}
	}
}
