// Package state holds the single shared structure of a running campaign: the
// outstanding run ids and the lookups that resolve an id to its descriptor
// and owning scenario. Decision requests, response logs and result
// submissions arrive concurrently from many worker processes, so every
// operation takes one mutex for its full read-modify-write.
package state

import (
	"fmt"
	"log"
	"sync"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/sim"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/strategy"
)

// Contact carries the situational features of one robot/victim contact, as
// reported by the engine.
type Contact struct {
	Candidate               strategy.Survivor
	Victim                  strategy.Survivor
	HelperVictimDistance    float64
	ResponderVictimDistance float64
}

// ResultUpdate holds the final fields a worker submits for a run.
type ResultUpdate struct {
	NetlogoSeed     int64
	EvacuationTicks *int
	EvacuationTime  float64
	Success         bool
}

// State is the synchronization state of one campaign. Created at campaign
// start, discarded at campaign end; registering a new campaign clears any
// previous residue.
type State struct {
	mu          sync.Mutex
	outstanding map[string]struct{}
	descriptors map[string]*sim.Descriptor
	scenarios   map[string]*sim.Scenario
	strategies  map[string]strategy.Strategy
	ordered     []*sim.Scenario
	total       int
	logger      *log.Logger
}

func New(logger *log.Logger) *State {
	if logger == nil {
		logger = log.Default()
	}
	return &State{logger: logger}
}

// Register replaces the state with a fresh outstanding set built from the
// scenarios' descriptors. Every scenario's strategy must be registered; an
// unknown strategy name is a configuration error and nothing is replaced.
func (s *State) Register(scenarios []*sim.Scenario) error {
	outstanding := make(map[string]struct{})
	descriptors := make(map[string]*sim.Descriptor)
	byName := make(map[string]*sim.Scenario, len(scenarios))
	strategies := make(map[string]strategy.Strategy, len(scenarios))

	total := 0
	for _, scenario := range scenarios {
		st, err := strategy.New(scenario.Strategy)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		byName[scenario.Name] = scenario
		strategies[scenario.Name] = st
		for _, d := range scenario.Simulations {
			if _, dup := descriptors[d.ID]; dup {
				return fmt.Errorf("duplicate simulation id %q", d.ID)
			}
			outstanding[d.ID] = struct{}{}
			descriptors[d.ID] = d
			total++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding = outstanding
	s.descriptors = descriptors
	s.scenarios = byName
	s.strategies = strategies
	s.ordered = scenarios
	s.total = total
	return nil
}

// Decide resolves the strategy of the scenario owning id, invokes it with the
// contact's features, records the chosen action on the run's result and
// returns it. A failed lookup affects only this call.
func (s *State) Decide(id string, c Contact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.descriptors[id]
	if !ok {
		return "", &LookupError{ID: id}
	}
	st, ok := s.strategies[d.ScenarioName]
	if !ok {
		return "", &LookupError{ID: id, Scenario: d.ScenarioName}
	}

	action := st.Decide(c.Candidate, c.Victim, c.HelperVictimDistance, c.ResponderVictimDistance)
	d.Result.Actions = append(d.Result.Actions, action)
	d.Result.Contacts++
	return action, nil
}

// AddResponse appends an externally observed response to the run's result.
func (s *State) AddResponse(id, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.descriptors[id]
	if !ok {
		return &LookupError{ID: id}
	}
	d.Result.Responses = append(d.Result.Responses, response)
	return nil
}

// SubmitResult merges the submitted fields into the run's result and removes
// the id from the outstanding set, freezing the result. A submission for a
// known id that is no longer outstanding is a duplicate or late retry and is
// accepted as a no-op; a wholly unknown id is a lookup error.
func (s *State) SubmitResult(id string, update ResultUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.descriptors[id]
	if !ok {
		return &LookupError{ID: id}
	}
	if _, open := s.outstanding[id]; !open {
		s.logger.Printf("ignoring duplicate result submission for %s", id)
		return nil
	}

	d.Result.NetlogoSeed = update.NetlogoSeed
	d.Result.EvacuationTicks = update.EvacuationTicks
	d.Result.EvacuationTime = update.EvacuationTime
	d.Result.Success = update.Success
	delete(s.outstanding, id)
	return nil
}

// Outstanding returns a snapshot copy of the outstanding id set.
func (s *State) Outstanding() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.outstanding))
	for id := range s.outstanding {
		ids = append(ids, id)
	}
	return ids
}

// OutstandingCount returns how many runs have not reported a result yet.
func (s *State) OutstandingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

// Total returns the number of runs registered for the campaign.
func (s *State) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Scenarios returns the registered scenarios in registration order.
func (s *State) Scenarios() []*sim.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ordered
}

// LookupError reports a request for an id or scenario the state does not
// know. It fails the specific request; no other state is touched.
type LookupError struct {
	ID       string
	Scenario string
}

func (e *LookupError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("no scenario %q for simulation id %q", e.Scenario, e.ID)
	}
	return fmt.Sprintf("unknown simulation id %q", e.ID)
}
