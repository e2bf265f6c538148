// Package server exposes the synchronization state over HTTP. Workers submit
// results through it, and the engine calls back into it whenever a robot
// needs a decision or wants to log an observed response.
package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/kangkelidis/robot-assisted-evacuation/internal/state"
	"github.com/kangkelidis/robot-assisted-evacuation/internal/strategy"
)

// ExperimentFolder describes where a campaign's output goes. It is the body
// of POST /start.
type ExperimentFolder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// StartFunc runs a whole campaign for the given output folder: load the
// configuration, build the sweep, register it, drive every run to completion
// and aggregate the results.
type StartFunc func(folder ExperimentFolder) error

// Server is the HTTP surface of the synchronization service.
type Server struct {
	state  *state.State
	start  StartFunc
	logger *log.Logger
}

func New(st *state.State, start StartFunc, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{state: st, start: start, logger: logger}
}

// Router builds the gin engine with every endpoint registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/start", s.handleStart)
	r.GET("/get_unfinished_simulations", s.handleUnfinished)
	r.PUT("/put_results", s.handlePutResults)
	r.POST("/passenger_response", s.handlePassengerResponse)
	r.POST("/on_survivor_contact", s.handleSurvivorContact)
	return r
}

// ResultPayload is the wire form of a final result submission.
type ResultPayload struct {
	SimulationID    string  `json:"simulation_id"`
	NetlogoSeed     int64   `json:"netlogo_seed"`
	EvacuationTicks *int    `json:"evacuation_ticks"`
	EvacuationTime  float64 `json:"evacuation_time"`
	Success         bool    `json:"success"`
}

// ResponsePayload is the wire form of a logged passenger response.
type ResponsePayload struct {
	SimulationID string `json:"simulation_id"`
	Response     string `json:"response"`
}

func (s *Server) handleStart(c *gin.Context) {
	if s.start == nil {
		c.String(http.StatusInternalServerError, "no campaign runner configured")
		return
	}
	var body struct {
		ExperimentFolder ExperimentFolder `json:"experiment_folder"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if err := s.start(body.ExperimentFolder); err != nil {
		s.logger.Printf("campaign failed: %v", err)
		c.String(http.StatusInternalServerError, "error on server: %v", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleUnfinished(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ids": s.state.Outstanding()})
}

func (s *Server) handlePutResults(c *gin.Context) {
	var payload ResultPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.String(http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	err := s.state.SubmitResult(payload.SimulationID, state.ResultUpdate{
		NetlogoSeed:     payload.NetlogoSeed,
		EvacuationTicks: payload.EvacuationTicks,
		EvacuationTime:  payload.EvacuationTime,
		Success:         payload.Success,
	})
	if err != nil {
		s.fail(c, payload.SimulationID, err)
		return
	}
	c.String(http.StatusOK, "Results saved")
}

func (s *Server) handlePassengerResponse(c *gin.Context) {
	var payload ResponsePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.String(http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if err := s.state.AddResponse(payload.SimulationID, payload.Response); err != nil {
		s.fail(c, payload.SimulationID, err)
		return
	}
	c.String(http.StatusOK, "Response saved")
}

// handleSurvivorContact brokers a mid-run decision. The engine's serializer
// emits numeric fields as JSON strings, so the body is picked apart with
// gjson instead of strict struct binding.
func (s *Server) handleSurvivorContact(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !gjson.ValidBytes(body) {
		c.String(http.StatusBadRequest, "invalid request body")
		return
	}

	id := gjson.GetBytes(body, "simulation_id").String()
	if id == "" {
		c.String(http.StatusBadRequest, "missing simulation_id")
		return
	}

	contact := state.Contact{
		Candidate: strategy.Survivor{
			Gender:          int(gjson.GetBytes(body, "helper_gender").Int()),
			CulturalCluster: int(gjson.GetBytes(body, "helper_culture").Int()),
			Age:             int(gjson.GetBytes(body, "helper_age").Int()),
		},
		Victim: strategy.Survivor{
			Gender:          int(gjson.GetBytes(body, "fallen_gender").Int()),
			CulturalCluster: int(gjson.GetBytes(body, "fallen_culture").Int()),
			Age:             int(gjson.GetBytes(body, "fallen_age").Int()),
		},
		HelperVictimDistance:    gjson.GetBytes(body, "helper_fallen_distance").Float(),
		ResponderVictimDistance: gjson.GetBytes(body, "staff_fallen_distance").Float(),
	}

	action, err := s.state.Decide(id, contact)
	if err != nil {
		s.fail(c, id, err)
		return
	}
	c.String(http.StatusOK, action)
}

// fail maps a state error onto an HTTP status. Lookup failures are the
// caller's problem; anything else is ours.
func (s *Server) fail(c *gin.Context, id string, err error) {
	var lookupErr *state.LookupError
	if errors.As(err, &lookupErr) {
		s.logger.Printf("lookup failed for %s: %v", id, err)
		c.String(http.StatusNotFound, fmt.Sprint(err))
		return
	}
	s.logger.Printf("request failed for %s: %v", id, err)
	c.String(http.StatusInternalServerError, fmt.Sprint(err))
}
