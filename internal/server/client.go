package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Client is the worker- and engine-side handle onto the synchronization
// server. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	return data, nil
}

// Unfinished returns the server's snapshot of outstanding run ids.
func (c *Client) Unfinished(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_unfinished_simulations", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /get_unfinished_simulations: %s", resp.Status)
	}

	var ids []string
	for _, id := range gjson.GetBytes(data, "ids").Array() {
		ids = append(ids, id.String())
	}
	return ids, nil
}

// PutResults submits a run's final result.
func (c *Client) PutResults(ctx context.Context, payload ResultPayload) error {
	_, err := c.do(ctx, http.MethodPut, "/put_results", payload)
	return err
}

// PassengerResponse logs an observed passenger response for a run.
func (c *Client) PassengerResponse(ctx context.Context, id, response string) error {
	_, err := c.do(ctx, http.MethodPost, "/passenger_response", ResponsePayload{
		SimulationID: id,
		Response:     response,
	})
	return err
}

// ContactPayload is the wire form of a survivor contact decision request.
type ContactPayload struct {
	SimulationID         string  `json:"simulation_id"`
	HelperGender         int     `json:"helper_gender"`
	HelperCulture        int     `json:"helper_culture"`
	HelperAge            int     `json:"helper_age"`
	FallenGender         int     `json:"fallen_gender"`
	FallenCulture        int     `json:"fallen_culture"`
	FallenAge            int     `json:"fallen_age"`
	HelperFallenDistance float64 `json:"helper_fallen_distance"`
	StaffFallenDistance  float64 `json:"staff_fallen_distance"`
}

// OnSurvivorContact requests a mid-run decision and returns the action.
func (c *Client) OnSurvivorContact(ctx context.Context, payload ContactPayload) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/on_survivor_contact", payload)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(data)), nil
}

// Start kicks off a whole campaign on the server.
func (c *Client) Start(ctx context.Context, folder ExperimentFolder) error {
	_, err := c.do(ctx, http.MethodPost, "/start", map[string]ExperimentFolder{
		"experiment_folder": folder,
	})
	return err
}
