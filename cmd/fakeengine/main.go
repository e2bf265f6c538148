// fakeengine is a stand-in simulation engine speaking the line-delimited
// JSON protocol over stdin/stdout. It runs a countdown evacuation that
// finishes after a fixed number of ticks and, when given a server URL,
// exercises the mid-run decision callbacks the way the real engine does.
//
// Usage: fakeengine [flags] <model-path>
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type engineState struct {
	simulationID string
	seed         int64
	ticks        int
	finishTicks  int
	serverURL    string
	contactTick  int
	client       *http.Client
	out          *bufio.Writer
}

func main() {
	finishTicks := flag.Int("ticks", 50, "ticks until the evacuation finishes")
	serverURL := flag.String("server", "", "synchronization server URL for decision callbacks")
	contactTick := flag.Int("contact-tick", 10, "tick at which a robot/victim contact is reported (0 = never)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fakeengine [flags] <model-path>")
		os.Exit(2)
	}

	state := &engineState{
		finishTicks: *finishTicks,
		serverURL:   strings.TrimRight(*serverURL, "/"),
		contactTick: *contactTick,
		client:      &http.Client{Timeout: 10 * time.Second},
		out:         bufio.NewWriter(os.Stdout),
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			state.replyError("invalid request")
			continue
		}
		op := gjson.GetBytes(line, "op").String()
		src := gjson.GetBytes(line, "src").String()
		switch op {
		case "command":
			state.command(src)
		case "report":
			state.report(src)
		default:
			state.replyError(fmt.Sprintf("unknown op %q", op))
		}
	}
}

func (e *engineState) command(src string) {
	switch {
	case src == "clear" || src == "setup":
		e.ticks = 0
	case src == "go":
		e.ticks++
		e.maybeContact()
	case strings.HasPrefix(src, "set SIMULATION_ID"):
		// set SIMULATION_ID "scenario_3"
		if from := strings.Index(src, `"`); from >= 0 {
			e.simulationID = strings.Trim(src[from:], `"`)
		}
	}
	e.replyValue(json.RawMessage("true"))
}

func (e *engineState) report(src string) {
	switch {
	case src == "evacuation-finished?":
		e.replyValue(e.ticks >= e.finishTicks)
	case src == "ticks":
		e.replyValue(e.ticks)
	case strings.HasPrefix(src, "seed-simulation"):
		fmt.Sscanf(src, "seed-simulation %d", &e.seed)
		if e.seed == 0 {
			e.seed = time.Now().UnixNano() % 2147483647
		}
		// The real engine serializes numbers as strings.
		e.replyValue(fmt.Sprint(e.seed))
	default:
		e.replyError(fmt.Sprintf("unknown reporter %q", src))
	}
}

// maybeContact reports one robot/victim contact per run and follows the
// returned action with a passenger response, mimicking the real engine's
// mid-run callbacks. Numeric fields go out as strings, like the real
// serializer does.
func (e *engineState) maybeContact() {
	if e.serverURL == "" || e.contactTick == 0 || e.ticks != e.contactTick || e.simulationID == "" {
		return
	}

	payload := map[string]string{
		"simulation_id":          e.simulationID,
		"helper_gender":          "1",
		"helper_culture":         "2",
		"helper_age":             "3",
		"fallen_gender":          "0",
		"fallen_culture":         "1",
		"fallen_age":             "4",
		"helper_fallen_distance": "7.5",
		"staff_fallen_distance":  "12.0",
	}
	action, err := e.post("/on_survivor_contact", payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: contact callback failed: %v\n", err)
		return
	}

	response := "false"
	if action == "ask-help" {
		response = "true"
	}
	if _, err := e.post("/passenger_response", map[string]string{
		"simulation_id": e.simulationID,
		"response":      response,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: response callback failed: %v\n", err)
	}
}

func (e *engineState) post(path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	resp, err := e.client.Post(e.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", resp.Status, reply)
	}
	return string(reply), nil
}

func (e *engineState) replyValue(value any) {
	raw, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		e.replyError(err.Error())
		return
	}
	e.out.Write(append(raw, '\n'))
	e.out.Flush()
}

func (e *engineState) replyError(msg string) {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	e.out.Write(append(raw, '\n'))
	e.out.Flush()
}
