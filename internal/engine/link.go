package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

// maxReplySize bounds a single engine reply line.
const maxReplySize = 1 << 20

// Link is one handle onto a running engine instance. A Link is not safe for
// concurrent use; each worker owns exactly one and drives its runs through it
// sequentially.
type Link interface {
	// Command executes an engine command that returns no value.
	Command(cmd string) error
	// Report evaluates a reporter and returns its value.
	Report(src string) (gjson.Result, error)
	// Close shuts the engine instance down.
	Close() error
}

// request is the wire form of one engine operation.
type request struct {
	Op  string `json:"op"`
	Src string `json:"src"`
}

// ExecLink runs the engine as a child process and speaks the line-delimited
// JSON protocol over its stdin/stdout. Replies are `{"value": ...}` or
// `{"error": "..."}`; numeric values may arrive as JSON strings, which is why
// replies are handed to callers as gjson results.
type ExecLink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
}

// Open starts the engine process and loads the given model. The command is
// split on whitespace; the model path is appended as the final argument.
func Open(engineCommand, modelPath string) (*ExecLink, error) {
	parts := strings.Fields(engineCommand)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty engine command")
	}
	args := append(parts[1:], modelPath)
	cmd := exec.Command(parts[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting engine %q: %w", engineCommand, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplySize)

	return &ExecLink{cmd: cmd, stdin: stdin, stdout: scanner}, nil
}

func (l *ExecLink) roundTrip(op, src string) (gjson.Result, error) {
	line, err := json.Marshal(request{Op: op, Src: src})
	if err != nil {
		return gjson.Result{}, err
	}
	if _, err := l.stdin.Write(append(line, '\n')); err != nil {
		return gjson.Result{}, fmt.Errorf("writing to engine: %w", err)
	}
	if !l.stdout.Scan() {
		if err := l.stdout.Err(); err != nil {
			return gjson.Result{}, fmt.Errorf("reading engine reply: %w", err)
		}
		return gjson.Result{}, fmt.Errorf("engine closed its output during %q", src)
	}
	reply := l.stdout.Bytes()
	if !gjson.ValidBytes(reply) {
		return gjson.Result{}, fmt.Errorf("invalid engine reply %q", reply)
	}
	if errMsg := gjson.GetBytes(reply, "error"); errMsg.Exists() {
		return gjson.Result{}, fmt.Errorf("engine error for %q: %s", src, errMsg.String())
	}
	return gjson.GetBytes(reply, "value"), nil
}

func (l *ExecLink) Command(cmd string) error {
	_, err := l.roundTrip("command", cmd)
	return err
}

func (l *ExecLink) Report(src string) (gjson.Result, error) {
	return l.roundTrip("report", src)
}

// Close closes the engine's stdin, letting it exit, and waits for the
// process. Kills it if waiting fails.
func (l *ExecLink) Close() error {
	if err := l.stdin.Close(); err != nil {
		_ = l.cmd.Process.Kill()
		return l.cmd.Wait()
	}
	return l.cmd.Wait()
}
