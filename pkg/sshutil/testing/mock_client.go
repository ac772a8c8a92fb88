// Package testing provides an in-memory SSHClient for tests.
package testing

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/zosci/ce/pkg/sshutil"
)

var _ sshutil.SSHClient = (*MockClient)(nil)

// CommandResponse is a canned result for commands matching a pattern.
// Delay holds the command open; ExecContext gives up when ctx ends first.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
	Delay    time.Duration
}

// MockClient answers commands from registered responses. Commands with no
// matching response succeed with empty output.
type MockClient struct {
	mu        sync.Mutex
	host      string
	closed    bool
	responses []pattern
	commands  []string
	killed    int
}

type pattern struct {
	raw  string
	re   *regexp.Regexp
	resp CommandResponse
}

func NewMockClient(host string) *MockClient {
	return &MockClient{host: host}
}

// SetCommandResponse registers resp for commands equal to, or matching the
// regular expression, pat. Later registrations take precedence.
func (m *MockClient) SetCommandResponse(pat string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	re, _ := regexp.Compile(pat)
	m.responses = append([]pattern{{raw: pat, re: re, resp: resp}}, m.responses...)
}

func (m *MockClient) lookup(cmd string) (CommandResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return CommandResponse{}, errors.New("connection closed")
	}
	m.commands = append(m.commands, cmd)

	for _, p := range m.responses {
		if p.raw == cmd || (p.re != nil && p.re.MatchString(cmd)) {
			return p.resp, nil
		}
	}
	return CommandResponse{}, nil
}

func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	resp, err := m.lookup(cmd)
	if err != nil {
		return nil, nil, -1, err
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

func (m *MockClient) ExecContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	resp, err := m.lookup(cmd)
	if err != nil {
		return -1, err
	}

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			m.mu.Lock()
			m.killed++
			m.mu.Unlock()
			return -1, ctx.Err()
		}
	}

	if resp.Error != nil {
		return -1, resp.Error
	}
	if stdout != nil {
		_, _ = stdout.Write(resp.Stdout)
	}
	if stderr != nil {
		_, _ = stderr.Write(resp.Stderr)
	}
	return resp.ExitCode, nil
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockClient) GetHost() string    { return m.host }
func (m *MockClient) GetAddress() string { return m.host + ":22" }

// Commands returns every command received, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Killed returns how many commands were abandoned because their context
// ended.
func (m *MockClient) Killed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.killed
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
