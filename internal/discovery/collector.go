package discovery

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// DefaultCollectCommand lists test identifiers without running them.
const DefaultCollectCommand = "pytest --collect-only -q"

// noTestsCollected is pytest's exit status when nothing matched.
const noTestsCollected = 5

// CollectRequest names the test files or directories to collect from and
// the paths to leave out.
type CollectRequest struct {
	Paths  []string
	Ignore []string
}

// Collector turns paths into parametrized test identifiers.
type Collector interface {
	Collect(ctx context.Context, req CollectRequest) ([]string, error)
}

// PytestCollector runs pytest's collection and keeps every output line
// that names a test ("path::case[param]").
type PytestCollector struct {
	Command string
	Dir     string
}

func (c PytestCollector) Collect(ctx context.Context, req CollectRequest) ([]string, error) {
	command := c.Command
	if command == "" {
		command = DefaultCollectCommand
	}
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse collect command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("collect command is empty")
	}
	args = append(args, req.Paths...)
	for _, p := range req.Ignore {
		args = append(args, "--ignore", p)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) || exitErr.ExitCode() != noTestsCollected {
			return nil, fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err,
				strings.TrimSpace(stderr.String()+"\n"+tail(stdout.String(), 20)))
		}
	}
	return ParseCollected(stdout.String()), nil
}

// ParseCollected extracts test identifiers from collection output.
func ParseCollected(out string) []string {
	var ids []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "::") {
			ids = append(ids, line)
		}
	}
	return ids
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
