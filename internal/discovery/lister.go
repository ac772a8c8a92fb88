package discovery

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/zosci/ce/internal/util"
)

// Lister yields candidate hostnames when none are given explicitly.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// StaticLister lists a fixed set of hostnames.
type StaticLister []string

func (l StaticLister) List(context.Context) ([]string, error) {
	return []string(l), nil
}

// CommandLister runs an external command and treats every whitespace
// separated token of its stdout as a hostname, e.g.
// "./venv.sh --targets-production".
type CommandLister struct {
	Command string
	Dir     string
}

func (l CommandLister) List(ctx context.Context) ([]string, error) {
	args, err := shlex.Split(l.Command)
	if err != nil {
		return nil, fmt.Errorf("parse discovery command %q: %w", l.Command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("discovery command is empty")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = l.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %q: %w: %s", l.Command, err, strings.TrimSpace(stderr.String()))
	}
	return util.SplitList(stdout.String()), nil
}
