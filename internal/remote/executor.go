// Package remote runs job commands and reports how they ended. Adapters
// share one contract: a finished command yields its exit code and output, a
// command cut off by its context yields TimedOut, and a command that could
// not be run at all yields Err.
package remote

import (
	"context"
	"slices"
	"strings"

	"github.com/zosci/ce/internal/util"
)

// Command is one job invocation.
type Command struct {
	Host   string
	User   string
	Script string
	Env    map[string]string
}

// Result is the outcome of a Command. Output is what the test runner
// printed, as the job log records it.
type Result struct {
	ExitCode int
	Output   []byte
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Err      error
}

// Executor runs commands. Implementations must be safe for concurrent use.
type Executor interface {
	Execute(ctx context.Context, cmd Command) Result
}

// EnvPrefix renders env as shell exports in key order.
func EnvPrefix(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("export ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(util.ShellQuote(env[k]))
		b.WriteString("; ")
	}
	return b.String()
}

// joinScript prefixes the job script with the extra shell commands and
// exports.
func joinScript(extra string, cmd Command) string {
	script := EnvPrefix(cmd.Env) + cmd.Script
	extra = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(extra), ";"))
	if extra == "" {
		return script
	}
	return extra + "; " + script
}
