package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/logger"
)

// DefaultWaitDelay bounds how long output pipes are drained after a timed
// out command is killed.
const DefaultWaitDelay = 5 * time.Second

// LocalExecutor runs the test runner on this machine; the runner reaches
// the node through the inventory baked into the command. The runner's
// output is redirected to stderr and its exit code echoed on stdout, so the
// code survives whatever the extra prefix commands print.
type LocalExecutor struct {
	Shell     string
	Extra     string
	WaitDelay time.Duration
	Log       logger.Logger
}

func NewLocalExecutor(extra string) *LocalExecutor {
	return &LocalExecutor{
		Shell:     "/bin/sh",
		Extra:     extra,
		WaitDelay: DefaultWaitDelay,
		Log:       logger.NewEnvLogger("remote"),
	}
}

func (e *LocalExecutor) Execute(ctx context.Context, cmd Command) Result {
	script := joinScript(e.Extra, cmd) + " 1>&2; echo $? >&1"

	c := exec.CommandContext(ctx, e.Shell, "-c", script)
	c.WaitDelay = e.WaitDelay
	setProcessGroup(c)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{ExitCode: -1, Output: stderr.Bytes(), Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			res.TimedOut = true
			return res
		}
		res.Err = ctxErr
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(err, &exitErr) {
			res.Err = errors.WrapWithCode(err, errors.ErrExec,
				"Couldn't start the job shell",
				fmt.Sprintf("Make sure %s exists and is executable.", e.Shell))
			return res
		}
		// The shell itself failed (e.g. a syntax error in --extra).
		e.Log.Debug("job shell on %s exited %d", cmd.Host, exitErr.ExitCode())
	}

	code, perr := parseExitCode(res.Stdout)
	if perr != nil {
		res.Err = errors.WrapWithCode(perr, errors.ErrExec,
			"Couldn't read the test runner's exit code",
			"Check that --extra does not exit the shell early.")
		return res
	}
	res.ExitCode = code
	return res
}

// parseExitCode reads the last non-empty stdout line as an integer.
func parseExitCode(stdout []byte) (int, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return -1, fmt.Errorf("no exit code on stdout")
	}
	code, err := strconv.Atoi(last)
	if err != nil {
		return -1, fmt.Errorf("unexpected exit code %q: %w", last, err)
	}
	return code, nil
}
