package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/pkg/sshutil"
)

const (
	DefaultDialRetries     = 10
	DefaultRetryInterval   = 500 * time.Millisecond
	DefaultMaxRetryBackoff = 10 * time.Second
)

// Dialer opens an SSH connection to host.
type Dialer func(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error)

// DialSSH is the production Dialer.
func DialSSH(host string, opts sshutil.DialOptions) (sshutil.SSHClient, error) {
	return sshutil.Dial(host, opts)
}

// SSHExecutor runs the job script on the node itself over SSH. Exports and
// the extra prefix are sent as part of the remote script. The exit status
// arrives with the session, so both streams are kept as the runner output.
type SSHExecutor struct {
	Dial          Dialer
	DialOptions   sshutil.DialOptions
	Extra         string
	Retries       uint64
	RetryInterval time.Duration
	Log           logger.Logger
}

func NewSSHExecutor(extra string, opts sshutil.DialOptions) *SSHExecutor {
	return &SSHExecutor{
		Dial:          DialSSH,
		DialOptions:   opts,
		Extra:         extra,
		Retries:       DefaultDialRetries,
		RetryInterval: DefaultRetryInterval,
		Log:           logger.NewEnvLogger("remote"),
	}
}

func (e *SSHExecutor) Execute(ctx context.Context, cmd Command) Result {
	client, err := e.connect(ctx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return Result{ExitCode: -1, TimedOut: stderrors.Is(ctx.Err(), context.DeadlineExceeded)}
		}
		return Result{ExitCode: -1, Err: err}
	}
	defer client.Close()

	var stdout, stderr bytes.Buffer
	combined := &lockedBuffer{}
	code, err := client.ExecContext(ctx, joinScript(e.Extra, cmd),
		io.MultiWriter(&stdout, combined), io.MultiWriter(&stderr, combined))
	res := Result{ExitCode: code, Output: combined.Bytes(), Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		e.Log.Warn("job on %s abandoned (%v); remote process termination is not confirmed", cmd.Host, ctxErr)
		res.ExitCode = -1
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			res.TimedOut = true
		} else {
			res.Err = ctxErr
		}
		return res
	}
	if err != nil {
		res.Err = err
	}
	return res
}

// connect dials with exponential backoff. Credential and host key failures
// are not retried.
func (e *SSHExecutor) connect(ctx context.Context, cmd Command) (sshutil.SSHClient, error) {
	host := cmd.Host
	if cmd.User != "" {
		host = cmd.User + "@" + cmd.Host
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.RetryInterval
	b.MaxInterval = DefaultMaxRetryBackoff
	b.MaxElapsedTime = 0

	var client sshutil.SSHClient
	op := func() error {
		c, err := e.Dial(host, e.DialOptions)
		if err != nil {
			if sshutil.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		e.Log.Debug("dial %s failed, retrying in %s: %v", host, wait, err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.Retries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return client, nil
}

// lockedBuffer interleaves the session's stdout and stderr, which are
// copied from separate goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
