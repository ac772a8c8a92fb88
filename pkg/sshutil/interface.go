package sshutil

import (
	"context"
	"io"
)

// SSHClient is the subset of an SSH connection the executors need. Both
// *Client and the mock in pkg/sshutil/testing satisfy it.
type SSHClient interface {
	// Exec runs cmd and returns its output. exitCode is -1 when the
	// command could not be started at all.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecContext runs cmd, streaming output to the writers. When ctx ends
	// first the remote process is sent SIGKILL, the session is closed and
	// ctx.Err() is returned.
	ExecContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	Close() error

	// GetHost returns the host string passed to Dial.
	GetHost() string

	// GetAddress returns the resolved host:port.
	GetAddress() string
}
