package discovery

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/zosci/ce/pkg/sshutil"
)

// DefaultProbeTimeout bounds a single liveness probe.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks whether a candidate node is alive.
type Prober interface {
	Probe(ctx context.Context, host string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, host string) error

func (f ProberFunc) Probe(ctx context.Context, host string) error {
	return f(ctx, host)
}

// ProbeFailReason categorizes why a probe failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailAuth
	ProbeFailHostKey
)

func (r ProbeFailReason) String() string {
	switch r {
	case ProbeFailTimeout:
		return "timed out"
	case ProbeFailRefused:
		return "connection refused"
	case ProbeFailUnreachable:
		return "host unreachable"
	case ProbeFailAuth:
		return "authentication failed"
	case ProbeFailHostKey:
		return "host key verification failed"
	default:
		return "unknown error"
	}
}

// ProbeError is a failed probe with a categorized reason.
type ProbeError struct {
	Host   string
	Reason ProbeFailReason
	Cause  error
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Host, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Host, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// PingProber sends a single ICMP echo using the system ping binary.
type PingProber struct {
	Timeout time.Duration
}

func (p PingProber) Probe(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(p.Timeout))
	defer cancel()

	out, err := exec.CommandContext(ctx, "ping", "-c", "1", host).CombinedOutput()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return &ProbeError{Host: host, Reason: ProbeFailTimeout, Cause: ctx.Err()}
	}
	perr := categorizeProbeError(host, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out))))
	if perr.Reason == ProbeFailUnknown {
		perr.Reason = ProbeFailUnreachable
	}
	return perr
}

// TCPProber dials the node's SSH port.
type TCPProber struct {
	Port    int
	Timeout time.Duration
}

func (p TCPProber) Probe(ctx context.Context, host string) error {
	port := p.Port
	if port == 0 {
		port = 22
	}
	d := net.Dialer{Timeout: timeoutOrDefault(p.Timeout)}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return categorizeProbeError(host, err)
	}
	return conn.Close()
}

// SSHProber performs a full SSH handshake, proving the credentials work.
type SSHProber struct {
	Options sshutil.DialOptions
}

func (p SSHProber) Probe(ctx context.Context, host string) error {
	opts := p.Options
	opts.Timeout = timeoutOrDefault(opts.Timeout)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < opts.Timeout {
			opts.Timeout = remaining
		}
	}

	client, err := sshutil.Dial(host, opts)
	if err != nil {
		return categorizeProbeError(host, err)
	}
	return client.Close()
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultProbeTimeout
	}
	return d
}

func categorizeProbeError(host string, err error) *ProbeError {
	perr := &ProbeError{Host: host, Reason: ProbeFailUnknown, Cause: err}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		perr.Reason = ProbeFailTimeout
	case strings.Contains(msg, "connection refused"):
		perr.Reason = ProbeFailRefused
	case strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "host is down"),
		strings.Contains(msg, "unknown host"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "100% packet loss"):
		perr.Reason = ProbeFailUnreachable
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "no ssh auth methods"):
		perr.Reason = ProbeFailAuth
	case strings.Contains(msg, "host key"):
		perr.Reason = ProbeFailHostKey
	}
	return perr
}

// NewProber returns the prober named by kind: ping, tcp or ssh.
func NewProber(kind string, timeout time.Duration, user string) (Prober, error) {
	switch kind {
	case "", "ping":
		return PingProber{Timeout: timeout}, nil
	case "tcp":
		return TCPProber{Timeout: timeout}, nil
	case "ssh":
		return SSHProber{Options: sshutil.DialOptions{User: user, Timeout: timeout}}, nil
	}
	return nil, fmt.Errorf("unknown probe %q", kind)
}
