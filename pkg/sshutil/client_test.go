package sshutil

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/zosci/ce/internal/logger"
)

// skipIfNoSSH skips live tests unless CE_TEST_SSH_HOST names a reachable node.
func skipIfNoSSH(t *testing.T) string {
	t.Helper()
	host := os.Getenv("CE_TEST_SSH_HOST")
	if host == "" {
		t.Skip("Skipping SSH test: CE_TEST_SSH_HOST not set")
	}
	return host
}

func writeSSHConfig(t *testing.T, content string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "config"), []byte(content), 0o600))
}

func TestResolveSettings_HostString(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USER", "tester")

	tests := []struct {
		input        string
		wantHost     string
		wantPort     string
		wantUser     string
		wantExplicit bool
	}{
		{"ec01.example.com", "ec01.example.com", "22", "tester", false},
		{"omvsadm@ec01", "ec01", "22", "omvsadm", true},
		{"ec01:2022", "ec01", "2022", "tester", false},
		{"omvsadm@10.0.0.5:2222", "10.0.0.5", "2222", "omvsadm", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := resolveSettings(tt.input, logger.Noop())
			assert.Equal(t, tt.wantHost, s.hostname)
			assert.Equal(t, tt.wantPort, s.port)
			assert.Equal(t, tt.wantUser, s.user)
			assert.Equal(t, tt.wantExplicit, s.explicitUser)
		})
	}
}

func TestResolveSettings_SSHConfig(t *testing.T) {
	writeSSHConfig(t, `
Host zos1
  HostName ec01.example.com
  Port 2022
  User omvsadm
  IdentityFile ~/.ssh/zos_key
`)

	s := resolveSettings("zos1", logger.Noop())
	assert.Equal(t, "ec01.example.com", s.hostname)
	assert.Equal(t, "2022", s.port)
	assert.Equal(t, "omvsadm", s.user)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".ssh", "zos_key"), s.identityFile)
	assert.Equal(t, "ec01.example.com:2022", s.address())

	explicit := resolveSettings("other@zos1", logger.Noop())
	assert.Equal(t, "other", explicit.user, "explicit user wins over config")
}

func TestReadSSHConfig_StopsAtMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("Host a\n  Port 1\nMatch host b\n  Port 2\n"), 0o600))

	content, line, err := readSSHConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, line)
	assert.Equal(t, "Host a\n  Port 1", string(content))

	_, _, err = readSSHConfig(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestResolveSettings_WarnsOnMatchOnce(t *testing.T) {
	writeSSHConfig(t, "Match all\n  User x\nHost late\n  Port 2200\n")
	matchWarningOnce = sync.Once{}

	buf := logger.NewBufferLogger()
	s := resolveSettings("late", buf)

	assert.Equal(t, "22", s.port)
	assert.True(t, buf.HasLevel("warn"))
}

func TestExitStatus(t *testing.T) {
	code, err := exitStatus(nil, "true")
	assert.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = exitStatus(errors.New("broken pipe"), "pytest")
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestHostKeyMismatchSuggestion(t *testing.T) {
	e := &HostKeyMismatchError{Hostname: "ec01:22", ReceivedType: ssh.KeyAlgoED25519, KnownHosts: "/k"}
	assert.Contains(t, e.Error(), "ec01:22")
	assert.Equal(t, "Remove the stale entry with: ssh-keygen -f /k -R ec01", e.Suggestion())
}

func TestDial_Unreachable(t *testing.T) {
	skipIfNoSSH(t)

	_, err := Dial("192.0.2.1", DialOptions{Timeout: time.Second})
	assert.Error(t, err)
}

func TestDial_Exec(t *testing.T) {
	host := skipIfNoSSH(t)

	client, err := Dial(host, DialOptions{})
	require.NoError(t, err)
	defer client.Close()

	stdout, _, code, err := client.Exec("echo hello; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, string(stdout), "hello")
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsPermanent(&HostKeyMismatchError{Hostname: "ec01"}))
	assert.True(t, IsPermanent(&EncryptedKeyError{Path: "/k"}))
	assert.True(t, IsPermanent(errors.New("ssh: handshake failed: ssh: unable to authenticate")))
}
