package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zosci/ce/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 300, cfg.Timeout)
	assert.Equal(t, 300*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, 6, cfg.MaxJob)
	assert.Equal(t, 3, cfg.Bal)
	assert.Equal(t, 6, cfg.MaxNode)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 1, cfg.Replay)
	assert.True(t, cfg.Throttle)
	assert.Equal(t, "local", cfg.Executor)
	assert.Equal(t, "ping", cfg.Probe)
	assert.Equal(t, "/tmp", cfg.ReportDir)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
pyz: /python3
zoau: /zoau
itr: 4
user: omvsadm
maxjob: 8
hostnames:
  - ec01
  - ec02
throttle: false
probe-timeout: 2s
volumes: ["222222", "000000"]
env:
  - PYTHONUNBUFFERED=1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/python3", cfg.Pyz)
	assert.Equal(t, 4, cfg.Itr)
	assert.Equal(t, 8, cfg.MaxJob)
	assert.Equal(t, 3, cfg.Bal, "unset keys keep their defaults")
	assert.Equal(t, []string{"ec01", "ec02"}, cfg.Hostnames)
	assert.False(t, cfg.Throttle)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, []string{"222222", "000000"}, cfg.Volumes)
	env, err := cfg.EnvMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PYTHONUNBUFFERED": "1"}, env)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "itr: [unterminated\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CE_MAXNODE", "2")
	t.Setenv("CE_REPORT_DIR", "/var/reports")
	t.Setenv("CE_HOSTNAMES", "ec03,ec04")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxNode)
	assert.Equal(t, "/var/reports", cfg.ReportDir)
	assert.Equal(t, []string{"ec03", "ec04"}, cfg.Hostnames)
}

func TestLoadWithFlags_Precedence(t *testing.T) {
	path := writeConfig(t, "maxjob: 8\nbal: 2\nworkers: 3\n")
	t.Setenv("CE_BAL", "4")

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Int("maxjob", DefaultMaxJob, "")
	flags.Int("bal", DefaultBal, "")
	flags.Int("workers", DefaultWorkers, "")
	require.NoError(t, flags.Parse([]string{"--maxjob", "10"}))

	cfg, err := LoadWithFlags(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxJob, "flag beats file")
	assert.Equal(t, 4, cfg.Bal, "env beats file")
	assert.Equal(t, 3, cfg.Workers, "file beats unset flag")
}

func TestFind(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeConfig(t, "itr: 1\n")
		got, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("current directory then home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		cwd := t.TempDir()
		chdir(t, cwd)

		got, err := Find("")
		require.NoError(t, err)
		assert.Empty(t, got)

		global := filepath.Join(home, GlobalConfigDir, ConfigFileName)
		require.NoError(t, os.MkdirAll(filepath.Dir(global), 0o755))
		require.NoError(t, os.WriteFile(global, []byte("itr: 1\n"), 0o644))
		got, err = Find("")
		require.NoError(t, err)
		assert.Equal(t, global, got)

		local := filepath.Join(cwd, ConfigFileName)
		require.NoError(t, os.WriteFile(local, []byte("itr: 2\n"), 0o644))
		got, err = Find("")
		require.NoError(t, err)
		assert.Equal(t, local, got)
	})
}

func TestMarshal_LoadsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Zoau = "/zoau"
	cfg.Hostnames = []string{"ec01"}
	cfg.ProbeTimeout = 1500 * time.Millisecond
	cfg.Env = []string{"A=1"}

	out, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "probe-timeout: 1.5s")
	assert.Contains(t, string(out), "maxjob: 6")

	loaded, err := Load(writeConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Zoau, loaded.Zoau)
	assert.Equal(t, cfg.Hostnames, loaded.Hostnames)
	assert.Equal(t, cfg.ProbeTimeout, loaded.ProbeTimeout)
	assert.Equal(t, cfg.Env, loaded.Env)
	assert.Equal(t, cfg.Throttle, loaded.Throttle)
	assert.Equal(t, cfg.ReportDir, loaded.ReportDir)
}

// chdir changes the working directory for the duration of the test, like
// testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			panic("chdir: " + err.Error())
		}
	})
}
