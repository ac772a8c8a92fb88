package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for the scheduling thresholds and discovery settings.
const (
	DefaultTimeoutSeconds = 300
	DefaultMaxJob         = 6
	DefaultBal            = 3
	DefaultMaxNode        = 6
	DefaultWorkers        = 1
	DefaultReplay         = 1
	DefaultExecutor       = "local"
	DefaultProbe          = "ping"
	DefaultProbeTimeout   = 5 * time.Second
	DefaultReportDir      = "/tmp"
	MaxVerbosity          = 4
)

// Executors and Probes are the accepted values of the executor and probe
// settings.
var (
	Executors = []string{"local", "ssh"}
	Probes    = []string{"ping", "tcp", "ssh"}
)

// Config is the effective configuration of a run. Keys match the cobra
// flag names so viper can bind flags, the ce.yaml file and CE_* variables
// to the same fields.
type Config struct {
	// Pyz and Zoau are the toolchain paths handed to every node.
	Pyz  string `yaml:"pyz" mapstructure:"pyz"`
	Zoau string `yaml:"zoau" mapstructure:"zoau"`
	// Itr caps the iterations of one play.
	Itr  int    `yaml:"itr" mapstructure:"itr"`
	User string `yaml:"user" mapstructure:"user"`

	// Timeout bounds a single attempt, in seconds.
	Timeout int `yaml:"timeout" mapstructure:"timeout"`
	MaxJob  int `yaml:"maxjob" mapstructure:"maxjob"`
	Bal     int `yaml:"bal" mapstructure:"bal"`
	MaxNode int `yaml:"maxnode" mapstructure:"maxnode"`

	Hostnames []string `yaml:"hostnames" mapstructure:"hostnames"`
	// Discovery lists candidate nodes when Hostnames is empty.
	Discovery string `yaml:"discovery" mapstructure:"discovery"`

	Verbosity int  `yaml:"verbosity" mapstructure:"verbosity"`
	Capture   bool `yaml:"capture" mapstructure:"capture"`
	Workers   int  `yaml:"workers" mapstructure:"workers"`
	Replay    int  `yaml:"replay" mapstructure:"replay"`

	Testsuite string `yaml:"testsuite" mapstructure:"testsuite"`
	Tests     string `yaml:"tests" mapstructure:"tests"`
	Skip      string `yaml:"skip" mapstructure:"skip"`
	// TestPrefix is prepended to collected identifiers; "-" disables it.
	TestPrefix     string `yaml:"test-prefix" mapstructure:"test-prefix"`
	CollectCommand string `yaml:"collect-command" mapstructure:"collect-command"`

	Pythonpath string   `yaml:"pythonpath" mapstructure:"pythonpath"`
	Volumes    []string `yaml:"volumes" mapstructure:"volumes"`
	// Extra is a shell snippet run before each job command.
	Extra string `yaml:"extra" mapstructure:"extra"`
	// Env holds KEY=VALUE pairs exported before each job command.
	Env []string `yaml:"env" mapstructure:"env"`

	Throttle bool `yaml:"throttle" mapstructure:"throttle"`
	Verbose  bool `yaml:"verbose" mapstructure:"verbose"`

	Executor     string        `yaml:"executor" mapstructure:"executor"`
	Probe        string        `yaml:"probe" mapstructure:"probe"`
	ProbeTimeout time.Duration `yaml:"probe-timeout" mapstructure:"probe-timeout"`

	ReportDir string `yaml:"report-dir" mapstructure:"report-dir"`
	NoColor   bool   `yaml:"no-color" mapstructure:"no-color"`
}

// DefaultConfig returns a Config with the stock thresholds. Required
// fields are left empty.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeoutSeconds,
		MaxJob:       DefaultMaxJob,
		Bal:          DefaultBal,
		MaxNode:      DefaultMaxNode,
		Workers:      DefaultWorkers,
		Replay:       DefaultReplay,
		Throttle:     true,
		Executor:     DefaultExecutor,
		Probe:        DefaultProbe,
		ProbeTimeout: DefaultProbeTimeout,
		ReportDir:    DefaultReportDir,
	}
}

// TimeoutDuration is Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// EnvMap parses Env into a map. Later entries win.
func (c *Config) EnvMap() (map[string]string, error) {
	env := make(map[string]string, len(c.Env))
	for _, kv := range c.Env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("env entry %q is not KEY=VALUE", kv)
		}
		env[key] = value
	}
	return env, nil
}
