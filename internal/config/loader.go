package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zosci/ce/internal/errors"
)

const (
	// ConfigFileName is looked up in the current directory.
	ConfigFileName = "ce.yaml"
	// GlobalConfigDir holds the per user config, relative to home.
	GlobalConfigDir = ".config/ce"
	// EnvPrefix prefixes environment overrides, e.g. CE_MAXJOB.
	EnvPrefix = "CE"
)

// Find locates the config file:
// 1. Explicit path (from --config)
// 2. ce.yaml in the current directory
// 3. ~/.config/ce/ce.yaml
//
// Returns "" when there is none.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	if local := filepath.Join(cwd, ConfigFileName); fileExists(local) {
		return local, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		if global := filepath.Join(home, GlobalConfigDir, ConfigFileName); fileExists(global) {
			return global, nil
		}
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads config from path, or defaults plus environment when path is
// empty.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags layers, lowest first: defaults, the config file at path,
// CE_* environment variables and flags that were set on the command line.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Create "+ConfigFileName+" or point --config at an existing file")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to bind command line flags",
				"This is a bug; please report it.")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment and flags"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the values in "+where)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("pyz", d.Pyz)
	v.SetDefault("zoau", d.Zoau)
	v.SetDefault("itr", d.Itr)
	v.SetDefault("user", d.User)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("maxjob", d.MaxJob)
	v.SetDefault("bal", d.Bal)
	v.SetDefault("maxnode", d.MaxNode)
	v.SetDefault("hostnames", []string{})
	v.SetDefault("discovery", d.Discovery)
	v.SetDefault("verbosity", d.Verbosity)
	v.SetDefault("capture", d.Capture)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("replay", d.Replay)
	v.SetDefault("testsuite", d.Testsuite)
	v.SetDefault("tests", d.Tests)
	v.SetDefault("skip", d.Skip)
	v.SetDefault("test-prefix", d.TestPrefix)
	v.SetDefault("collect-command", d.CollectCommand)
	v.SetDefault("pythonpath", d.Pythonpath)
	v.SetDefault("volumes", []string{})
	v.SetDefault("extra", d.Extra)
	v.SetDefault("throttle", d.Throttle)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("executor", d.Executor)
	v.SetDefault("probe", d.Probe)
	v.SetDefault("probe-timeout", d.ProbeTimeout)
	v.SetDefault("report-dir", d.ReportDir)
	v.SetDefault("no-color", d.NoColor)
	v.SetDefault("env", []string{})
}
