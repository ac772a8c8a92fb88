package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/util"
)

// ValidationOption controls validation behavior.
type ValidationOption func(*validationContext)

type validationContext struct {
	skipRequired bool
}

// SkipRequired relaxes the run-only required fields, for commands that
// only discover nodes or collect tests.
func SkipRequired() ValidationOption {
	return func(c *validationContext) { c.skipRequired = true }
}

// Validate checks cfg and returns the first problem as a CONFIG error.
func Validate(cfg *Config, opts ...ValidationOption) error {
	ctx := &validationContext{}
	for _, opt := range opts {
		opt(ctx)
	}
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if !ctx.skipRequired {
		if err := validateRequired(cfg); err != nil {
			return err
		}
	}

	if err := validateThresholds(cfg); err != nil {
		return err
	}

	if cfg.Verbosity < 0 || cfg.Verbosity > MaxVerbosity {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Verbosity %d is out of range", cfg.Verbosity),
			fmt.Sprintf("Use a value between 0 and %d.", MaxVerbosity))
	}

	if cfg.Testsuite != "" && cfg.Tests != "" {
		return errors.New(errors.ErrConfig,
			"--testsuite and --tests can't be used together",
			"Pass test files with --testsuite or test directories with --tests, not both.")
	}

	if err := validateEnum("executor", cfg.Executor, Executors); err != nil {
		return err
	}
	if err := validateEnum("probe", cfg.Probe, Probes); err != nil {
		return err
	}
	if _, err := cfg.EnvMap(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid env setting",
			"Write each entry as KEY=VALUE, e.g. --env PYTHONUNBUFFERED=1.")
	}
	if cfg.ProbeTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("probe-timeout must be positive, got %s", cfg.ProbeTimeout),
			"Use a duration like 5s.")
	}
	return nil
}

func validateRequired(cfg *Config) error {
	var missing []string
	if cfg.Pyz == "" {
		missing = append(missing, "--pyz")
	}
	if cfg.Zoau == "" {
		missing = append(missing, "--zoau")
	}
	if cfg.User == "" {
		missing = append(missing, "--user")
	}
	if cfg.Itr == 0 {
		missing = append(missing, "--itr")
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrConfig,
			"Missing required settings: "+strings.Join(missing, ", "),
			"Pass them as flags, set them in "+ConfigFileName+", or export CE_<NAME>.")
	}
	if cfg.Testsuite == "" && cfg.Tests == "" {
		return errors.New(errors.ErrConfig,
			"Nothing to run",
			"Pass test files with --testsuite or test directories with --tests.")
	}
	return nil
}

func validateThresholds(cfg *Config) error {
	positive := []struct {
		name  string
		value int
	}{
		{"timeout", cfg.Timeout},
		{"maxjob", cfg.MaxJob},
		{"bal", cfg.Bal},
		{"maxnode", cfg.MaxNode},
		{"workers", cfg.Workers},
		{"replay", cfg.Replay},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s must be positive, got %d", p.name, p.value),
				fmt.Sprintf("Set --%s to 1 or more.", p.name))
		}
	}
	if cfg.Itr < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("itr must be positive, got %d", cfg.Itr),
			"Set --itr to 1 or more.")
	}
	if cfg.Bal > cfg.MaxJob {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("bal (%d) can't be greater than maxjob (%d)", cfg.Bal, cfg.MaxJob),
			"A job has to be rebalanced before it runs out of attempts; lower --bal or raise --maxjob.")
	}
	return nil
}

func validateEnum(name, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	suggestion := fmt.Sprintf("Use one of: %s.", strings.Join(allowed, ", "))
	if similar := util.SuggestSimilar(value, allowed, 1); len(similar) > 0 {
		suggestion = fmt.Sprintf("Did you mean '%s'? %s", similar[0], suggestion)
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown %s '%s'", name, value),
		suggestion)
}
