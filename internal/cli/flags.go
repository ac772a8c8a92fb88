package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zosci/ce/internal/config"
	"github.com/zosci/ce/internal/ui"
)

// addConfigFlags registers one flag per config key. Defaults mirror
// config.DefaultConfig so --help shows the effective stock values.
func addConfigFlags(fs *pflag.FlagSet) {
	d := config.DefaultConfig()

	fs.String("pyz", "", "Python installation path on the managed nodes (required)")
	fs.String("zoau", "", "ZOAU installation path on the managed nodes (required)")
	fs.Int("itr", 0, "maximum thread pool iterations per play (required)")
	fs.String("user", "", "user on the managed nodes (required)")

	fs.Int("timeout", d.Timeout, "seconds a single job may run before it is killed")
	fs.Int("maxjob", d.MaxJob, "failures after which a job is no longer scheduled")
	fs.Int("bal", d.Bal, "failures after which a job moves to another node")
	fs.Int("maxnode", d.MaxNode, "balanced jobs after which a node is taken offline")

	fs.StringSlice("hostnames", nil, "managed nodes to use instead of the discovery command")
	fs.String("discovery", "", "command printing candidate managed nodes")
	fs.String("probe", d.Probe, "liveness probe: ping, tcp or ssh")
	fs.Duration("probe-timeout", d.ProbeTimeout, "liveness probe timeout")

	fs.String("testsuite", "", "comma or space separated test files")
	fs.String("tests", "", "comma or space separated test directories")
	fs.String("skip", "", "test files or path::case identifiers to leave out")
	fs.String("test-prefix", "", `prefix added to collected identifiers ("-" disables)`)
	fs.String("collect-command", "", "command used to collect tests")

	fs.Int("verbosity", d.Verbosity, "pytest verbosity, 0 to 4")
	fs.Bool("capture", d.Capture, "print test output as it runs (pytest -s)")
	fs.Int("workers", d.Workers, "threads per managed node")
	fs.Int("replay", d.Replay, "maximum plays; later plays rerun failed tests")
	fs.Bool("throttle", d.Throttle, "one job per node, and one job overall while any node is offline")

	fs.String("pythonpath", "", "PYTHONPATH on the managed nodes")
	fs.StringSlice("volumes", nil, "volumes available to tests, e.g. 222222,000000")
	fs.String("extra", "", "shell commands run before every job")
	fs.StringSlice("env", nil, "KEY=VALUE exported before every job")

	fs.String("executor", d.Executor, "where jobs run: local or ssh")
	fs.String("report-dir", d.ReportDir, `directory for HTML reports and the results log ("" disables)`)
	fs.Bool("verbose", d.Verbose, "print test lists and log entries after each play")
	fs.Bool("no-color", d.NoColor, "disable colored output")
}

// loadConfig resolves the config for cmd and validates it.
func loadConfig(cmd *cobra.Command, opts ...config.ValidationOption) (*config.Config, error) {
	path, err := config.Find(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithFlags(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configureColors turns colors off for --no-color and for output that is
// not a terminal.
func configureColors(cmd *cobra.Command, noColor bool) {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		ui.ConfigureColors(noColor, f)
		return
	}
	ui.DisableColors()
}
