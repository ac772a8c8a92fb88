package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zosci/ce/internal/config"
	"github.com/zosci/ce/internal/discovery"
	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/metrics"
	"github.com/zosci/ce/internal/remote"
	"github.com/zosci/ce/internal/report"
	"github.com/zosci/ce/internal/scheduler"
	"github.com/zosci/ce/internal/ui"
	"github.com/zosci/ce/pkg/sshutil"
)

// Factories replaced in tests.
var (
	newDiscoverer = discoveryService
	newRemote     = remoteExecutor
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the test suite across the managed nodes",
		Long: `Discover the managed nodes, collect the test cases and run them as jobs,
one job per node at a time.

A job that fails --bal times moves to a node it has not tried yet; a node
that collects more than --maxnode balanced jobs goes offline. Jobs that fail
--maxjob times stop being scheduled. Each play runs up to --itr iterations
and the next play replays the tests that still failed, up to --replay plays.

Examples:
  ce run --pyz /python3 --zoau /zoau --user omvsadm --itr 5 \
    --testsuite tests/functional/modules/test_zos_copy_func.py
  ce run --tests tests/functional/modules --hostnames ec01,ec02 --replay 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func runCommand(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env, err := cfg.EnvMap()
	if err != nil {
		return err
	}
	configureColors(cmd, cfg.NoColor)

	runID := uuid.NewString()
	log := logger.NewEnvLogger("run")
	log.Debug("run %s starting with %d plays of up to %d iterations", runID, cfg.Replay, cfg.Itr)

	disc, err := newDiscoverer(cfg)
	if err != nil {
		return err
	}
	exec, err := newRemote(cfg)
	if err != nil {
		return err
	}

	scope, closer, reporter := metrics.NewScope(metrics.Options{
		Prefix: "ce",
		Tags:   map[string]string{"run_id": runID, "executor": cfg.Executor},
		Log:    logger.NewEnvLogger("metrics"),
	})

	console := report.NewConsole(report.Options{
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		Dir:     cfg.ReportDir,
		RunID:   runID,
		Log:     log,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := &scheduler.Executor{
		Config:     schedulerConfig(cfg, env),
		Discoverer: disc,
		Remote:     exec,
		Reporter:   console,
		Options:    scheduler.Options{Scope: scope, Log: log},
	}
	_, rc, runErr := executor.Execute(ctx)

	if err := closer.Close(); err != nil {
		log.Warn("couldn't flush metrics: %v", err)
	}
	log.Info("metrics: %s", reporter.Summary())

	if path, err := console.WriteResults(); err != nil {
		log.Warn("%v", err)
	} else if path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Results log written to %s\n", ui.Muted(ui.SymbolPending), path)
	}

	if runErr != nil {
		return runErr
	}
	if rc != 0 {
		return errors.NewExitError(rc)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func schedulerConfig(cfg *config.Config, env map[string]string) scheduler.Config {
	return scheduler.Config{
		Timeout:  cfg.TimeoutDuration(),
		MaxJob:   cfg.MaxJob,
		Bal:      cfg.Bal,
		MaxNode:  cfg.MaxNode,
		Throttle: cfg.Throttle,
		Env:      env,
		Workers:  cfg.Workers,
		Itr:      cfg.Itr,
		Replay:   cfg.Replay,
	}
}

func discoveryService(cfg *config.Config) (*discovery.Service, error) {
	prober, err := discovery.NewProber(cfg.Probe, cfg.ProbeTimeout, cfg.User)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid probe",
			"Use --probe ping, tcp or ssh.")
	}

	svc := &discovery.Service{
		NodeOptions: discovery.NodeOptions{
			User:       cfg.User,
			Zoau:       cfg.Zoau,
			Pyz:        cfg.Pyz,
			Pythonpath: cfg.Pythonpath,
			Volumes:    cfg.Volumes,
			Hostnames:  cfg.Hostnames,
			Log:        logger.NewEnvLogger("discovery"),
		},
		JobOptions: discovery.JobOptions{
			Testsuite: cfg.Testsuite,
			Tests:     cfg.Tests,
			Skip:      cfg.Skip,
			Capture:   cfg.Capture,
			Verbosity: cfg.Verbosity,
			Prefix:    cfg.TestPrefix,
		},
		Prober:    prober,
		Collector: discovery.PytestCollector{Command: cfg.CollectCommand},
	}
	if cfg.Discovery != "" {
		svc.Lister = discovery.CommandLister{Command: cfg.Discovery}
	}
	return svc, nil
}

func remoteExecutor(cfg *config.Config) (remote.Executor, error) {
	switch cfg.Executor {
	case "local":
		return remote.NewLocalExecutor(cfg.Extra), nil
	case "ssh":
		return remote.NewSSHExecutor(cfg.Extra, sshutil.DialOptions{
			User:    cfg.User,
			Timeout: cfg.ProbeTimeout,
			Logger:  logger.NewEnvLogger("ssh"),
		}), nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown executor '%s'", cfg.Executor),
		"Use --executor local or ssh.")
}
