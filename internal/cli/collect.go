package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zosci/ce/internal/config"
	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/ui"
	"github.com/zosci/ce/internal/util"
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "List the jobs a run would build",
		Long: `Discover the managed nodes and collect the test cases, then list each job
with the node it would start on. Nothing is executed.

Examples:
  ce collect --testsuite tests/functional/modules/test_zos_copy_func.py --hostnames ec01,ec02
  ce collect --tests tests/functional/modules --skip tests/functional/modules/test_zos_fetch_func.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, config.SkipRequired())
			if err != nil {
				return err
			}
			configureColors(cmd, cfg.NoColor)

			svc, err := newDiscoverer(cfg)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			nodes, err := svc.DiscoverNodes(ctx)
			if err != nil {
				return err
			}
			jobs, err := svc.BuildJobs(ctx, nodes, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobs(jobs))
			return nil
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func renderJobs(jobs *job.Registry) string {
	all := jobs.Jobs()
	rows := make([][]string, 0, len(all))
	for _, j := range all {
		rows = append(rows, []string{strconv.Itoa(j.ID()), j.TestCase(), j.Hostname()})
	}
	return fmt.Sprintf("%s\n%d %s collected",
		ui.RenderTable([]string{"Job", "Test case", "Managed node"}, rows),
		len(all), util.Pluralize(len(all), "job", "jobs"))
}
