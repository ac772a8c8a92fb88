package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zosci/ce/internal/config"
	"github.com/zosci/ce/internal/discovery"
	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/ui"
	"github.com/zosci/ce/internal/util"
)

func newNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the managed nodes that answer the liveness probe",
		Long: `Probe the candidate managed nodes, from --hostnames or the discovery
command, and list the ones that answered.

Examples:
  ce nodes --hostnames ec01,ec02,ec03
  ce nodes --discovery "./venv.sh --targets-production" --probe tcp`,
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
			nodes, err := svc.DiscoverNodes(commandContext(cmd))
			if err != nil {
				return err
			}
			if nodes.OnlineCount() == 0 {
				return discovery.ErrNoNodesAvailable
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderNodes(nodes))
			return nil
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func renderNodes(nodes *node.Registry) string {
	var rows [][]string
	for i, n := range nodes.Nodes() {
		rows = append(rows, []string{strconv.Itoa(i + 1), n.Hostname, n.User, n.Status().Label()})
	}
	return fmt.Sprintf("%s\n%d managed %s online",
		ui.RenderTable([]string{"#", "Managed node", "User", "Status"}, rows),
		nodes.OnlineCount(), util.Pluralize(nodes.OnlineCount(), "node", "nodes"))
}
