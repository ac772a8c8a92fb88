package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zosci/ce/internal/config"
	"github.com/zosci/ce/internal/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a run would use, after layering the defaults,
the config file, CE_* environment variables and flags. The output is valid
ce.yaml.

Examples:
  ce config
  CE_MAXJOB=8 ce config --bal 4 > ce.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, config.SkipRequired())
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Couldn't render the configuration",
					"This is a bug; please report it.")
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}
