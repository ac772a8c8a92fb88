package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/util"
)

// cfgFile is the --config flag shared by every command.
var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ce",
		Short: "Run pytest suites concurrently across managed nodes",
		Long: `ce dispatches test cases to a pool of managed nodes, one job per node at a
time, retrying failures, rebalancing jobs away from failing nodes and
replaying whatever still failed.

Examples:
  ce run --pyz /python3 --zoau /zoau --user omvsadm --itr 5 \
    --testsuite tests/functional/modules/test_zos_copy_func.py
  ce nodes --hostnames ec01,ec02
  ce collect --tests tests/functional/modules`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./ce.yaml or ~/.config/ce/ce.yaml)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newNodesCmd())
	root.AddCommand(newCollectCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stderr))
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	if isUnknownCommandError(err) {
		fmt.Fprintln(stderr, err)
		if name := extractUnknownCommand(err); name != "" {
			if similar := util.SuggestSimilar(name, commandNames(root), 1); len(similar) > 0 {
				fmt.Fprintf(stderr, "\nDid you mean 'ce %s'?\n", similar[0])
			}
		}
		fmt.Fprintln(stderr, "Run 'ce --help' for usage.")
		return 1
	}

	var cerr *errors.Error
	if stderrors.As(err, &cerr) {
		fmt.Fprint(stderr, cerr.Error())
	} else {
		fmt.Fprintf(stderr, "✗ %v\n", err)
	}
	return 1
}

func commandNames(root *cobra.Command) []string {
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	return names
}

func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls foo out of `unknown command "foo" for "ce"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
