package job

import (
	"strings"

	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/util"
)

const maxVerbosity = 4

// BuildCommand renders the test runner command line for running j against
// n. It has no side effects.
func BuildCommand(j *Job, n *node.Node) string {
	var b strings.Builder

	b.WriteString("pytest ")
	b.WriteString(j.testCase)
	b.WriteString(" --host-pattern=")
	b.WriteString(j.opts.HostPattern)
	if j.opts.Capture {
		b.WriteString(" -s")
	}
	if v := j.opts.Verbosity; v > 0 {
		if v > maxVerbosity {
			v = maxVerbosity
		}
		b.WriteString(" -")
		b.WriteString(strings.Repeat("v", v))
	}
	b.WriteString(" --zinventory-raw=")
	b.WriteString(util.ShellQuote(n.Inventory()))

	return b.String()
}
