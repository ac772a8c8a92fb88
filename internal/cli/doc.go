// Package cli implements the ce command-line interface.
//
// Every command is built by newRootCmd so tests get a fresh tree:
//
//	ce run        - discover nodes, collect tests and run every play
//	ce nodes      - probe the candidate nodes and list the ones online
//	ce collect    - list the jobs a run would build and where they start
//	ce config     - print the effective configuration as YAML
//	ce version    - print build information
//
// # Configuration
//
// run, nodes, collect and config share one flag set whose names match the
// keys of ce.yaml. Values are layered by internal/config: defaults, the
// config file, CE_* environment variables, then flags set on the command
// line.
//
// # Exit codes
//
// ce run exits 0 when the last play had no failed jobs and 1 otherwise.
// Setup failures print a formatted error and also exit 1.
package cli
