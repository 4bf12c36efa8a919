// Package cli parses the scheduler's command-line arguments: the workflow
// path (flag or positional), logging options and the simulated job layer's
// knobs. Validation failures surface as ExitError values carrying the
// process exit code, keeping os.Exit decisions out of the parser itself.
package cli
