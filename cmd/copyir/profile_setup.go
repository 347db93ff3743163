package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"copyir/internal/prof"
)

// setupProfiling starts the profilers requested by the persistent flags.
// The returned cleanup reports stop failures on stderr.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	root := cmd.Root()
	var opts prof.Options
	var err error
	if opts.CPU, err = root.PersistentFlags().GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = root.PersistentFlags().GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = root.PersistentFlags().GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	session, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
		}
	}, nil
}
