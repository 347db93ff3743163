package main

import (
	"github.com/spf13/cobra"

	"copyir/internal/buildproto"
)

var clientCmd = &cobra.Command{
	Use:   "client -port=<port> -command=<version|lower|exec> [args...]",
	Short: "Talk to a running build server",
	Long: `client forwards a command to a build server over its line protocol and
streams the server's output. The exit status is the one the server reports.`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		code := buildproto.Run(args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if code != buildproto.ExitSuccess {
			if code < 0 || code > 255 {
				code = 1
			}
			return exitCode(code)
		}
		return nil
	},
}
