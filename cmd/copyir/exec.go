package main

import "github.com/spf13/cobra"

var execCmd = &cobra.Command{
	Use:   "exec [flags] unit.toml...",
	Short: "Lower every site and run it against the unit's sample heap",
	Long: `exec lowers like "lower" and then runs each lowered graph. A partial
copy is reported with the index of the first element that failed the store
check; the elements before it stay copied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLower(cmd, args, true)
	},
}

func init() {
	addLowerFlags(execCmd)
}
