package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"copyir/internal/config"
	"copyir/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "copyir",
	Short: "Array-copy lowering toolkit",
	Long: `copyir selects a copy strategy for every arraycopy site in a unit,
lowers it to a stub call or a raw memory move and optionally executes the
result against the unit's sample heap.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorMode(cmd)
	},
}

// main registers subcommands and persistent flags, then executes the root
// command. Any returned error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(preheapCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics to show (0 = config value)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime execution trace to this file")
	rootCmd.PersistentFlags().String("config", "", "path to copyir.toml (default: search upwards from the working directory)")

	rootCmd.PersistentFlags().String("trace", "", "trace output file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().String("trace-format", "", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer capacity for ring trace mode")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", time.Duration(0), "emit a heartbeat event at this interval (0 = off)")

	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}

// exitCode ends the process with a specific status once deferred cleanups
// have run. Diagnostics have already been printed.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func applyColorMode(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// loadConfig reads --config or discovers copyir.toml from the working
// directory upwards.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return config.Config{}, wdErr
		}
		cfg, err = config.Discover(wd)
	}
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
