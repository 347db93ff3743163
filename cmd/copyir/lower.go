package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"copyir/internal/config"
	"copyir/internal/driver"
	"copyir/internal/layout"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] unit.toml...",
	Short: "Select strategies and lower every arraycopy site",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLower(cmd, args, false)
	},
}

func init() {
	addLowerFlags(lowerCmd)
}

func addLowerFlags(cmd *cobra.Command) {
	cmd.Flags().String("emit", string(driver.EmitSummary), "per-site output (summary|graph)")
	cmd.Flags().Int("jobs", 0, "max parallel workers (0=config or GOMAXPROCS)")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	cmd.Flags().Bool("no-cache", false, "skip the on-disk result cache")
}

func runLower(cmd *cobra.Command, files []string, execute bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	emitStr, err := cmd.Flags().GetString("emit")
	if err != nil {
		return fmt.Errorf("failed to get emit flag: %w", err)
	}
	emit, err := driver.ParseEmit(emitStr)
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	uiStr, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiStr)
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	opts := driver.Options{
		Jobs:           firstPositive(jobs, cfg.Build.Jobs, runtime.GOMAXPROCS(0)),
		MaxDiagnostics: firstPositive(maxDiagnostics, cfg.Build.MaxDiagnostics),
		Exec:           execute,
		Target:         layout.X86_64LinuxGNU(),
	}
	if !noCache && !cfg.Cache.Disabled {
		cache, cacheErr := openCache(cfg)
		if cacheErr != nil {
			// The cache is an optimisation; carry on without it.
			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: cache disabled: %v\n", cacheErr)
			}
		} else {
			opts.Cache = cache
		}
	}

	title := "lowering"
	if execute {
		title = "lowering and running"
	}
	var sess *driver.Session
	if shouldUseTUI(mode, quiet, len(files)) {
		sess, err = runLowerWithUI(cmd.Context(), title, files, opts)
	} else {
		sess, err = driver.LowerFiles(cmd.Context(), files, opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := range sess.Results {
		res := &sess.Results[i]
		if !quiet {
			driver.WriteUnit(out, res, emit)
		}
		driver.WriteDiagnostics(cmd.ErrOrStderr(), res)
	}
	if !quiet && len(sess.Results) > 1 {
		driver.WriteSession(out, sess)
	}
	if showTimings {
		printStageTimings(out, collectTimings(sess))
	}
	if sess.Broken() {
		return exitCode(driver.StatusBroken)
	}
	return nil
}

func openCache(cfg config.Config) (*driver.DiskCache, error) {
	if cfg.Cache.Dir != "" {
		return driver.OpenDiskCacheAt(cfg.Cache.Dir)
	}
	return driver.OpenDiskCache("copyir")
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
