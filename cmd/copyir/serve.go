package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"copyir/internal/buildproto"
	"copyir/internal/driver"
	"copyir/internal/layout"
	"copyir/internal/trace"
	"copyir/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a build server that lowers units on request",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "TCP port on 127.0.0.1 (0=config value)")
	serveCmd.Flags().Bool("no-cache", false, "skip the on-disk result cache")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("failed to get port flag: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	opts := driver.Options{
		Jobs:           firstPositive(cfg.Build.Jobs, runtime.GOMAXPROCS(0)),
		MaxDiagnostics: cfg.Build.MaxDiagnostics,
		Target:         layout.X86_64LinuxGNU(),
	}
	if !noCache && !cfg.Cache.Disabled {
		if cache, cacheErr := openCache(cfg); cacheErr == nil {
			opts.Cache = cache
		} else if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: cache disabled: %v\n", cacheErr)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &buildproto.Server{
		Version: version.Plain(),
		Handler: driver.ProtocolHandler(opts),
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s listening on 127.0.0.1:%d\n", version.Plain(), port)
	}
	trace.Point(trace.FromContext(ctx), trace.ScopeDriver, "serve", fmt.Sprintf("port %d", port), trace.CurrentSpan(ctx).SpanID)
	return srv.ListenAndServe(ctx, port)
}
