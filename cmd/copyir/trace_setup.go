package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"copyir/internal/config"
	"copyir/internal/trace"
)

// setupTracing combines the trace flags with the [trace] section of the
// configuration and attaches the tracer to the command context. Flags win
// over configuration. The returned cleanup flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, cfg config.Config) (func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}

	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}

	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}

	formatStr, err := root.PersistentFlags().GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}

	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	if levelStr == "" {
		levelStr = cfg.Trace.Level
	}
	if modeStr == "" {
		modeStr = cfg.Trace.Mode
	}
	// An explicit --trace without a level means phase tracing.
	if traceOutput != "" && (levelStr == "" || levelStr == "off") && !root.PersistentFlags().Changed("trace-level") {
		levelStr = "phase"
	}
	if formatStr == "" {
		formatStr = cfg.Trace.Format
	}
	if traceOutput == "" {
		traceOutput = cfg.Trace.Output
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}

	if level == trace.LevelOff {
		ctx := trace.WithTracer(cmd.Context(), trace.Nop)
		cmd.SetContext(ctx)
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
