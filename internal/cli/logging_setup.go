package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mailgoat/mailgoat/internal/config"
	"github.com/mailgoat/mailgoat/internal/logging"
)

// setupLogging configures logging based on config file, environment, and CLI flags.
func setupLogging(cmd *cobra.Command) logging.Result {
	loggingCfg := config.GetGlobalConfig().Logging

	logCfg := logging.Config{
		Level:  loggingCfg.Level,
		Format: loggingCfg.Format,
		Output: "stderr",
		File:   loggingCfg.File,
	}
	if loggingCfg.File != "" {
		logCfg.Output = "file"
	}

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		logCfg.Level = "debug"
		logCfg.Format = logging.FormatConsole
		logCfg.Output = "stderr"
		logCfg.File = ""
	}

	// Piped stderr defaults to JSON logs so scripts get parseable lines.
	if logCfg.Format == "" && !isTerminal(os.Stderr) {
		logCfg.Format = logging.FormatJSON
	}

	result := logging.New(logCfg)
	logger = logging.ComponentLogger(result.Logger, "cli")

	if result.FallbackUsed {
		cmd.PrintErrf("Warning: could not open log file, logging to stderr: %s\n", result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	ctx = logger.With().Str("trace_id", traceID).Logger().WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().Str("command", cmd.Name()).Str("trace_id", traceID).Msg("command started")

	return result
}

// cleanupLogging closes the log file handle if one was opened.
func cleanupLogging(logResult *logging.Result) error {
	if logResult != nil {
		return logResult.Close()
	}
	return nil
}
