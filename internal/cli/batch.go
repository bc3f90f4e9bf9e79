package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/mailgoat/mailgoat/internal/batch"
	"github.com/mailgoat/mailgoat/internal/client"
	"github.com/mailgoat/mailgoat/internal/config"
	"github.com/mailgoat/mailgoat/internal/logging"
)

// maxMessageLineBytes bounds one JSONL input line. Attachments are
// base64-encoded inline, so lines can be large.
const maxMessageLineBytes = 16 * 1024 * 1024

// BatchAbortError signals that a batch run stopped before completion
// because progress could no longer be tracked. It carries its own exit
// code so partial failures are distinguishable from ordinary errors.
type BatchAbortError struct {
	Reason string
}

func (e *BatchAbortError) Error() string {
	return "batch aborted: " + e.Reason
}

// ExitCode returns the process exit code for an aborted batch.
func (e *BatchAbortError) ExitCode() int {
	return client.ExitBatchAbort
}

// batchSendFlags holds the flag values for the batch send command.
type batchSendFlags struct {
	input       string
	concurrency int
	batchID     string
	resume      bool
	state       string
	statePath   string
}

// NewBatchSendCmd creates the batch send command for bulk message delivery.
func NewBatchSendCmd() *cobra.Command {
	var flags batchSendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a batch of messages from a JSONL file",
		Long: `Sends every message in a JSONL file, one JSON message object per line,
through a bounded worker pool. Progress is recorded per message so an
interrupted run can be resumed with --resume and the same --batch-id.

When the upstream rate-limits the batch, concurrency is halved for the
rest of the run rather than hammering a throttled API.`,
		Example: `  # Send with defaults, auto-generated batch ID
  mailgoat batch send --input messages.jsonl

  # Named batch at higher concurrency
  mailgoat batch send --input launch.jsonl --batch-id launch-2026 --concurrency 8

  # Resume an interrupted run
  mailgoat batch send --input launch.jsonl --batch-id launch-2026 --resume`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatchSend(cmd, &flags)
		},
	}

	cmd.Flags().StringVar(&flags.input, "input", "", "JSONL file with one message per line")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "maximum in-flight sends (default from config)")
	cmd.Flags().StringVar(&flags.batchID, "batch-id", "", "stable batch identifier for resume (default: generated)")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "skip messages already processed for this batch ID")
	cmd.Flags().StringVar(&flags.state, "state", "sqlite", "progress store: sqlite or memory")
	cmd.Flags().StringVar(&flags.statePath, "state-path", "", "SQLite state file (default from config)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runBatchSend(cmd *cobra.Command, flags *batchSendFlags) error {
	if flags.resume && flags.batchID == "" {
		return fmt.Errorf("--resume requires --batch-id")
	}
	if flags.concurrency == 0 {
		flags.concurrency = config.GetGlobalConfig().Batch.Concurrency
	}
	batchID := flags.batchID
	if batchID == "" {
		batchID = strings.ToLower(ulid.Make().String())
	}

	messages, err := readMessageFile(flags.input)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("no messages in %s", flags.input)
	}

	store, closeStore, err := openStateStore(flags.state, flags.statePath)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	log := logging.FromContext(cmd.Context())
	engine := batch.NewEngine(store, logging.ComponentLogger(*log, "batch"))

	send := func(ctx context.Context, _ int, message *client.SendRequest) error {
		_, sendErr := api.Send(ctx, message)
		return sendErr
	}

	report, err := engine.Run(cmd.Context(), messages, send, batch.Options{
		BatchID:     batchID,
		Concurrency: flags.concurrency,
		Resume:      flags.resume,
	})
	if err != nil {
		return &BatchAbortError{Reason: err.Error()}
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, batchReportJSON{
			BatchID:        batchID,
			Total:          len(messages),
			Attempted:      report.Attempted,
			Succeeded:      report.Succeeded,
			Failed:         report.Failed,
			ThrottleEvents: report.ThrottleEvents,
		})
	}
	renderBatchReport(cmd.OutOrStdout(), batchID, len(messages), report)
	return nil
}

// batchReportJSON is the machine-readable shape of a batch run summary.
type batchReportJSON struct {
	BatchID        string `json:"batch_id"`
	Total          int    `json:"total"`
	Attempted      int    `json:"attempted"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	ThrottleEvents int    `json:"throttle_events"`
}

// NewBatchStatusCmd creates the batch status command for inspecting
// recorded per-message outcomes.
func NewBatchStatusCmd() *cobra.Command {
	var statePath string

	cmd := &cobra.Command{
		Use:     "status <batch-id>",
		Short:   "Show recorded outcomes for a batch",
		Args:    cobra.ExactArgs(1),
		Example: `  mailgoat batch status launch-2026`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openSQLiteStore(statePath)
			if err != nil {
				return err
			}
			defer closeStore()

			outcomes, err := store.Outcomes(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, outcomes)
			}
			renderBatchOutcomes(cmd.OutOrStdout(), args[0], outcomes)
			return nil
		},
	}

	cmd.Flags().StringVar(&statePath, "state-path", "", "SQLite state file (default from config)")
	return cmd
}

// NewBatchCleanupCmd creates the batch cleanup command for discarding
// recorded state after a batch fully completes.
func NewBatchCleanupCmd() *cobra.Command {
	var statePath string

	cmd := &cobra.Command{
		Use:     "cleanup <batch-id>",
		Short:   "Delete recorded state for a batch",
		Args:    cobra.ExactArgs(1),
		Example: `  mailgoat batch cleanup launch-2026`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openSQLiteStore(statePath)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.CleanupBatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Cleaned up batch %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&statePath, "state-path", "", "SQLite state file (default from config)")
	return cmd
}

// openStateStore opens the progress store named by kind.
func openStateStore(kind, statePath string) (batch.StateStore, func(), error) {
	switch kind {
	case "memory":
		return batch.NewMemoryStore(), func() {}, nil
	case "sqlite":
		return openSQLiteStore(statePath)
	default:
		return nil, nil, fmt.Errorf("unknown state store %q (want sqlite or memory)", kind)
	}
}

// openSQLiteStore opens the SQLite progress store, defaulting the path
// from configuration.
func openSQLiteStore(statePath string) (*batch.SQLiteStore, func(), error) {
	if statePath == "" {
		var err error
		statePath, err = config.GetGlobalConfig().BatchStatePath()
		if err != nil {
			return nil, nil, err
		}
		if err := config.EnsureConfigDir(); err != nil {
			return nil, nil, err
		}
	}

	store, err := batch.NewSQLiteStore(statePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("closing batch state store")
		}
	}, nil
}

// readMessageFile parses a JSONL file into send requests, validating each
// line so a malformed message is rejected before any send starts.
func readMessageFile(path string) ([]*client.SendRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch input: %w", err)
	}
	defer f.Close()

	var messages []*client.SendRequest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg client.SendRequest
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid message: %w", path, lineNo, err)
		}
		if err := msg.Validate(); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return messages, nil
}
