package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mailgoat/mailgoat/internal/batch"
	"github.com/mailgoat/mailgoat/internal/client"
)

// Rendering constants.
const (
	subjectColumnWidth = 40
	fromColumnWidth    = 28
	receivedTimeFormat = "2006-01-02 15:04"
)

// Styles for human-readable output.
//
//nolint:gochecknoglobals // lipgloss styles are immutable value types
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unreadStyle  = lipgloss.NewStyle().Bold(true)
)

// numPrinter formats counts with locale-aware grouping (1,234).
var numPrinter = message.NewPrinter(language.English) //nolint:gochecknoglobals

// renderSendResult prints the outcome of a single send.
func renderSendResult(w io.Writer, result *client.SendResult) {
	fmt.Fprintf(w, "%s %s\n", successStyle.Render("Sent"), result.MessageID)
	for addr, handle := range result.Recipients {
		fmt.Fprintf(w, "  %s %s\n", addr, dimStyle.Render(fmt.Sprintf("(delivery %d)", handle.ID)))
	}
}

// renderMessage prints a fetched message in full.
func renderMessage(w io.Writer, msg *client.Message) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("From:"), msg.From)
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("To:"), strings.Join(msg.To, ", "))
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Subject:"), msg.Subject)
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Received:"), msg.ReceivedAt.Format(receivedTimeFormat))
	if msg.Tag != "" {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Tag:"), msg.Tag)
	}
	fmt.Fprintln(w)
	if msg.TextBody != "" {
		fmt.Fprintln(w, msg.TextBody)
	} else if msg.HTMLBody != "" {
		fmt.Fprintln(w, msg.HTMLBody)
	}
}

// renderInbox prints inbox entries as an aligned table, unread rows bold.
func renderInbox(w io.Writer, entries []client.InboxEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Inbox is empty")
		return
	}

	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		headerStyle.Render(pad("ID", 12)),
		headerStyle.Render(pad("FROM", fromColumnWidth)),
		headerStyle.Render(pad("SUBJECT", subjectColumnWidth)),
		headerStyle.Render("RECEIVED"),
	)
	for _, entry := range entries {
		row := fmt.Sprintf("%s  %s  %s  %s",
			pad(entry.ID, 12),
			pad(truncate(entry.From, fromColumnWidth), fromColumnWidth),
			pad(truncate(entry.Subject, subjectColumnWidth), subjectColumnWidth),
			entry.ReceivedAt.Format(receivedTimeFormat),
		)
		if entry.Unread {
			row = unreadStyle.Render(row)
		}
		fmt.Fprintln(w, row)
	}
	fmt.Fprintln(w)
	numPrinter.Fprintf(w, "%d message(s)\n", len(entries))
}

// renderBatchReport prints the summary of a batch run.
func renderBatchReport(w io.Writer, batchID string, total int, report *batch.Report) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Batch:"), batchID)
	numPrinter.Fprintf(w, "  Total:     %d\n", total)
	numPrinter.Fprintf(w, "  Attempted: %d\n", report.Attempted)
	numPrinter.Fprintf(w, "  Succeeded: %s\n", successStyle.Render(numPrinter.Sprintf("%d", report.Succeeded)))
	if report.Failed > 0 {
		numPrinter.Fprintf(w, "  Failed:    %s\n", failureStyle.Render(numPrinter.Sprintf("%d", report.Failed)))
	} else {
		numPrinter.Fprintf(w, "  Failed:    %d\n", report.Failed)
	}
	if report.ThrottleEvents > 0 {
		numPrinter.Fprintf(w, "  %s %s\n",
			warnStyle.Render("Throttled:"),
			numPrinter.Sprintf("%d rate-limit event(s), concurrency was reduced", report.ThrottleEvents),
		)
	}
	if skipped := total - report.Attempted; skipped > 0 {
		numPrinter.Fprintf(w, "  Skipped:   %d (already processed)\n", skipped)
	}
}

// renderBatchOutcomes prints recorded per-message outcomes for a batch.
func renderBatchOutcomes(w io.Writer, batchID string, outcomes []batch.ItemOutcome) {
	if len(outcomes) == 0 {
		fmt.Fprintf(w, "No recorded outcomes for batch %s\n", batchID)
		return
	}

	fmt.Fprintf(w, "%s  %s  %s\n",
		headerStyle.Render(pad("INDEX", 6)),
		headerStyle.Render(pad("STATUS", 7)),
		headerStyle.Render("ERROR"),
	)
	sent := 0
	for _, outcome := range outcomes {
		status := successStyle.Render(pad(string(outcome.Status), 7))
		if outcome.Status == batch.StatusFailed {
			status = failureStyle.Render(pad(string(outcome.Status), 7))
		} else {
			sent++
		}
		fmt.Fprintf(w, "%s  %s  %s\n", pad(fmt.Sprintf("%d", outcome.Index), 6), status, outcome.Error)
	}
	fmt.Fprintln(w)
	numPrinter.Fprintf(w, "%d recorded, %d sent, %d failed\n", len(outcomes), sent, len(outcomes)-sent)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
