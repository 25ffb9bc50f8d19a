// package formatter renders transfer listings, session history and session status as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mediasync/internal/models"
	"github.com/desertthunder/mediasync/internal/session"
	"github.com/desertthunder/mediasync/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
)

// ParseFormat accepts the format names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text", "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// Ext returns the file extension for exports in this format.
func (f Format) Ext() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

// RenderTransfers encodes a transfer listing in the requested format.
func RenderTransfers(transfers []models.Transfer, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return json.MarshalIndent(transfers, "", "  ")
	case CSV:
		return TransfersToCSV(transfers)
	case Markdown:
		return TransfersToMarkdown(transfers), nil
	default:
		return TransfersToText(transfers), nil
	}
}

// TransfersToCSV converts transfers to CSV with columns: ID, Source, Destination, Status, Progress, Bytes, Started
func TransfersToCSV(transfers []models.Transfer) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Source", "Destination", "Status", "Progress", "Bytes", "Started"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range transfers {
		record := []string{
			t.ID,
			t.Source,
			t.Destination,
			string(t.Status),
			strconv.FormatFloat(t.Progress, 'f', 1, 64),
			strconv.FormatInt(t.BytesTransferred, 10),
			formatTime(t.StartedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// TransfersToMarkdown renders transfers as a Markdown table.
func TransfersToMarkdown(transfers []models.Transfer) []byte {
	var buf bytes.Buffer

	active := 0
	for _, t := range transfers {
		if t.Status.Active() {
			active++
		}
	}

	buf.WriteString("# Transfers\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %d\n", len(transfers)))
	buf.WriteString(fmt.Sprintf("**Active**: %d\n\n", active))

	if len(transfers) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| Source | Destination | Status | Progress | Transferred |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, t := range transfers {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %.1f%% | %s |\n",
			escapeCell(t.Source), escapeCell(t.Destination), t.Status, t.Progress, shared.FormatBytes(t.BytesTransferred)))
	}

	return buf.Bytes()
}

// TransfersToText renders one line per transfer.
func TransfersToText(transfers []models.Transfer) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Transfers: %d\n\n", len(transfers)))
	for i, t := range transfers {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s -> %s %.1f%%", i+1, t.Status, t.Source, t.Destination, t.Progress))
		if t.Message != "" {
			buf.WriteString(" (" + t.Message + ")")
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

type historyRow struct {
	Sequence         int       `json:"sequence"`
	SessionID        string    `json:"session_id"`
	State            string    `json:"state"`
	Reason           string    `json:"reason,omitempty"`
	Detail           string    `json:"detail,omitempty"`
	MinutesRemaining int       `json:"minutes_remaining,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toHistoryRows(events []*models.SessionEvent) []historyRow {
	rows := make([]historyRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, historyRow{
			Sequence:         e.Sequence(),
			SessionID:        e.SessionID(),
			State:            e.State(),
			Reason:           e.Reason(),
			Detail:           e.Detail(),
			MinutesRemaining: e.MinutesRemaining(),
			CreatedAt:        e.CreatedAt(),
		})
	}
	return rows
}

// RenderHistory encodes session history in the requested format.
func RenderHistory(events []*models.SessionEvent, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return json.MarshalIndent(toHistoryRows(events), "", "  ")
	case CSV:
		return HistoryToCSV(events)
	case Markdown:
		return HistoryToMarkdown(events), nil
	default:
		return HistoryToText(events), nil
	}
}

// HistoryToCSV converts session history to CSV with columns: Sequence, Session, State, Reason, Detail, Minutes, Time
func HistoryToCSV(events []*models.SessionEvent) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "Session", "State", "Reason", "Detail", "Minutes", "Time"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range toHistoryRows(events) {
		record := []string{
			strconv.Itoa(row.Sequence),
			row.SessionID,
			row.State,
			row.Reason,
			row.Detail,
			strconv.Itoa(row.MinutesRemaining),
			formatTime(row.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown renders session history as a Markdown list grouped by session.
func HistoryToMarkdown(events []*models.SessionEvent) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Session History\n\n")
	buf.WriteString(fmt.Sprintf("**Events**: %d\n\n", len(events)))

	current := ""
	for _, row := range toHistoryRows(events) {
		if row.SessionID != current {
			current = row.SessionID
			buf.WriteString(fmt.Sprintf("## %s\n\n", current))
		}
		buf.WriteString(fmt.Sprintf("- `%s` **%s**", formatTime(row.CreatedAt), row.State))
		if row.Reason != "" {
			buf.WriteString(fmt.Sprintf(" (%s)", row.Reason))
		}
		if row.Detail != "" {
			buf.WriteString(": " + row.Detail)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// HistoryToText renders one line per session event.
func HistoryToText(events []*models.SessionEvent) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Session events: %d\n\n", len(events)))
	for _, row := range toHistoryRows(events) {
		line := fmt.Sprintf("#%d %s %-17s", row.Sequence, formatTime(row.CreatedAt), row.State)
		if row.Reason != "" {
			line += " reason=" + row.Reason
		}
		if row.MinutesRemaining > 0 {
			line += " minutes=" + strconv.Itoa(row.MinutesRemaining)
		}
		if row.Detail != "" {
			line += " " + row.Detail
		}
		buf.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	return buf.Bytes()
}

// StatusToText renders a status snapshot for the terminal.
func StatusToText(s session.Status) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("State:   %s\n", s.State))
	buf.WriteString(fmt.Sprintf("Timeout: %s\n", shared.FormatMinutes(s.TimeoutMinutes)))

	if s.State == session.Connected {
		buf.WriteString(fmt.Sprintf("Idle disconnect in: %s\n", shared.FormatMinutes(s.MinutesRemaining)))
		if s.Protected {
			buf.WriteString("Active transfers are keeping the session open\n")
		}
		if s.Warning {
			buf.WriteString("Warning: the session will disconnect soon\n")
		}
	}
	if s.SessionID != "" {
		buf.WriteString(fmt.Sprintf("Session: %s\n", s.SessionID))
	}
	if s.Unexpected {
		buf.WriteString("Connection was lost unexpectedly\n")
	}
	if s.Err != nil {
		buf.WriteString(fmt.Sprintf("Error:   %v\n", s.Err))
	}

	return buf.Bytes()
}

// WriteExport writes rendered data to path, defaulting to {base}.{ext} in the working directory.
func WriteExport(data []byte, path, base string, f Format) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.%s", base, f.Ext())
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
