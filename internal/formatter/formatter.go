// package formatter renders controller snapshots, engagement stats and replay results
// as text tables, JSON, Markdown or CSV
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

	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/pool"
	"github.com/desertthunder/reel/internal/shared"
	"github.com/desertthunder/reel/internal/tasks"
)

// Formats accepted by [Render].
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Render dispatches snap to the renderer for format. An empty format means text.
func Render(snap feed.Snapshot, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText, "txt":
		return SnapshotToText(snap)
	case FormatJSON:
		return SnapshotToJSON(snap)
	case FormatMarkdown, "md":
		return SnapshotToMarkdown(snap)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// SnapshotToJSON converts a snapshot to indented JSON.
func SnapshotToJSON(snap feed.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// SnapshotToText converts a snapshot to a summary line followed by a slot table.
func SnapshotToText(snap feed.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Position: %s\n", positionLabel(snap)))
	buf.WriteString(fmt.Sprintf("Window: %s  Scroll: %s  Visible: %t  Stopped: %t\n", snap.Window, snap.Scroll, snap.Visible, snap.Stopped))
	buf.WriteString(fmt.Sprintf("Decoders: %d/%d%s\n\n", snap.Live, snap.Capacity, degradedSuffix(snap)))

	t := table.New().Headers("POS", "STATE", "DECODER", "ITEM", "ERROR")
	for _, h := range snap.Slots {
		t.Row(slotRow(snap, h)...)
	}
	buf.WriteString(t.Render())
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// SnapshotToMarkdown converts a snapshot to a Markdown report.
func SnapshotToMarkdown(snap feed.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Feed\n\n")
	buf.WriteString(fmt.Sprintf("**Position**: %s\n", positionLabel(snap)))
	buf.WriteString(fmt.Sprintf("**Window**: %s\n", snap.Window))
	buf.WriteString(fmt.Sprintf("**Decoders**: %d/%d%s\n\n", snap.Live, snap.Capacity, degradedSuffix(snap)))

	buf.WriteString("## Slots\n\n")
	buf.WriteString("| Position | State | Decoder | Item | Error |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, h := range snap.Slots {
		buf.WriteString("| " + strings.Join(slotRow(snap, h), " | ") + " |\n")
	}

	if len(snap.History) > 0 {
		buf.WriteString("\n## History\n\n")
		for i, entry := range snap.History {
			buf.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, entry))
		}
	}

	return buf.Bytes(), nil
}

// ViewsToCSV converts view counts to CSV with columns: Item, Views, LastViewed
func ViewsToCSV(views []models.ViewCount) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Item", "Views", "LastViewed"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, v := range views {
		record := []string{v.ItemID, strconv.Itoa(v.Views), v.LastViewedAt.UTC().Format(time.RFC3339)}
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

// ItemsToText lists feed items one per line.
func ItemsToText(items []models.FeedItem) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Items: %d\n\n", len(items)))
	for _, item := range items {
		buf.WriteString(fmt.Sprintf("%d. %s  %s\n", item.Position, item.ID, item.MediaURI))
	}
	return buf.Bytes()
}

// ReplayToText summarises a replay result.
func ReplayToText(result *tasks.ReplayResult) []byte {
	var buf bytes.Buffer

	status := "PASS"
	if !result.Passed() {
		status = "FAIL"
	}
	name := result.Name
	if name == "" {
		name = "replay"
	}
	buf.WriteString(fmt.Sprintf("%s %s: %d steps, %d checks, %d failed (%s)\n",
		status, name, result.Steps, result.Checks, len(result.Failures), result.Elapsed.Round(time.Millisecond)))

	for _, f := range result.Failures {
		buf.WriteString(fmt.Sprintf("  step %d: %s\n", f.Step, f.Message))
	}
	return buf.Bytes()
}

// WriteSnapshot renders snap in format and writes it to path.
func WriteSnapshot(snap feed.Snapshot, format, path string) error {
	data, err := Render(snap, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func slotRow(snap feed.Snapshot, h pool.Handle) []string {
	marker := ""
	if h.Position == snap.Current {
		marker = "*"
	}
	if h.Position == snap.Attached {
		marker += "@"
	}

	item := ""
	if it, ok := snap.Item(h.Position); ok {
		item = it.ID
	}

	errText := ""
	if h.Err != nil {
		errText = h.Err.Kind.String()
	}
	if h.State == models.Error && h.PosterURI != "" {
		errText = strings.TrimSpace(errText + " poster " + h.PosterURI)
	}

	return []string{
		strconv.Itoa(h.Position) + marker,
		h.State.String(),
		shared.ShortID(h.DecoderID),
		item,
		errText,
	}
}

func positionLabel(snap feed.Snapshot) string {
	if snap.Length == 0 {
		return "empty feed"
	}
	if snap.CurrentID == "" {
		return fmt.Sprintf("%d/%d", snap.Current, snap.Length)
	}
	return fmt.Sprintf("%d/%d (%s)", snap.Current, snap.Length, snap.CurrentID)
}

func degradedSuffix(snap feed.Snapshot) string {
	if snap.Degraded {
		return "  [degraded: prefetch off]"
	}
	return ""
}
