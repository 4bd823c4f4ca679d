package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rshade/bulkops/internal/bulk"
)

// maxListedFailures bounds the failures printed under a summary.
const maxListedFailures = 10

// ProgressLine renders a snapshot as a single plain-text line, for
// non-interactive output.
func ProgressLine(p bulk.Progress) string {
	line := fmt.Sprintf("[%s/%s] ok=%s failed=%s",
		FormatCount(p.Done()), FormatCount(p.Total), FormatCount(p.Completed), FormatCount(p.Failed))
	if p.CurrentItemLabel != "" {
		line += " item=" + p.CurrentItemLabel
	}
	return line
}

// RenderSummary renders the outcome of a run. labels, when non-nil, names
// failed items by input position.
func RenderSummary(summary bulk.Summary, failures []bulk.Failure, labels []string, elapsed time.Duration) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("BULK RUN COMPLETE"))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Total:      "), FormatCount(summary.Total))
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Succeeded:  "), SuccessStyle.Render(FormatCount(summary.Succeeded)))

	failed := FormatCount(summary.Failed)
	if summary.Failed > 0 {
		failed = FailureStyle.Render(failed)
	}
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Failed:     "), failed)
	fmt.Fprintf(&b, "%s %.2f%%\n", LabelStyle.Render("Success:    "), summary.SuccessRate)
	fmt.Fprintf(&b, "%s %s", LabelStyle.Render("Elapsed:    "), elapsed.Round(time.Millisecond))

	if len(failures) > 0 {
		b.WriteString("\n\n")
		b.WriteString(HeaderStyle.Render("FAILURES"))
		for i, f := range failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "\n%s", MutedStyle.Render(fmt.Sprintf("... and %d more", len(failures)-maxListedFailures)))
				break
			}
			fmt.Fprintf(&b, "\n- %s: %s", itemName(f.Index, labels), f.Message)
		}
	}

	return BoxStyle.Render(b.String())
}

func itemName(index int, labels []string) string {
	if index >= 0 && index < len(labels) {
		return labels[index]
	}
	return fmt.Sprintf("#%d", index+1)
}
