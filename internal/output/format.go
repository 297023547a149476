// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tasksync/internal/service"
)

// FormatTask writes one numbered task line.
// Format: "{N:>4}  {TITLE}" followed by "  !{priority}" and "  due {date} [{time}]" when set.
func FormatTask(w io.Writer, num int, task service.Task) {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d  %s", num, normalizeTitle(task.Title))
	if task.Priority != "" && task.Priority != service.PriorityNone {
		fmt.Fprintf(&b, "  !%s", task.Priority)
	}
	if task.DueDate != "" {
		fmt.Fprintf(&b, "  due %s", task.DueDate)
		if task.DueTime != "" {
			fmt.Fprintf(&b, " %s", task.DueTime)
		}
	}
	fmt.Fprintln(w, b.String())
}

// FormatDoneTask writes a completed task. It has no number since done and rm only address open tasks.
func FormatDoneTask(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "   x  %s\n", normalizeTitle(task.Title))
}

// FormatListName formats a list name for the lists command.
func FormatListName(w io.Writer, list service.RemoteList) {
	title := normalizeTitle(list.Name)
	if list.IsDefault {
		title += " [default]"
	}
	fmt.Fprintln(w, title)
}

// FormatSyncSummary writes the counters of a sync pass.
func FormatSyncSummary(w io.Writer, pulled, pushed int) {
	fmt.Fprintf(w, "pulled %d, pushed %d\n", pulled, pushed)
}

// FormatStatus writes the sync status block.
func FormatStatus(w io.Writer, last time.Time, hasSynced bool, tasks, lists int) {
	if hasSynced {
		fmt.Fprintf(w, "last sync: %s\n", last.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "last sync: never")
	}
	fmt.Fprintf(w, "mapped tasks: %d\n", tasks)
	fmt.Fprintf(w, "mapped lists: %d\n", lists)
}

// normalizeTitle flattens newlines and replaces blank titles with "(untitled)".
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
