package syncer

import (
	"time"

	"tasksync/internal/service"
)

const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04"
	dateTimeLayout = "2006-01-02T15:04:05.0000000"
)

// ImportanceFor maps a local priority to remote importance.
// Unset priority is pushed as normal.
func ImportanceFor(p service.Priority) service.Importance {
	switch p {
	case service.PriorityHigh:
		return service.ImportanceHigh
	case service.PriorityLow:
		return service.ImportanceLow
	default:
		return service.ImportanceNormal
	}
}

// PriorityFor maps remote importance to a local priority.
// Normal importance comes back as no priority, so medium does not survive a round trip.
func PriorityFor(i service.Importance) service.Priority {
	switch i {
	case service.ImportanceHigh:
		return service.PriorityHigh
	case service.ImportanceLow:
		return service.PriorityLow
	default:
		return service.PriorityNone
	}
}

// StatusFor maps the local completed flag to a remote status.
func StatusFor(completed bool) service.Status {
	if completed {
		return service.StatusCompleted
	}
	return service.StatusNotStarted
}

// CompletedFor reports whether a remote status counts as completed locally.
func CompletedFor(s service.Status) bool {
	return s == service.StatusCompleted
}

// CombineDue joins a local due date and optional time-of-day into a remote date-time in loc.
// Without a time the due moment is local midnight. Returns nil when there is no valid date.
func CombineDue(date, clock string, loc *time.Location) *service.DateTimeZone {
	if date == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return nil
	}
	if clock != "" {
		if c, err := time.Parse(clockLayout, clock); err == nil {
			d = time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)
		}
	}
	return &service.DateTimeZone{
		DateTime: d.Format(dateTimeLayout),
		TimeZone: loc.String(),
	}
}

// SplitDue extracts the local due date from a remote date-time. The time of day is dropped.
func SplitDue(due *service.DateTimeZone) string {
	if due == nil || len(due.DateTime) < len(dateLayout) {
		return ""
	}
	date := due.DateTime[:len(dateLayout)]
	if _, err := time.Parse(dateLayout, date); err != nil {
		return ""
	}
	return date
}

// ToRemote translates a local task into the remote representation.
func ToRemote(t service.Task, loc *time.Location) service.RemoteTask {
	return service.RemoteTask{
		Title:      t.Title,
		Body:       t.Notes,
		Importance: ImportanceFor(t.Priority),
		Status:     StatusFor(t.Completed),
		Due:        CombineDue(t.DueDate, t.DueTime, loc),
	}
}

// ToLocal translates a remote task into fields for a new local task in listID.
func ToLocal(r service.RemoteTask, listID string) service.TaskFields {
	return service.TaskFields{
		ListID:    listID,
		Title:     r.Title,
		Notes:     r.Body,
		Priority:  PriorityFor(r.Importance),
		Completed: CompletedFor(r.Status),
		DueDate:   SplitDue(r.Due),
	}
}
