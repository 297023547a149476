// Package service defines the backend-agnostic types and interfaces the sync engine works with.
package service

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the local priority of a task.
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string. Empty is treated as none.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityNone, nil
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority: %s", s)
	}
}

// Importance is the remote importance of a task.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// Status is the remote status of a task.
type Status string

const (
	StatusNotStarted      Status = "notStarted"
	StatusInProgress      Status = "inProgress"
	StatusCompleted       Status = "completed"
	StatusWaitingOnOthers Status = "waitingOnOthers"
	StatusDeferred        Status = "deferred"
)

// Task is a local task record.
type Task struct {
	ID        string
	ListID    string
	Title     string
	Notes     string
	Priority  Priority
	Completed bool
	DueDate   string // "2006-01-02", empty if unset
	DueTime   string // "15:04", empty if unset
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Fields returns the writable fields of t.
func (t Task) Fields() TaskFields {
	return TaskFields{
		ListID:    t.ListID,
		Title:     t.Title,
		Notes:     t.Notes,
		Priority:  t.Priority,
		Completed: t.Completed,
		DueDate:   t.DueDate,
		DueTime:   t.DueTime,
	}
}

// TaskFields holds the writable fields of a local task.
type TaskFields struct {
	ListID    string
	Title     string
	Notes     string
	Priority  Priority
	Completed bool
	DueDate   string
	DueTime   string
}

// DateTimeZone is a wall-clock date-time paired with an IANA or Windows timezone name.
type DateTimeZone struct {
	DateTime string // "2006-01-02T15:04:05.0000000"
	TimeZone string
}

// RemoteTask is a task as the remote service sees it.
type RemoteTask struct {
	ID           string
	Title        string
	Body         string
	Importance   Importance
	Status       Status
	Due          *DateTimeZone
	CompletedAt  *DateTimeZone
	LastModified time.Time
}

// RemoteList is a remote task list.
type RemoteList struct {
	ID        string
	Name      string
	IsDefault bool
}
