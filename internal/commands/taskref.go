package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tasksync/internal/service"
)

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// errOutOfRange is returned by findOpenTask when the number is past the end of the list.
var errOutOfRange = errors.New("task number out of range")

// ParseTaskRef parses the 1-based task number printed by the list command.
// Exactly one argument is accepted.
func ParseTaskRef(args []string) (int, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return 0, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("too many arguments: %s", strings.Join(args[1:], " "))
	}

	ref := args[0]
	for _, r := range ref {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid task reference: %s", ref)
		}
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid task reference: %s", ref)
	}
	if n < 1 {
		return 0, fmt.Errorf("task number out of range: %d", n)
	}
	return n, nil
}

// openTasks returns the local tasks that are not completed, in creation order.
func openTasks(ctx context.Context, store service.LocalStore) ([]service.Task, error) {
	all, err := store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	open := all[:0]
	for _, t := range all {
		if !t.Completed {
			open = append(open, t)
		}
	}
	return open, nil
}

// findOpenTask returns the n-th open task, numbered the way the list command prints them.
func findOpenTask(ctx context.Context, store service.LocalStore, n int) (service.Task, error) {
	open, err := openTasks(ctx, store)
	if err != nil {
		return service.Task{}, err
	}
	if n > len(open) {
		return service.Task{}, errOutOfRange
	}
	return open[n-1], nil
}
