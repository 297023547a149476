// Package mapping persists the correspondence between local and remote identifiers
// together with the time of the last successful sync pass.
package mapping

import (
	"fmt"
	"time"
)

// Mapping is the full set of identity correspondences.
type Mapping struct {
	// Tasks maps local task ids to remote task ids.
	Tasks map[string]string `yaml:"tasks"`

	// Lists maps local list keys to remote list ids.
	Lists map[string]string `yaml:"lists"`
}

// New returns an empty mapping with non-nil maps.
func New() Mapping {
	return Mapping{
		Tasks: make(map[string]string),
		Lists: make(map[string]string),
	}
}

// Clone returns a deep copy of m. Nil maps become empty maps.
func (m Mapping) Clone() Mapping {
	c := New()
	for k, v := range m.Tasks {
		c.Tasks[k] = v
	}
	for k, v := range m.Lists {
		c.Lists[k] = v
	}
	return c
}

// RemoteToLocal builds the reverse task index.
func (m Mapping) RemoteToLocal() map[string]string {
	idx := make(map[string]string, len(m.Tasks))
	for localID, remoteID := range m.Tasks {
		idx[remoteID] = localID
	}
	return idx
}

// Validate checks that no entry is blank and no remote task id is claimed by two local ids.
func (m Mapping) Validate() error {
	seen := make(map[string]string, len(m.Tasks))
	for localID, remoteID := range m.Tasks {
		if localID == "" || remoteID == "" {
			return fmt.Errorf("blank task mapping: %q -> %q", localID, remoteID)
		}
		if other, ok := seen[remoteID]; ok {
			return fmt.Errorf("remote task %s mapped by both %s and %s", remoteID, other, localID)
		}
		seen[remoteID] = localID
	}
	for localID, remoteID := range m.Lists {
		if localID == "" || remoteID == "" {
			return fmt.Errorf("blank list mapping: %q -> %q", localID, remoteID)
		}
	}
	return nil
}

// ClearStats reports what a Clear removed.
type ClearStats struct {
	Tasks int
	Lists int
}

// Store is durable storage for a Mapping and the sync cursor.
type Store interface {
	// GetMapping returns the mapping as of the last successful save.
	GetMapping() (Mapping, error)

	// GetLastSyncTime returns the cursor, or false if no pass has ever been saved.
	GetLastSyncTime() (time.Time, bool, error)

	// SaveMapping atomically replaces the mapping and the cursor.
	SaveMapping(m Mapping, lastSync time.Time) error

	// Clear forgets all mappings and the cursor. Task data is not touched.
	Clear() (ClearStats, error)
}
