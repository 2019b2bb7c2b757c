// Package tracker keeps a recency-ordered record of which devices have
// been seen and when, surviving restarts via a JSON file.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Status is one device's most recent sighting.
type Status struct {
	MeshID   string `json:"mesh_id"`
	Name     string `json:"name"`
	LastSeen int64  `json:"last_seen"`
	// Shared marks sightings that arrived over the peer network rather
	// than directly off the mesh.
	Shared bool `json:"shared_with_us"`
}

// Queue is a bounded list of device sightings, newest first. One entry per
// mesh id; re-sighting a device replaces its entry.
type Queue struct {
	mu      sync.Mutex
	entries []Status
	maxSize int
}

func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Queue{maxSize: maxSize}
}

// Add records a sighting, evicting the oldest entry when full.
func (q *Queue) Add(st Status) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.MeshID != st.MeshID {
			kept = append(kept, e)
		}
	}
	q.entries = append(kept, st)

	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].LastSeen > q.entries[j].LastSeen
	})
	if len(q.entries) > q.maxSize {
		q.entries = q.entries[:q.maxSize]
	}
}

// Entries returns a copy of the queue, newest first.
func (q *Queue) Entries() []Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Status, len(q.entries))
	copy(out, q.entries)
	return out
}

// Save writes the queue to path as JSON.
func (q *Queue) Save(path string) error {
	q.mu.Lock()
	data, err := json.Marshal(q.entries)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("tracker: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tracker: save %s: %w", path, err)
	}
	return nil
}

// Load merges previously saved sightings from path. A missing file is not
// an error; the queue just starts empty.
func (q *Queue) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tracker: load %s: %w", path, err)
	}
	var entries []Status
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("tracker: decode %s: %w", path, err)
	}
	for _, e := range entries {
		q.Add(e)
	}
	return nil
}

// FormatEntry renders the nth newest sighting as a short display string:
// the last four id characters, a star for shared sightings, and the age in
// seconds ("xx" past 99).
func (q *Queue) FormatEntry(n int, now time.Time) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 0 || n >= len(q.entries) {
		return ""
	}
	e := q.entries[n]

	id := e.MeshID
	if len(id) > 4 {
		id = id[len(id)-4:]
	}
	if e.Shared {
		id += "*"
	}

	latency := now.Unix() - e.LastSeen
	if latency >= 100 {
		return fmt.Sprintf("%s xx", id)
	}
	return fmt.Sprintf("%s %d", id, latency)
}
