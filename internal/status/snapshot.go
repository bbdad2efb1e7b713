// internal/status/snapshot.go
package status

import "time"

// Snapshot is what the scheduler currently shows.
type Snapshot struct {
	State     State
	Animating bool
	Color     Color
	Since     time.Time
}
