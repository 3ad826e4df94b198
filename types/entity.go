// Package types provides small value types shared across iap packages.
package types

import "time"

// Entity carries the creation timestamp of a persisted value.
type Entity struct {
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewEntity creates a new Entity stamped with the current time.
func NewEntity() Entity {
	return Entity{CreatedAt: time.Now().UTC()}
}

// Age returns how long ago the entity was created. A zero CreatedAt (for
// values persisted before timestamps were recorded) reports zero.
func (e Entity) Age() time.Duration {
	if e.CreatedAt.IsZero() {
		return 0
	}
	return time.Since(e.CreatedAt)
}

// IsStale returns true if the entity is older than d.
func (e Entity) IsStale(d time.Duration) bool {
	return e.Age() > d
}
