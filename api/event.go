package api

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// CollectionEvent describes one first-time collection: the bolt index that
// was counted and the counter total after the increment. Repeat arrivals in
// the collected state do not produce events.
type CollectionEvent struct {
	ID    ulid.ULID
	Index int
	Total int32
	At    time.Time
}
