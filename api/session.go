// Package api defines the public contracts of mobyhook: the capability
// surface a host session must provide, and the hook/listener interfaces
// built on top of it.
package api

import "github.com/riftworks/mobyhook/pkg/moby"

// HostSession is the capability surface the host process exposes to hooks:
// the shared collection counter, the per-index collected-flags table, raw
// guest-memory reads, and delegation to the host's original update handler.
//
// All collectible hooks attached to one host must share a single
// HostSession so the counter stays a single process-wide total.
type HostSession interface {
	// Counter returns the running total of collectibles gathered this
	// session.
	Counter() (int32, error)

	// CollectOnce marks index collected if it is not already: when the flag
	// is clear it increments the counter and sets the flag, returning true.
	// A set flag is a no-op returning false, so repeated arrivals in the
	// collected state never double-count.
	CollectOnce(index int) (bool, error)

	// Flag returns the collected-flag byte for index.
	Flag(index int) (byte, error)

	// ClearFlag resets the collected flag for index, re-arming CollectOnce.
	ClearFlag(index int) error

	// ReadAt reads len(buf) bytes of host memory starting at guest address
	// addr. Used to resolve instance-vars pointers.
	ReadAt(addr uint32, buf []byte) error

	// CallOriginal invokes the host's original update handler for m. Hooks
	// must call it exactly once per invocation, after their own logic.
	CallOriginal(m *moby.Moby)

	// Ping verifies the host memory is still reachable.
	Ping() error

	// Close releases the session's hold on host memory.
	Close() error
}

// MobyHook is one per-type update hook. The host (or the Registry on its
// behalf) invokes OnUpdate once per tick per attached moby.
type MobyHook interface {
	OnUpdate(m *moby.Moby) error
}

// EventListener receives collection events from a hook's dispatcher.
type EventListener interface {
	OnCollected(ev CollectionEvent)
}
