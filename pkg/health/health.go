// Package health exposes liveness and readiness checks for an attached
// host session.
package health

import (
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/riftworks/mobyhook/api"
)

// NewHandler builds a healthcheck handler over session. Liveness fails
// when the host's tracked state stops being readable (segment unmapped,
// session closed); readiness polls the same probe in the background so a
// wedged host does not stall scrapes.
func NewHandler(session api.HostSession) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("host-memory", func() error {
		return session.Ping()
	})
	h.AddReadinessCheck("host-memory", healthcheck.Async(func() error {
		return session.Ping()
	}, 5*time.Second))
	h.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(1000))
	return h
}
