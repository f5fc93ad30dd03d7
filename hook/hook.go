/*
 * Copyright 2025 Mobyhook Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hook

import (
	"encoding/binary"
	"fmt"

	"github.com/riftworks/mobyhook/api"
	"github.com/riftworks/mobyhook/pkg/moby"
)

// HookOptions carries the optional collaborators of a hook. A nil options
// struct (or nil fields) leaves the hook bare: state tracking and
// delegation only.
type HookOptions struct {
	// ByteOrder used to decode instance vars. Defaults to the host's
	// big-endian order.
	ByteOrder binary.ByteOrder
	// Events, when set, receives one CollectionEvent per first-time
	// collection.
	Events *Dispatcher
	// Metrics, when set, counts invocations per branch and collections.
	Metrics *Metrics
}

// GoldBoltHook tracks gold bolt collection. The host invokes OnUpdate once
// per tick per gold bolt moby; the hook reads the moby's lifecycle state
// and bolt index, updates the session's shared counter and flags table,
// and always hands the moby on to the host's original update handler.
type GoldBoltHook struct {
	session api.HostSession
	order   binary.ByteOrder
	events  *Dispatcher
	metrics *Metrics
}

var _ api.MobyHook = (*GoldBoltHook)(nil)

// NewGoldBoltHook builds a hook over session. opts may be nil.
func NewGoldBoltHook(session api.HostSession, opts *HookOptions) *GoldBoltHook {
	h := &GoldBoltHook{
		session: session,
		order:   binary.BigEndian,
	}
	if opts != nil {
		if opts.ByteOrder != nil {
			h.order = opts.ByteOrder
		}
		h.events = opts.Events
		h.metrics = opts.Metrics
	}
	return h
}

// OnUpdate runs the per-tick collection logic for m and then delegates to
// the host's original handler. Delegation happens exactly once per call,
// whichever branch runs and whether or not an error surfaces; errors report
// conditions the original host code would have crashed on (unreadable
// instance vars) or silently corrupted memory with (out-of-range index).
func (h *GoldBoltHook) OnUpdate(m *moby.Moby) (err error) {
	defer h.session.CallOriginal(m)

	index, err := h.boltIndex(m)
	if err != nil {
		h.count(branchError)
		return err
	}

	switch m.State {
	case moby.StateReset:
		h.count(branchReset)
		if cerr := h.session.ClearFlag(index); cerr != nil {
			return cerr
		}
		internalLogger.debugf("bolt %d reset", index)

	case moby.StateCollected:
		h.count(branchCollected)
		counted, cerr := h.session.CollectOnce(index)
		if cerr != nil {
			return cerr
		}
		if counted {
			h.onCollected(index)
		}

	default:
		h.count(branchPass)
	}
	return nil
}

// boltIndex resolves the moby's instance vars and returns its bolt index.
func (h *GoldBoltHook) boltIndex(m *moby.Moby) (int, error) {
	if m.PVars == 0 {
		return 0, fmt.Errorf("moby 0x%08X: %w", m.Addr, moby.ErrNilPVars)
	}
	raw := make([]byte, moby.GoldBoltVarsSize)
	if err := h.session.ReadAt(m.PVars, raw); err != nil {
		return 0, fmt.Errorf("moby 0x%08X: read vars at 0x%08X: %w", m.Addr, m.PVars, err)
	}
	vars, err := moby.DecodeGoldBoltVars(raw, h.order)
	if err != nil {
		return 0, err
	}
	return int(vars.Number), nil
}

func (h *GoldBoltHook) onCollected(index int) {
	if h.metrics != nil {
		h.metrics.Collections.Inc()
	}
	total := int32(-1)
	if t, err := h.session.Counter(); err == nil {
		total = t
	}
	internalLogger.infof("bolt %d collected, total %d", index, total)
	if h.events != nil {
		h.events.Emit(index, total)
	}
}

func (h *GoldBoltHook) count(branch string) {
	if h.metrics != nil {
		h.metrics.Invocations.WithLabelValues(branch).Inc()
	}
}
