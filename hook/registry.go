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

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/riftworks/mobyhook/api"
	"github.com/riftworks/mobyhook/pkg/moby"
)

// Registry routes raw moby records to the hook registered for their type.
// All routed hooks observe the same session, which keeps the collection
// counter a single shared total across collectible types.
type Registry struct {
	order binary.ByteOrder
	hooks cmap.ConcurrentMap[uint16, api.MobyHook]
}

// NewRegistry builds an empty registry decoding records with order.
func NewRegistry(order binary.ByteOrder) *Registry {
	if order == nil {
		order = binary.BigEndian
	}
	return &Registry{
		order: order,
		hooks: cmap.NewWithCustomShardingFunction[uint16, api.MobyHook](
			func(key uint16) uint32 { return uint32(key) },
		),
	}
}

// Register attaches h to mobies of the given type.
func (r *Registry) Register(mobyType uint16, h api.MobyHook) error {
	if !r.hooks.SetIfAbsent(mobyType, h) {
		return fmt.Errorf("%w: type %d", ErrHookExists, mobyType)
	}
	internalLogger.infof("hook registered for moby type %d", mobyType)
	return nil
}

// Hook returns the hook registered for mobyType, if any.
func (r *Registry) Hook(mobyType uint16) (api.MobyHook, bool) {
	return r.hooks.Get(mobyType)
}

// Dispatch decodes one raw moby record read from guest address addr and
// invokes the matching hook. Records with no registered hook are left to
// the host and return handled == false.
func (r *Registry) Dispatch(raw []byte, addr uint32) (handled bool, err error) {
	m, err := moby.Decode(raw, addr, r.order)
	if err != nil {
		return false, err
	}
	h, ok := r.hooks.Get(m.Type)
	if !ok {
		return false, nil
	}
	return true, h.OnUpdate(m)
}
