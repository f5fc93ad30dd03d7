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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftworks/mobyhook/api"
	"github.com/riftworks/mobyhook/pkg/moby"
)

type recordingListener struct {
	mu     sync.Mutex
	events []api.CollectionEvent
}

func (l *recordingListener) OnCollected(ev api.CollectionEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *recordingListener) snapshot() []api.CollectionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]api.CollectionEvent, len(l.events))
	copy(out, l.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDispatcherDelivers(t *testing.T) {
	d, err := NewDispatcher(2)
	require.Nil(t, err)
	defer d.Close()

	first := &recordingListener{}
	second := &recordingListener{}
	d.Subscribe(first)
	d.Subscribe(second)

	d.Emit(5, 1)
	d.Emit(6, 2)

	waitFor(t, func() bool {
		return len(first.snapshot()) == 2 && len(second.snapshot()) == 2
	})

	got := first.snapshot()
	assert.Equal(t, 5, got[0].Index)
	assert.Equal(t, int32(1), got[0].Total)
	assert.Equal(t, 6, got[1].Index)
	assert.Equal(t, int32(2), got[1].Total)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.False(t, got[0].At.IsZero())
}

func TestDispatcherHookIntegration(t *testing.T) {
	d, err := NewDispatcher(0)
	require.Nil(t, err)
	defer d.Close()

	l := &recordingListener{}
	d.Subscribe(l)

	host := newMockHost(40)
	host.putVars(0x00500100, 4)
	h := NewGoldBoltHook(host, &HookOptions{Events: d})

	m := &moby.Moby{Addr: 0x00500000, State: moby.StateCollected, PVars: 0x00500100, Type: 0x92}
	require.Nil(t, h.OnUpdate(m))
	// Second arrival is idempotent: no second event.
	require.Nil(t, h.OnUpdate(m))

	waitFor(t, func() bool { return len(l.snapshot()) == 1 })
	got := l.snapshot()
	assert.Equal(t, 4, got[0].Index)
	assert.Equal(t, int32(1), got[0].Total)
}
