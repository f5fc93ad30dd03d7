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
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/oklog/ulid/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/riftworks/mobyhook/api"
)

const defaultDispatchWorkers = 4

// Dispatcher fans collection events out to listeners off the hook path.
// Emit only stages the event; a pump goroutine drains the queue and
// delivers on a worker pool, so the host's update tick never waits on a
// listener.
type Dispatcher struct {
	q    *queuepkg.Queue
	pool *ants.Pool

	mu        sync.RWMutex
	listeners []api.EventListener

	wg sync.WaitGroup
}

// NewDispatcher starts a dispatcher with the given worker count; zero or
// negative picks the default.
func NewDispatcher(workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		q:    queuepkg.New(64),
		pool: pool,
	}
	d.wg.Add(1)
	go d.pump()
	return d, nil
}

// Subscribe adds a listener. Listeners added after an event was staged may
// or may not see it.
func (d *Dispatcher) Subscribe(l api.EventListener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Emit stages one collection event for index with the counter total after
// the increment.
func (d *Dispatcher) Emit(index int, total int32) {
	ev := api.CollectionEvent{
		ID:    ulid.Make(),
		Index: index,
		Total: total,
		At:    time.Now(),
	}
	if err := d.q.Put(ev); err != nil {
		internalLogger.warnf("dispatcher: drop event %s: %s", ev.ID.String(), err.Error())
	}
}

// Close stops the pump, waits for in-flight deliveries and releases the
// pool. Staged but undelivered events are dropped.
func (d *Dispatcher) Close() {
	d.q.Dispose()
	d.wg.Wait()
	d.pool.Release()
}

func (d *Dispatcher) pump() {
	defer d.wg.Done()
	for {
		items, err := d.q.Get(1)
		if err != nil {
			// Disposed: dispatcher is closing.
			return
		}
		for _, item := range items {
			ev, ok := item.(api.CollectionEvent)
			if !ok {
				continue
			}
			d.deliver(ev)
		}
	}
}

func (d *Dispatcher) deliver(ev api.CollectionEvent) {
	d.mu.RLock()
	listeners := make([]api.EventListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	var pending sync.WaitGroup
	for _, l := range listeners {
		l := l
		pending.Add(1)
		if err := d.pool.Submit(func() {
			defer pending.Done()
			l.OnCollected(ev)
		}); err != nil {
			pending.Done()
			internalLogger.warnf("dispatcher: submit failed: %s", err.Error())
		}
	}
	pending.Wait()
}
