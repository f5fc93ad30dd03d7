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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftworks/mobyhook/internal/hostmem"
	"github.com/riftworks/mobyhook/pkg/moby"
)

// testSessionConf lays tracked state out in a small heap-backed window, no
// mmap involved.
func testSessionConf() *Config {
	conf := DefaultConfig()
	conf.MemBase = 0x00AF0000
	conf.MemSize = 1 << 16
	return conf
}

func testSession(t *testing.T, conf *Config, original OriginalHandler) (*Session, *hostmem.Memory) {
	t.Helper()
	mem := hostmem.NewMemory(conf.MemBase, make([]byte, conf.MemSize))
	s, err := newSession(conf, mem, original)
	require.Nil(t, err)
	return s, mem
}

func TestSessionCounter(t *testing.T) {
	conf := testSessionConf()
	s, mem := testSession(t, conf, nil)

	total, err := s.Counter()
	require.Nil(t, err)
	assert.Equal(t, int32(0), total)

	// Host-written value comes back through the configured byte order.
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], 37)
	require.Nil(t, mem.WriteAt(conf.CounterAddr, raw[:]))
	total, err = s.Counter()
	require.Nil(t, err)
	assert.Equal(t, int32(37), total)
}

func TestSessionCollectOnce(t *testing.T) {
	conf := testSessionConf()
	s, mem := testSession(t, conf, nil)

	counted, err := s.CollectOnce(5)
	require.Nil(t, err)
	assert.True(t, counted)

	counted, err = s.CollectOnce(5)
	require.Nil(t, err)
	assert.False(t, counted)

	total, err := s.Counter()
	require.Nil(t, err)
	assert.Equal(t, int32(1), total)

	flag, err := s.Flag(5)
	require.Nil(t, err)
	assert.Equal(t, byte(1), flag)

	// The stored counter is big-endian in guest memory.
	var raw [4]byte
	require.Nil(t, mem.ReadAt(conf.CounterAddr, raw[:]))
	assert.Equal(t, [4]byte{0, 0, 0, 1}, raw)

	require.Nil(t, s.ClearFlag(5))
	counted, err = s.CollectOnce(5)
	require.Nil(t, err)
	assert.True(t, counted)
	total, _ = s.Counter()
	assert.Equal(t, int32(2), total)
}

func TestSessionIndexBounds(t *testing.T) {
	conf := testSessionConf()
	s, _ := testSession(t, conf, nil)

	for _, index := range []int{-1, conf.FlagsCapacity, conf.FlagsCapacity + 100} {
		_, err := s.CollectOnce(index)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = s.Flag(index)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.ErrorIs(t, s.ClearFlag(index), ErrIndexOutOfRange)
	}
	// The boundary index itself is fine.
	_, err := s.CollectOnce(conf.FlagsCapacity - 1)
	assert.Nil(t, err)
}

func TestSessionConcurrentCollect(t *testing.T) {
	conf := testSessionConf()
	conf.ConcurrentUpdates = true
	s, _ := testSession(t, conf, nil)

	const workers = 16
	var wg sync.WaitGroup
	counted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CollectOnce(9)
			assert.Nil(t, err)
			counted <- ok
		}()
	}
	wg.Wait()
	close(counted)

	wins := 0
	for ok := range counted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	total, err := s.Counter()
	require.Nil(t, err)
	assert.Equal(t, int32(1), total)
}

func TestSessionDelegation(t *testing.T) {
	conf := testSessionConf()
	var delegated []*moby.Moby
	s, _ := testSession(t, conf, func(m *moby.Moby) {
		delegated = append(delegated, m)
	})

	m := &moby.Moby{Addr: 0x1234, Type: 0x92}
	s.CallOriginal(m)
	require.Len(t, delegated, 1)
	assert.Same(t, m, delegated[0])

	// Nil handler is a no-op, not a crash.
	s2, _ := testSession(t, conf, nil)
	s2.CallOriginal(m)
}

func TestSessionClosed(t *testing.T) {
	conf := testSessionConf()
	s, _ := testSession(t, conf, nil)
	require.Nil(t, s.Close())
	// Closing twice stays quiet.
	require.Nil(t, s.Close())

	_, err := s.Counter()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.CollectOnce(0)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.ClearFlag(0), ErrSessionClosed)
	assert.ErrorIs(t, s.Ping(), ErrSessionClosed)
}

func TestSessionWindowTooSmall(t *testing.T) {
	conf := testSessionConf()
	mem := hostmem.NewMemory(conf.MemBase, make([]byte, 16))
	_, err := newSession(conf, mem, nil)
	assert.ErrorIs(t, err, ErrHostMemoryTooSmall)
}
