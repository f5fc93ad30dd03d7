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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/riftworks/mobyhook/api"
	"github.com/riftworks/mobyhook/internal/hostmem"
	"github.com/riftworks/mobyhook/pkg/moby"
)

var _ api.HostSession = (*Session)(nil)

// OriginalHandler is the host's original per-type update routine. The
// session invokes it on delegation and ignores any result, matching the
// host's void entry point.
type OriginalHandler func(m *moby.Moby)

// Session is the memory-backed HostSession: it serves the collection
// counter and flags table out of the host's exported guest RAM and
// delegates updates to the injected original handler.
//
// Every collectible hook sharing a host must share one Session, so the
// counter stays a single process-wide total across sibling hook types.
type Session struct {
	conf     *Config
	mem      *hostmem.Memory
	region   *hostmem.Region
	original OriginalHandler

	// mu serializes counter/flag updates when the host drives object
	// updates from one thread, which is the shipped host's model. With
	// ConcurrentUpdates the flag byte is the serialization point instead.
	mu     sync.Mutex
	closed atomic.Bool
}

func newSession(conf *Config, mem *hostmem.Memory, original OriginalHandler) (*Session, error) {
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, fmt.Errorf("new session: nil host memory")
	}
	var probe [4]byte
	if err := mem.ReadAt(conf.CounterAddr, probe[:]); err != nil {
		return nil, fmt.Errorf("%w: counter at 0x%08X: %v", ErrHostMemoryTooSmall, conf.CounterAddr, err)
	}
	if _, err := mem.ByteAt(conf.FlagsAddr + uint32(conf.FlagsCapacity) - 1); err != nil {
		return nil, fmt.Errorf("%w: flags end at 0x%08X: %v",
			ErrHostMemoryTooSmall, conf.FlagsAddr+uint32(conf.FlagsCapacity)-1, err)
	}
	if conf.LogOutput != nil {
		internalLogger.out = conf.LogOutput
		delegateLogger.out = conf.LogOutput
	}
	return &Session{
		conf:     conf,
		mem:      mem,
		original: original,
	}, nil
}

// Counter returns the running collection total.
func (s *Session) Counter() (int32, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}
	var raw [4]byte
	if s.conf.ConcurrentUpdates {
		word, err := s.mem.Load4(s.conf.CounterAddr)
		if err != nil {
			return 0, err
		}
		raw = word
	} else if err := s.mem.ReadAt(s.conf.CounterAddr, raw[:]); err != nil {
		return 0, err
	}
	return int32(s.conf.ByteOrder.Uint32(raw[:])), nil
}

// CollectOnce marks index collected if its flag is clear, incrementing the
// counter; an already-set flag is a no-op. Returns whether the counter
// moved.
func (s *Session) CollectOnce(index int) (bool, error) {
	if s.closed.Load() {
		return false, ErrSessionClosed
	}
	if err := s.checkIndex(index); err != nil {
		return false, err
	}
	flagAddr := s.conf.FlagsAddr + uint32(index)

	if !s.conf.ConcurrentUpdates {
		s.mu.Lock()
		defer s.mu.Unlock()
		flag, err := s.mem.ByteAt(flagAddr)
		if err != nil {
			return false, err
		}
		if flag != 0 {
			return false, nil
		}
		var raw [4]byte
		if err := s.mem.ReadAt(s.conf.CounterAddr, raw[:]); err != nil {
			return false, err
		}
		next := int32(s.conf.ByteOrder.Uint32(raw[:])) + 1
		s.conf.ByteOrder.PutUint32(raw[:], uint32(next))
		if err := s.mem.WriteAt(s.conf.CounterAddr, raw[:]); err != nil {
			return false, err
		}
		return true, s.mem.SetByteAt(flagAddr, 1)
	}

	// Concurrent host: the flag byte is the serialization point. Whoever
	// swaps it 0 -> 1 owns the increment; everyone else backs off.
	won, err := s.mem.CompareAndSwapByte(flagAddr, 0, 1)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	for {
		cur, err := s.mem.Load4(s.conf.CounterAddr)
		if err != nil {
			return false, err
		}
		var next [4]byte
		s.conf.ByteOrder.PutUint32(next[:], uint32(int32(s.conf.ByteOrder.Uint32(cur[:]))+1))
		swapped, err := s.mem.CompareAndSwap4(s.conf.CounterAddr, cur, next)
		if err != nil {
			return false, err
		}
		if swapped {
			return true, nil
		}
	}
}

// Flag returns the collected-flag byte for index.
func (s *Session) Flag(index int) (byte, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}
	if err := s.checkIndex(index); err != nil {
		return 0, err
	}
	return s.mem.ByteAt(s.conf.FlagsAddr + uint32(index))
}

// ClearFlag resets the collected flag for index, re-arming CollectOnce.
func (s *Session) ClearFlag(index int) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := s.checkIndex(index); err != nil {
		return err
	}
	return s.mem.SetByteAt(s.conf.FlagsAddr+uint32(index), 0)
}

// ReadAt reads host memory at guest address addr.
func (s *Session) ReadAt(addr uint32, buf []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.mem.ReadAt(addr, buf)
}

// CallOriginal delegates to the host's original update handler.
func (s *Session) CallOriginal(m *moby.Moby) {
	if debugMode {
		delegateLogger.tracef("delegate moby addr:0x%08X type:%d state:%d", m.Addr, m.Type, m.State)
	}
	if s.original != nil {
		s.original(m)
	}
}

// Ping verifies the tracked state is still readable.
func (s *Session) Ping() error {
	_, err := s.Counter()
	return err
}

// Close releases the session. The mapped region is unmapped when the
// session owns one; injected memory is left to its owner.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.region != nil {
		if err := s.region.Unmap(); err != nil {
			internalLogger.warnf("session close: %s", err.Error())
			return err
		}
		internalLogger.infof("session detached from %s", s.conf.MemPath)
	}
	return nil
}

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= s.conf.FlagsCapacity {
		return fmt.Errorf("%w: index %d, capacity %d", ErrIndexOutOfRange, index, s.conf.FlagsCapacity)
	}
	return nil
}
