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
	"io"
	"os"
	"runtime"
	"time"

	"github.com/riftworks/mobyhook/internal/hostmem"
)

const (
	// defaultCounterAddr and defaultFlagsAddr are the guest addresses the
	// shipped host binary keeps its collection state at.
	defaultCounterAddr uint32 = 0x00AFF000
	defaultFlagsAddr   uint32 = 0x00AFF004

	// defaultFlagsCapacity matches the shipped level set, one byte per
	// gold bolt. Level data owns the real bound, so it stays configurable.
	defaultFlagsCapacity = 40

	// maxFlagsCapacity guards against a config typo mapping megabytes of
	// flags.
	maxFlagsCapacity = 1 << 16

	// defaultMemSize covers the guest address range the shipped host
	// exports, tracked state included.
	defaultMemSize = 16 << 20
)

// Config carries the discovered host layout plus attach and runtime
// settings. Zero values are filled by DefaultConfig; VerifyConfig rejects
// combinations the session cannot serve.
type Config struct {
	// CounterAddr is the guest address of the int32 collection counter.
	// Must be 4-byte aligned relative to MemBase for the concurrent mode.
	CounterAddr uint32

	// FlagsAddr is the guest address of the collected-flags table.
	FlagsAddr uint32

	// FlagsCapacity is the flags table size in bytes, one per bolt index.
	FlagsCapacity int

	// ByteOrder of the host's memory. The shipped host is big-endian.
	ByteOrder binary.ByteOrder

	// ConcurrentUpdates switches counter/flag updates to atomic
	// compare-and-swap. Leave false when the host serializes all object
	// updates on one thread, as the shipped host does.
	ConcurrentUpdates bool

	// MemPath is the host's published segment: a file path on Linux, a
	// mapping object name on Windows.
	MemPath string

	// MemMapType selects the segment backing.
	MemMapType hostmem.MapType

	// MemBase is the guest address of the segment's first byte.
	MemBase uint32

	// MemSize is the segment size in bytes. Zero maps the whole file.
	MemSize int

	// AttachRetryInterval is the initial backoff between attach attempts.
	AttachRetryInterval time.Duration

	// AttachTimeout bounds the whole attach retry loop. Zero retries
	// forever.
	AttachTimeout time.Duration

	// LogOutput receives the package's internal log. Defaults to stdout.
	LogOutput io.Writer
}

// DefaultConfig returns the configuration matching the shipped host binary.
func DefaultConfig() *Config {
	path := "mobyhook.guest"
	if runtime.GOOS == "linux" {
		path = "/dev/shm/mobyhook.guest"
	}
	return &Config{
		CounterAddr:         defaultCounterAddr,
		FlagsAddr:           defaultFlagsAddr,
		FlagsCapacity:       defaultFlagsCapacity,
		ByteOrder:           binary.BigEndian,
		MemPath:             path,
		MemMapType:          hostmem.MapTypeDevShmFile,
		MemBase:             0,
		MemSize:             defaultMemSize,
		AttachRetryInterval: 100 * time.Millisecond,
		AttachTimeout:       30 * time.Second,
		LogOutput:           os.Stdout,
	}
}

// VerifyConfig checks that conf describes a layout the session can serve.
func VerifyConfig(conf *Config) error {
	if conf == nil {
		return fmt.Errorf("config is nil")
	}
	if conf.ByteOrder == nil {
		return fmt.Errorf("config: byte order is nil")
	}
	if conf.FlagsCapacity <= 0 || conf.FlagsCapacity > maxFlagsCapacity {
		return fmt.Errorf("config: flags capacity %d out of (0, %d]", conf.FlagsCapacity, maxFlagsCapacity)
	}
	if (conf.CounterAddr-conf.MemBase)%4 != 0 {
		return fmt.Errorf("config: counter addr 0x%08X not 4-byte aligned in window", conf.CounterAddr)
	}
	counterEnd := uint64(conf.CounterAddr) + 4
	flagsStart := uint64(conf.FlagsAddr)
	flagsEnd := flagsStart + uint64(conf.FlagsCapacity)
	if flagsStart < counterEnd && uint64(conf.CounterAddr) < flagsEnd {
		return fmt.Errorf("config: counter [0x%08X,0x%08X) overlaps flags [0x%08X,0x%08X)",
			conf.CounterAddr, counterEnd, flagsStart, flagsEnd)
	}
	if conf.MemSize < 0 {
		return fmt.Errorf("config: negative memory size %d", conf.MemSize)
	}
	if conf.MemPath == "" {
		return fmt.Errorf("config: memory path is empty")
	}
	return nil
}
