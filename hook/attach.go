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

	"github.com/cenkalti/backoff/v4"

	"github.com/riftworks/mobyhook/internal/hostmem"
)

// AttachHost maps the host's published guest-RAM segment and opens a
// session over it, retrying with exponential backoff until the host
// publishes the segment or conf.AttachTimeout runs out. original is the
// handler delegation forwards to; nil makes delegation a no-op, useful
// when a separate bridge performs the actual host call.
func AttachHost(conf *Config, original OriginalHandler) (*Session, error) {
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}

	var region *hostmem.Region
	attempt := 0
	op := func() error {
		attempt++
		r, err := hostmem.MapRegion(hostmem.MapOptions{
			Path: conf.MemPath,
			Size: conf.MemSize,
			Type: conf.MemMapType,
		})
		if err != nil {
			internalLogger.debugf("attach attempt %d: %s", attempt, err.Error())
			return err
		}
		region = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = conf.AttachRetryInterval
	bo.MaxElapsedTime = conf.AttachTimeout
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("attach host segment %s: %w", conf.MemPath, err)
	}

	if isArmArch() && len(region.Data)%8 != 0 {
		_ = region.Unmap()
		return nil, fmt.Errorf("attach host segment %s: size %d not a multiple of 8", conf.MemPath, len(region.Data))
	}

	s, err := newSession(conf, hostmem.NewMemory(conf.MemBase, region.Data), original)
	if err != nil {
		_ = region.Unmap()
		return nil, err
	}
	s.region = region
	internalLogger.infof("attached host segment %s, %d bytes at guest base 0x%08X",
		conf.MemPath, len(region.Data), conf.MemBase)
	return s, nil
}

// HostSegment is a locally created stand-in for a host-published segment:
// the mock-host side for tests and examples. It owns the backing file and
// removes it on Close.
type HostSegment struct {
	region *hostmem.Region
	mem    *hostmem.Memory
	conf   *Config
}

// CreateHostSegment creates a zeroed segment laid out per conf.
func CreateHostSegment(conf *Config) (*HostSegment, error) {
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}
	if conf.MemSize <= 0 {
		return nil, fmt.Errorf("create host segment: size %d", conf.MemSize)
	}
	if conf.MemMapType == hostmem.MapTypeDevShmFile {
		if pathExists(conf.MemPath) {
			return nil, fmt.Errorf("create host segment: %s exists", conf.MemPath)
		}
		if !canCreateOnDevShm(uint64(conf.MemSize), conf.MemPath) {
			return nil, fmt.Errorf("%w: path %s, size %d", ErrShareMemoryHadNotLeftSpace, conf.MemPath, conf.MemSize)
		}
	}
	region, err := hostmem.CreateRegion(hostmem.MapOptions{
		Path: conf.MemPath,
		Size: conf.MemSize,
		Type: conf.MemMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("create host segment: %w", err)
	}
	return &HostSegment{
		region: region,
		mem:    hostmem.NewMemory(conf.MemBase, region.Data),
		conf:   conf,
	}, nil
}

// NewSessionFromSegment opens a session directly over seg, bypassing the
// map-by-path step. Intended for in-process mock hosts.
func NewSessionFromSegment(conf *Config, seg *HostSegment, original OriginalHandler) (*Session, error) {
	return newSession(conf, seg.mem, original)
}

// Path returns the segment's path or mapping name.
func (h *HostSegment) Path() string { return h.conf.MemPath }

// WriteAt writes host memory at guest address addr.
func (h *HostSegment) WriteAt(addr uint32, buf []byte) error {
	return h.mem.WriteAt(addr, buf)
}

// ReadAt reads host memory at guest address addr.
func (h *HostSegment) ReadAt(addr uint32, buf []byte) error {
	return h.mem.ReadAt(addr, buf)
}

// Close unmaps the segment and removes its backing file.
func (h *HostSegment) Close() error {
	return h.region.Remove()
}
