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
	"math/rand"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftworks/mobyhook/pkg/moby"
)

func testAttachConf() *Config {
	conf := DefaultConfig()
	conf.MemPath = "/dev/shm/mobyhook.test_" + strconv.Itoa(int(rand.Int63()))
	conf.MemBase = 0x00A00000
	conf.MemSize = 1 << 20
	conf.AttachRetryInterval = 10 * time.Millisecond
	conf.AttachTimeout = 2 * time.Second
	return conf
}

func TestCreateSegmentAndAttach(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("segment tests use /dev/shm")
	}
	conf := testAttachConf()

	seg, err := CreateHostSegment(conf)
	require.Nil(t, err)
	defer seg.Close()

	// A second create on the same path must refuse.
	_, err = CreateHostSegment(conf)
	require.NotNil(t, err)

	// Host writes the counter; an attached session reads it back.
	require.Nil(t, seg.WriteAt(conf.CounterAddr, []byte{0, 0, 0, 9}))

	session, err := AttachHost(conf, nil)
	require.Nil(t, err)
	defer session.Close()

	total, err := session.Counter()
	require.Nil(t, err)
	assert.Equal(t, int32(9), total)

	// Both sides see the same flags table.
	counted, err := session.CollectOnce(3)
	require.Nil(t, err)
	assert.True(t, counted)
	var flag [1]byte
	require.Nil(t, seg.ReadAt(conf.FlagsAddr+3, flag[:]))
	assert.Equal(t, byte(1), flag[0])
}

func TestAttachTimesOutWithoutHost(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("segment tests use /dev/shm")
	}
	conf := testAttachConf()
	conf.AttachTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := AttachHost(conf, nil)
	require.NotNil(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSessionFromSegmentEndToEnd(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("segment tests use /dev/shm")
	}
	conf := testAttachConf()
	seg, err := CreateHostSegment(conf)
	require.Nil(t, err)
	defer seg.Close()

	const mobyAddr, varsAddr uint32 = 0x00A10000, 0x00A10100
	bolt := &moby.Moby{Addr: mobyAddr, State: moby.StateCollected, PVars: varsAddr, Type: 0x92}
	require.Nil(t, seg.WriteAt(mobyAddr, moby.Encode(bolt, conf.ByteOrder)))
	require.Nil(t, seg.WriteAt(varsAddr, moby.EncodeGoldBoltVars(moby.GoldBoltVars{Number: 5}, conf.ByteOrder)))

	session, err := NewSessionFromSegment(conf, seg, nil)
	require.Nil(t, err)

	h := NewGoldBoltHook(session, nil)
	raw := make([]byte, moby.RecordSize)
	require.Nil(t, session.ReadAt(mobyAddr, raw))
	decoded, err := moby.Decode(raw, mobyAddr, conf.ByteOrder)
	require.Nil(t, err)

	require.Nil(t, h.OnUpdate(decoded))
	total, err := session.Counter()
	require.Nil(t, err)
	assert.Equal(t, int32(1), total)
}
