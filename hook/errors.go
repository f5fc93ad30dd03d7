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

import "errors"

var (
	// ErrIndexOutOfRange means a bolt index fell outside the flags table.
	// The original host code performs no bounds check at all; here the
	// condition is surfaced and the caller decides.
	ErrIndexOutOfRange = errors.New("bolt index out of flags table range")

	// ErrSessionClosed means the session's host memory was released.
	ErrSessionClosed = errors.New("session closed")

	// ErrHookExists means a hook is already registered for a moby type.
	ErrHookExists = errors.New("hook already registered for moby type")

	// ErrHostMemoryTooSmall means the mapped window does not cover the
	// configured counter and flags addresses.
	ErrHostMemoryTooSmall = errors.New("host memory window does not cover tracked state")

	// ErrShareMemoryHadNotLeftSpace means /dev/shm has no room for a new
	// segment of the requested size.
	ErrShareMemoryHadNotLeftSpace = errors.New("share memory had not left space")
)
