/*
 * Copyright 2025 SREDiag Authors
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

package gamelink

import "errors"

var (
	// ErrNotFound means the producer has not created the region or mutex. Retry later.
	ErrNotFound = errors.New("gamelink: shared region not found")
	// ErrMutexUnavailable means the region exists but its mutex could not be opened.
	// Usually a protocol revision mismatch or a racing second consumer.
	ErrMutexUnavailable = errors.New("gamelink: found shared region but not its mutex")
	// ErrVersionMismatch means the region carries another protocol version.
	ErrVersionMismatch = errors.New("gamelink: protocol version mismatch")
	// ErrRegionTooSmall means the mapping cannot hold the fixed header.
	ErrRegionTooSmall = errors.New("gamelink: shared region smaller than header")
	// ErrNotAttached is returned by operations that need an attached link.
	ErrNotAttached = errors.New("gamelink: not attached")
	// ErrLockTimeout means the mutex was not acquired in time; the write was dropped.
	ErrLockTimeout = errors.New("gamelink: mutex wait timed out")
	// ErrLockAbandoned is reported when the producer died holding the mutex.
	ErrLockAbandoned = errors.New("gamelink: mutex abandoned by producer")
	// ErrLockFailed means the wait itself failed.
	ErrLockFailed = errors.New("gamelink: mutex wait failed")
	// ErrCommandTooLarge means the command does not fit the outbound buffer.
	ErrCommandTooLarge = errors.New("gamelink: command too large")
	// ErrTooManyPeeks means more addresses were requested than the peek table holds.
	ErrTooManyPeeks = errors.New("gamelink: too many peek addresses")
)
