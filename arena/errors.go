/*
 * Copyright 2025 CloudWeGo Authors
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

package arena

import "errors"

// All failures are recoverable at the caller boundary: a failed operation
// never mutates the block table.
var (
	// ErrInvalidCapacity is returned when a non-positive capacity is
	// supplied to New or Reset.
	ErrInvalidCapacity = errors.New("arena: capacity must be positive")

	// ErrInvalidSize is returned when a non-positive size is requested.
	ErrInvalidSize = errors.New("arena: size must be positive")

	// ErrInvalidProcessName is returned when the owner name is empty. The
	// empty string encodes a free block and can never own one.
	ErrInvalidProcessName = errors.New("arena: process name must not be empty")

	// ErrInsufficientMemory is returned when no free block is large
	// enough. The caller may compact and retry; the allocator never
	// compacts on its own.
	ErrInsufficientMemory = errors.New("arena: no free block large enough")

	// ErrDuplicateProcess is returned when the owner already holds a block.
	ErrDuplicateProcess = errors.New("arena: process already allocated")

	// ErrProcessNotFound is returned when deallocating an unknown owner.
	ErrProcessNotFound = errors.New("arena: process not found")
)
