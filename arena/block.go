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

import (
	"errors"
	"fmt"
)

// Block is one contiguous region of the simulated address space.
// A block is free when Owner is empty.
type Block struct {
	Start int
	Size  int
	Owner string

	// Buddy marks blocks that were both rounded to a power of two and
	// placed on a buddy boundary (Start is a multiple of Size).
	Buddy bool

	// Requested is the size the caller asked for, before any rounding.
	// Size-Requested is the internal fragmentation of the block.
	// Address-space accounting always uses Size.
	Requested int
}

// Free reports whether the block is unallocated.
func (b Block) Free() bool { return b.Owner == "" }

// End returns the first address past the block.
func (b Block) End() int { return b.Start + b.Size }

func (b Block) String() string {
	if b.Free() {
		return fmt.Sprintf("[%d-%d) %d FREE", b.Start, b.End(), b.Size)
	}
	return fmt.Sprintf("[%d-%d) %d ALLOCATED(%s)", b.Start, b.End(), b.Size, b.Owner)
}

// Snapshot is a copy of the block table, ordered by Start.
// It is the sole data contract returned to callers.
type Snapshot []Block

// Stats is the read-only view returned by Status.
type Stats struct {
	Capacity int
	Used     int
	Free     int

	// Fragmentation is (free blocks - 1) / total blocks when more than
	// one free block exists, else 0. It quantifies how scattered the
	// free capacity is, not how much of it there is.
	Fragmentation float64

	Processes int
	Blocks    Snapshot
}

// checkInvariants validates the block-table invariants. A violation is an
// implementation bug, never a recoverable condition; tests run this after
// every mutation.
func (a *Arena) checkInvariants() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.blocks) == 0 {
		return errors.New("arena: empty block table")
	}
	owners := make(map[string]struct{}, len(a.owners))
	next := 0
	for i, b := range a.blocks {
		if b.Start != next {
			return fmt.Errorf("arena: block %d starts at %d, want %d", i, b.Start, next)
		}
		if b.Size <= 0 {
			return fmt.Errorf("arena: block %d has size %d", i, b.Size)
		}
		next = b.End()
		if b.Free() {
			if i > 0 && a.blocks[i-1].Free() {
				return fmt.Errorf("arena: adjacent free blocks at %d and %d", a.blocks[i-1].Start, b.Start)
			}
			continue
		}
		if _, ok := owners[b.Owner]; ok {
			return fmt.Errorf("arena: owner %q holds more than one block", b.Owner)
		}
		owners[b.Owner] = struct{}{}
		if _, ok := a.owners[b.Owner]; !ok {
			return fmt.Errorf("arena: owner %q missing from index", b.Owner)
		}
		if b.Buddy {
			if b.Size&(b.Size-1) != 0 {
				return fmt.Errorf("arena: buddy block %q has non-power-of-two size %d", b.Owner, b.Size)
			}
			if b.Start%b.Size != 0 {
				return fmt.Errorf("arena: buddy block %q at %d not aligned to %d", b.Owner, b.Start, b.Size)
			}
		}
	}
	if next != a.capacity {
		return fmt.Errorf("arena: blocks cover [0,%d), want [0,%d)", next, a.capacity)
	}
	if len(owners) != len(a.owners) {
		return fmt.Errorf("arena: owner index has %d entries, table has %d", len(a.owners), len(owners))
	}
	return nil
}
