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

// Package arena simulates dynamic memory allocation over a fixed-size
// address space shared by named processes.
//
// Allocation is best-fit over arbitrary-sized free blocks, with an optional
// buddy mode that rounds requests to powers of two and prefers
// buddy-aligned placement. Buddy discipline holds while the allocation
// history keeps free regions aligned; otherwise buddy-mode requests degrade
// to plain best-fit over size-qualifying blocks. Compact relocates all
// allocated blocks to the bottom of the address space, consolidating free
// capacity into a single trailing block.
//
// The block table always covers [0, capacity) with no gaps or overlaps, and
// no two adjacent blocks are ever both free. Addresses and sizes are
// abstract units; nothing here touches real memory.
package arena

import (
	"fmt"
	"sync"
)

// Arena owns the block table for one simulated address space. All
// operations serialize against one lock and are atomic: a failed operation
// leaves the table untouched.
type Arena struct {
	mu       sync.Mutex
	capacity int
	blocks   []Block
	owners   map[string]struct{}
}

// New creates an arena whose address space is a single free block of the
// given capacity.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, capacity)
	}
	a := &Arena{}
	a.init(capacity)
	return a, nil
}

func (a *Arena) init(capacity int) {
	a.capacity = capacity
	a.blocks = []Block{{Start: 0, Size: capacity}}
	a.owners = make(map[string]struct{})
}

// Reset discards all state and reinitializes the arena with the given
// capacity. Prior allocations are forgotten entirely.
func (a *Arena) Reset(capacity int) (Snapshot, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, capacity)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.init(capacity)
	return a.snapshot(), nil
}

// Capacity returns the total size of the address space.
func (a *Arena) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capacity
}

// AllocResult reports a successful allocation.
type AllocResult struct {
	Start         int
	EffectiveSize int
	Blocks        Snapshot
}

// Allocate assigns a block to owner. The effective size is the requested
// size, or the next power of two above it when useBuddy is set. The free
// block is chosen best-fit: smallest sufficient size, lowest address on
// ties. In buddy mode the search first restricts itself to buddy-aligned
// candidates and falls back to the unrestricted search when none exists.
func (a *Arena) Allocate(owner string, size int, useBuddy bool) (AllocResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if owner == "" {
		return AllocResult{}, ErrInvalidProcessName
	}
	if size <= 0 {
		return AllocResult{}, fmt.Errorf("%w, got %d", ErrInvalidSize, size)
	}
	if _, ok := a.owners[owner]; ok {
		return AllocResult{}, fmt.Errorf("%w: %q", ErrDuplicateProcess, owner)
	}

	eff := size
	if useBuddy {
		eff = nextPow2(size)
	}

	idx, start := -1, 0
	if useBuddy {
		idx, start = a.findBuddyFit(eff)
	}
	if idx < 0 {
		if idx = a.findBestFit(eff); idx >= 0 {
			start = a.blocks[idx].Start
		}
	}
	if idx < 0 {
		return AllocResult{}, fmt.Errorf("%w: need %d", ErrInsufficientMemory, eff)
	}

	a.carve(idx, Block{
		Start:     start,
		Size:      eff,
		Owner:     owner,
		Buddy:     useBuddy && start%eff == 0,
		Requested: size,
	})
	a.owners[owner] = struct{}{}

	return AllocResult{Start: start, EffectiveSize: eff, Blocks: a.snapshot()}, nil
}

// carve replaces the free block at idx with alloc, keeping any leading or
// trailing remainder of the block as free blocks. alloc must lie entirely
// within the block at idx.
func (a *Arena) carve(idx int, alloc Block) {
	b := a.blocks[idx]
	out := make([]Block, 0, 3)
	if alloc.Start > b.Start {
		out = append(out, Block{Start: b.Start, Size: alloc.Start - b.Start})
	}
	out = append(out, alloc)
	if alloc.End() < b.End() {
		out = append(out, Block{Start: alloc.End(), Size: b.End() - alloc.End()})
	}
	a.blocks = append(a.blocks[:idx], append(out, a.blocks[idx+1:]...)...)
}

// Deallocate frees the block held by owner and coalesces it with any free
// neighbor. Buddy pairs are adjacent by the buddy address law, so the
// adjacency merge also performs every possible buddy merge.
func (a *Arena) Deallocate(owner string) (Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Consult the owner index first: a bare table scan would let the
	// empty string match a free block.
	idx := -1
	if _, ok := a.owners[owner]; ok {
		for i := range a.blocks {
			if a.blocks[i].Owner == owner {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrProcessNotFound, owner)
	}

	b := &a.blocks[idx]
	b.Owner = ""
	b.Buddy = false
	b.Requested = 0
	delete(a.owners, owner)
	a.coalesce(idx)

	return a.snapshot(), nil
}

// coalesce merges the free block at idx with its free neighbors and returns
// the index of the merged block. At most one merge per side is possible
// since only one block was freshly freed.
func (a *Arena) coalesce(idx int) int {
	for idx+1 < len(a.blocks) && a.blocks[idx+1].Free() {
		a.blocks[idx].Size += a.blocks[idx+1].Size
		a.blocks = append(a.blocks[:idx+1], a.blocks[idx+2:]...)
	}
	for idx > 0 && a.blocks[idx-1].Free() {
		a.blocks[idx-1].Size += a.blocks[idx].Size
		a.blocks = append(a.blocks[:idx], a.blocks[idx+1:]...)
		idx--
	}
	return idx
}

// CompactResult reports a compaction.
type CompactResult struct {
	// Moved counts allocated blocks whose start address changed.
	Moved  int
	Blocks Snapshot
}

// Compact relocates every allocated block so that all allocated capacity is
// contiguous from address 0, preserving relative order, with one free block
// holding the remainder. Never fails. Compaction breaks buddy alignment:
// relocated buddy blocks drop out of buddy discipline and later buddy-mode
// allocations run in best-fit fallback until alignment re-emerges.
func (a *Arena) Compact() CompactResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	blocks := make([]Block, 0, len(a.blocks))
	next, moved := 0, 0
	for _, b := range a.blocks {
		if b.Free() {
			continue
		}
		if b.Start != next {
			moved++
			b.Start = next
			b.Buddy = b.Buddy && b.Start%b.Size == 0
		}
		next += b.Size
		blocks = append(blocks, b)
	}
	if next < a.capacity {
		blocks = append(blocks, Block{Start: next, Size: a.capacity - next})
	}
	a.blocks = blocks

	return CompactResult{Moved: moved, Blocks: a.snapshot()}
}

// Status reports capacity, used/free totals, the fragmentation ratio and a
// snapshot of the block table.
func (a *Arena) Status() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	used, freeBlocks := 0, 0
	for _, b := range a.blocks {
		if b.Free() {
			freeBlocks++
		} else {
			used += b.Size
		}
	}
	frag := 0.0
	if freeBlocks > 1 {
		frag = float64(freeBlocks-1) / float64(len(a.blocks))
	}
	return Stats{
		Capacity:      a.capacity,
		Used:          used,
		Free:          a.capacity - used,
		Fragmentation: frag,
		Processes:     len(a.owners),
		Blocks:        a.snapshot(),
	}
}

// findBestFit returns the index of the smallest free block with size >=
// want. Scanning in address order with a strict comparison makes the lowest
// address win ties. Returns -1 when no block qualifies.
func (a *Arena) findBestFit(want int) int {
	best := -1
	for i := range a.blocks {
		b := &a.blocks[i]
		if !b.Free() || b.Size < want {
			continue
		}
		if best < 0 || b.Size < a.blocks[best].Size {
			best = i
		}
	}
	return best
}

func (a *Arena) snapshot() Snapshot {
	return append(Snapshot(nil), a.blocks...)
}
