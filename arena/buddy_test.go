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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPow2(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{100, 128},
		{128, 128},
		{129, 256},
		{1000, 1024},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextPow2(tt.in), "n=%d", tt.in)
	}
}

func TestBuddyOf(t *testing.T) {
	// buddies differ only in the bit at log2(size), so they are adjacent
	assert.Equal(t, 128, buddyOf(0, 128))
	assert.Equal(t, 0, buddyOf(128, 128))
	assert.Equal(t, 768, buddyOf(512, 256))
	assert.Equal(t, 512, buddyOf(768, 256))
}

func TestBuddyRounding(t *testing.T) {
	a := newTestArena(t, 1024)
	res := mustAlloc(t, a, "A", 100, true)
	assert.Equal(t, 128, res.EffectiveSize)
	assert.Equal(t, 128, a.Status().Used)

	b := newTestArena(t, 1024)
	res = mustAlloc(t, b, "A", 100, false)
	assert.Equal(t, 100, res.EffectiveSize)
	assert.Equal(t, 100, b.Status().Used)
}

// Pure buddy histories keep every allocated block on a buddy boundary.
func TestBuddyAddressLaw(t *testing.T) {
	a := newTestArena(t, 1024)
	sizes := map[string]int{"A": 100, "B": 50, "C": 7, "D": 128, "E": 33}
	for name, sz := range sizes {
		mustAlloc(t, a, name, sz, true)
	}
	mustFree(t, a, "B")
	mustAlloc(t, a, "F", 20, true)

	for _, blk := range a.Status().Blocks {
		if blk.Free() {
			continue
		}
		assert.Zero(t, blk.Size&(blk.Size-1), "block %s: size %d not a power of two", blk.Owner, blk.Size)
		assert.Zero(t, blk.Start%blk.Size, "block %s: start %d not aligned to %d", blk.Owner, blk.Start, blk.Size)
		assert.True(t, blk.Buddy)
	}
}

func TestBuddyAlignedSelection(t *testing.T) {
	a := newTestArena(t, 1024)
	// Fill [0,512) with non-buddy allocations, then punch a misaligned
	// hole; [512,1024) stays free.
	mustAlloc(t, a, "A", 200, false)
	mustAlloc(t, a, "B", 200, false)
	mustAlloc(t, a, "C", 112, false)
	mustFree(t, a, "B") // hole [200,400)

	// Plain best-fit would place D at 200. Buddy mode still best-fits
	// into the smaller hole but carves the aligned run at 256.
	res := mustAlloc(t, a, "D", 128, true)
	assert.Equal(t, 256, res.Start)
	assert.Zero(t, res.Start%res.EffectiveSize)

	// the alignment gap [200,256) stays free
	st := a.Status()
	assert.Equal(t, Block{Start: 200, Size: 56}, st.Blocks[1])
}

func TestBuddyFallbackToBestFit(t *testing.T) {
	a := newTestArena(t, 1000)
	// Leave one free region big enough for 128 units but containing no
	// 128-aligned run: [200,340).
	mustAlloc(t, a, "A", 200, false)
	mustAlloc(t, a, "B", 140, false)
	mustAlloc(t, a, "C", 660, false)
	mustFree(t, a, "B")

	res, err := a.Allocate("D", 100, true)
	require.NoError(t, err)
	require.NoError(t, a.checkInvariants())
	assert.Equal(t, 128, res.EffectiveSize, "size still rounds to a power of two")
	assert.Equal(t, 200, res.Start, "placement degrades to best-fit")

	// fallback placement is off the buddy boundary, so the block does not
	// participate in buddy discipline
	for _, blk := range a.Status().Blocks {
		if blk.Owner == "D" {
			assert.False(t, blk.Buddy)
		}
	}
}

func TestBuddyInsufficientMemory(t *testing.T) {
	a := newTestArena(t, 256)
	mustAlloc(t, a, "A", 200, false)
	// 60 rounds to 64 but only 56 units remain
	_, err := a.Allocate("B", 60, true)
	assert.ErrorIs(t, err, ErrInsufficientMemory)
	require.NoError(t, a.checkInvariants())
}

func TestBuddyMergeOnFree(t *testing.T) {
	a := newTestArena(t, 1024)
	// split [0,1024) into buddy blocks of 128
	for i := 0; i < 8; i++ {
		mustAlloc(t, a, fmt.Sprintf("p%d", i), 128, true)
	}
	require.Len(t, a.Status().Blocks, 8)

	// freeing a buddy pair collapses it into one 256 region
	mustFree(t, a, "p2")
	mustFree(t, a, "p3")
	st := a.Status()
	require.Len(t, st.Blocks, 7)
	assert.Equal(t, Block{Start: 256, Size: 256}, st.Blocks[2])

	// freeing the sibling pair one level up doubles the region again
	mustFree(t, a, "p0")
	mustFree(t, a, "p1")
	st = a.Status()
	assert.Equal(t, Block{Start: 0, Size: 512}, st.Blocks[0])

	// and a 256 buddy request reuses it aligned
	res := mustAlloc(t, a, "q", 256, true)
	assert.Equal(t, 0, res.Start%256)
}
