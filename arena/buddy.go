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

import "math/bits"

// nextPow2 returns the smallest power of two >= n. n must be positive.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// buddyOf returns the start address of the buddy of a block at start with
// the given power-of-two size: the two starts differ only in the bit at
// position log2(size). Buddies of equal size are therefore adjacent, which
// is why the adjacency merge in Deallocate covers buddy merging too.
func buddyOf(start, size int) int {
	return start ^ size
}

// alignUp rounds n up to the next multiple of align. align must be a power
// of two.
func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// findBuddyFit looks for a free block that contains a buddy-aligned run of
// `want` units (want is a power of two). Carving the run out of a larger
// free region is equivalent to recursively halving the region down to want:
// the would-be intermediate free halves collapse into the prefix and suffix
// remainders. Among qualifying blocks the smallest wins, lowest address on
// ties, mirroring findBestFit. Returns the block index and the aligned
// start, or (-1, 0) when no aligned run exists and the caller degrades to
// plain best-fit.
func (a *Arena) findBuddyFit(want int) (idx, start int) {
	best, bestStart := -1, 0
	for i := range a.blocks {
		b := &a.blocks[i]
		if !b.Free() || b.Size < want {
			continue
		}
		aligned := alignUp(b.Start, want)
		if aligned+want > b.End() {
			continue
		}
		if best < 0 || b.Size < a.blocks[best].Size {
			best, bestStart = i, aligned
		}
	}
	return best, bestStart
}
