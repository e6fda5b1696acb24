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

package api

import (
	"math"

	"github.com/cloudwego/memsim/arena"
)

// Request shapes for the mutating endpoints. Field names are the wire
// contract consumed by the visualization frontend.

type initializeRequest struct {
	TotalMemory int `json:"total_memory"`
}

type allocateRequest struct {
	ProcessName string `json:"process_name"`
	Size        int    `json:"size"`
	// UseBuddy defaults to true when omitted.
	UseBuddy *bool `json:"use_buddy"`
}

type deallocateRequest struct {
	ProcessName string `json:"process_name"`
}

type resetRequest struct {
	// TotalMemory is optional; zero keeps the current capacity.
	TotalMemory int `json:"total_memory"`
}

// blockJSON is one entry of the serialized block table.
type blockJSON struct {
	Start       int     `json:"start"`
	Size        int     `json:"size"`
	End         int     `json:"end"`
	IsFree      bool    `json:"is_free"`
	ProcessName *string `json:"process_name"`
}

// memoryResponse is the common response envelope for mutating endpoints.
type memoryResponse struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message"`
	Blocks         []blockJSON `json:"blocks"`
	UsedMemory     int         `json:"used_memory"`
	FreeMemory     int         `json:"free_memory"`
	TotalMemory    int         `json:"total_memory"`
	Fragmentation  float64     `json:"fragmentation"`
	StartAddress   *int        `json:"start_address,omitempty"`
	MovedProcesses *int        `json:"moved_processes,omitempty"`
}

// statusResponse is the /status shape. Before /initialize it is all zeroes
// with Initialized false.
type statusResponse struct {
	Initialized     bool        `json:"initialized"`
	Message         string      `json:"message,omitempty"`
	TotalMemory     int         `json:"total_memory"`
	UsedMemory      int         `json:"used_memory"`
	FreeMemory      int         `json:"free_memory"`
	Blocks          []blockJSON `json:"blocks"`
	ActiveProcesses int         `json:"active_processes"`
	Fragmentation   float64     `json:"fragmentation"`
}

type healthResponse struct {
	Status            string `json:"status"`
	MemoryInitialized bool   `json:"memory_initialized"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func blocksJSON(snap arena.Snapshot) []blockJSON {
	out := make([]blockJSON, len(snap))
	for i, b := range snap {
		out[i] = blockJSON{
			Start:  b.Start,
			Size:   b.Size,
			End:    b.End(),
			IsFree: b.Free(),
		}
		if !b.Free() {
			owner := b.Owner
			out[i].ProcessName = &owner
		}
	}
	return out
}

// fragmentationPercent converts the engine's ratio to a percentage rounded
// to two decimals, the shape the analytics tooling consumes.
func fragmentationPercent(ratio float64) float64 {
	return math.Round(ratio*10000) / 100
}

func memoryResponseFrom(st arena.Stats) memoryResponse {
	return memoryResponse{
		Blocks:        blocksJSON(st.Blocks),
		UsedMemory:    st.Used,
		FreeMemory:    st.Free,
		TotalMemory:   st.Capacity,
		Fragmentation: fragmentationPercent(st.Fragmentation),
	}
}
