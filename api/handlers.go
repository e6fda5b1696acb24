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
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/memsim/arena"
)

const notInitializedMsg = "memory not initialized, call /initialize first"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":      "memsim",
		"status":    "running",
		"endpoints": map[string]string{
			"initialize": "POST /initialize",
			"allocate":   "POST /allocate",
			"deallocate": "POST /deallocate",
			"compact":    "POST /compact",
			"status":     "GET /status",
			"reset":      "POST /reset",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:            "healthy",
		MemoryInitialized: s.current() != nil,
	})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := arena.New(req.TotalMemory)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.swap(a)

	resp := memoryResponseFrom(a.Status())
	resp.Success = true
	resp.Message = fmt.Sprintf("memory initialized with %d units", req.TotalMemory)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	a := s.current()
	if a == nil {
		s.writeError(w, http.StatusBadRequest, notInitializedMsg)
		return
	}
	var req allocateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProcessName == "" {
		s.writeError(w, http.StatusBadRequest, "process_name must not be empty")
		return
	}
	if req.Size <= 0 {
		s.writeError(w, http.StatusBadRequest, "size must be positive")
		return
	}
	useBuddy := true
	if req.UseBuddy != nil {
		useBuddy = *req.UseBuddy
	}

	res, err := a.Allocate(req.ProcessName, req.Size, useBuddy)
	resp := memoryResponseFrom(a.Status())
	switch {
	case err == nil:
		resp.Success = true
		resp.Message = fmt.Sprintf("process %q allocated %d units", req.ProcessName, res.EffectiveSize)
		resp.StartAddress = &res.Start
	case errors.Is(err, arena.ErrInsufficientMemory):
		resp.Message = "no suitable free block found, try compaction"
	case errors.Is(err, arena.ErrDuplicateProcess):
		resp.Message = fmt.Sprintf("process %q already allocated", req.ProcessName)
	default:
		resp.Message = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeallocate(w http.ResponseWriter, r *http.Request) {
	a := s.current()
	if a == nil {
		s.writeError(w, http.StatusBadRequest, notInitializedMsg)
		return
	}
	var req deallocateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProcessName == "" {
		s.writeError(w, http.StatusBadRequest, "process_name must not be empty")
		return
	}

	_, err := a.Deallocate(req.ProcessName)
	resp := memoryResponseFrom(a.Status())
	if err != nil {
		resp.Message = fmt.Sprintf("process %q not found", req.ProcessName)
	} else {
		resp.Success = true
		resp.Message = fmt.Sprintf("process %q deallocated", req.ProcessName)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	a := s.current()
	if a == nil {
		s.writeError(w, http.StatusBadRequest, notInitializedMsg)
		return
	}

	res := a.Compact()
	resp := memoryResponseFrom(a.Status())
	resp.Success = true
	resp.Message = "memory compacted"
	resp.MovedProcesses = &res.Moved
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	a := s.current()
	if a == nil {
		s.writeJSON(w, http.StatusOK, statusResponse{
			Initialized: false,
			Message:     "memory not initialized",
			Blocks:      []blockJSON{},
		})
		return
	}
	st := a.Status()
	s.writeJSON(w, http.StatusOK, statusResponse{
		Initialized:     true,
		TotalMemory:     st.Capacity,
		UsedMemory:      st.Used,
		FreeMemory:      st.Free,
		Blocks:          blocksJSON(st.Blocks),
		ActiveProcesses: st.Processes,
		Fragmentation:   fragmentationPercent(st.Fragmentation),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	a := s.current()
	if a == nil {
		s.writeError(w, http.StatusBadRequest, notInitializedMsg)
		return
	}
	var req resetRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	capacity := req.TotalMemory
	if capacity == 0 {
		capacity = a.Capacity()
	}
	if _, err := a.Reset(capacity); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := memoryResponseFrom(a.Status())
	resp.Success = true
	resp.Message = "memory reset"
	s.writeJSON(w, http.StatusOK, resp)
}
