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

// Package api exposes the arena engine over HTTP. It is a thin marshalling
// layer: every endpoint maps to exactly one engine operation and serializes
// the returned snapshot. The engine owns all allocation semantics.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/sirupsen/logrus"

	"github.com/cloudwego/memsim/arena"
)

// maxBodyBytes bounds request bodies; every request here is a small JSON
// object.
const maxBodyBytes = 1 << 20

// Server serves the memory-manager API over one arena instance. The arena
// handle is owned explicitly by the server and swapped atomically by
// /initialize; the engine serializes operations internally.
type Server struct {
	log *logrus.Entry

	mu sync.RWMutex
	a  *arena.Arena
}

// NewServer creates a server around the given arena. a may be nil, in which
// case every mutating endpoint fails until /initialize is called.
func NewServer(a *arena.Arena, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{log: log, a: a}
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /initialize", s.handleInitialize)
	mux.HandleFunc("POST /allocate", s.handleAllocate)
	mux.HandleFunc("POST /deallocate", s.handleDeallocate)
	mux.HandleFunc("POST /compact", s.handleCompact)
	mux.HandleFunc("POST /reset", s.handleReset)
	return s.withLogging(mux)
}

func (s *Server) current() *arena.Arena {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.a
}

func (s *Server) swap(a *arena.Arena) {
	s.mu.Lock()
	s.a = a
	s.mu.Unlock()
}

// decodeJSON reads the request body into an mcache-pooled buffer and
// unmarshals it into v. A negative ContentLength (chunked transfer) is read
// up to maxBodyBytes. allowEmpty treats a zero-length body as valid and
// leaves v untouched.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	var body []byte
	switch n := r.ContentLength; {
	case n > maxBodyBytes:
		return fmt.Errorf("request body too large: %d bytes", n)
	case n > 0:
		buf := mcache.Malloc(int(n))
		defer mcache.Free(buf)
		if _, err := io.ReadFull(r.Body, buf); err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
		body = buf
	case n < 0:
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
		if len(data) > maxBodyBytes {
			return fmt.Errorf("request body too large: over %d bytes", maxBodyBytes)
		}
		body = data
	}
	if len(body) == 0 {
		if allowEmpty {
			return nil
		}
		return errors.New("missing request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Error("encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Success: false, Message: msg})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start),
		}).Debug("request served")
	})
}
