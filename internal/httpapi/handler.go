// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes the converter over HTTP so other services can turn
// exported tickets into destination issues without running a migration.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/deskbridge/migrator/internal/assembler"
	"github.com/deskbridge/migrator/internal/models"
)

const maxBodyBytes = 10 << 20

// Converter is the assembler surface served over HTTP.
type Converter interface {
	Convert(b models.Bundle) (*models.Issue, error)
	Summary(t models.Ticket, dir *models.Directory) (assembler.FieldSummary, error)
}

// Reloader re-reads the mapping table.
type Reloader interface {
	Reload() error
}

// Directories supplies the identity directory for requests that omit one.
type Directories interface {
	Directory() (*models.Directory, error)
}

// Handler serves the conversion endpoints.
type Handler struct {
	conv     Converter
	reloader Reloader
	dirs     Directories
}

// NewHandler creates the HTTP handler. reloader and dirs may be nil.
func NewHandler(conv Converter, reloader Reloader, dirs Directories) *Handler {
	return &Handler{conv: conv, reloader: reloader, dirs: dirs}
}

// Routes returns the request multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /convert", h.ServeConvert)
	mux.HandleFunc("POST /summary", h.ServeSummary)
	mux.HandleFunc("POST /reload", h.ServeReload)
	mux.HandleFunc("GET /healthz", h.ServeHealth)
	return mux
}

// ServeConvert converts one bundle and answers with the destination issue.
func (h *Handler) ServeConvert(w http.ResponseWriter, r *http.Request) {
	b, ok := h.decodeBundle(w, r)
	if !ok {
		return
	}
	issue, err := h.conv.Convert(b)
	if err != nil {
		writeConvertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// ServeSummary reports mapping coverage for the bundle's ticket.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	b, ok := h.decodeBundle(w, r)
	if !ok {
		return
	}
	s, err := h.conv.Summary(b.Ticket, b.Directory)
	if err != nil {
		writeConvertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ServeReload swaps in a freshly loaded mapping table. On failure the
// previous table stays active.
func (h *Handler) ServeReload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeError(w, http.StatusNotImplemented, "mapping reload not available")
		return
	}
	if err := h.reloader.Reload(); err != nil {
		slog.Warn("mapping reload rejected", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// ServeHealth is the liveness probe.
func (h *Handler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeBundle(w http.ResponseWriter, r *http.Request) (models.Bundle, bool) {
	var b models.Bundle
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode bundle: %v", err))
		return b, false
	}
	if len(b.Ticket.Record) == 0 {
		writeError(w, http.StatusBadRequest, "bundle has no ticket")
		return b, false
	}
	if b.Directory == nil && h.dirs != nil {
		dir, err := h.dirs.Directory()
		if err != nil {
			slog.Warn("identity directory unavailable", "error", err)
		}
		b.Directory = dir
	}
	return b, true
}

func writeConvertError(w http.ResponseWriter, err error) {
	if errors.Is(err, assembler.ErrNoMappingTable) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	slog.Error("conversion failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

// Serve starts the HTTP server in a goroutine. The returned channel is
// closed once the listener is bound; the server stops when ctx is done.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	server := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
