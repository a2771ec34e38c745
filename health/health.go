/* Copyright (c) 2019 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package health serves the JSON status and Prometheus scrape endpoints
// alongside the RTSP listeners, following the split api.go used for HTTP
// status pages: one small ServeHTTP handler per concern, wired into a
// plain net/http.ServeMux rather than a framework.
package health

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/onitake/rtspmedia/jitter"
	"github.com/onitake/rtspmedia/metrics"
)

// TrackStatus is a named jitter buffer the health handler reports on.
type TrackStatus struct {
	Name   string
	Buffer *jitter.Buffer
}

// Registry tracks the set of active tracks for the health endpoint.
// Tracks are added with Add and dropped with Remove; rtspd registers a
// single demonstration buffer named "demo".
type Registry struct {
	mu     sync.Mutex
	tracks map[string]*jitter.Buffer
}

// NewRegistry creates an empty track registry.
func NewRegistry() *Registry {
	return &Registry{tracks: make(map[string]*jitter.Buffer)}
}

// Add registers a jitter buffer under name, replacing any previous entry.
func (r *Registry) Add(name string, buf *jitter.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[name] = buf
}

// Remove drops a track from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, name)
}

func (r *Registry) snapshot() []TrackStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TrackStatus, 0, len(r.tracks))
	for name, buf := range r.tracks {
		out = append(out, TrackStatus{Name: name, Buffer: buf})
	}
	return out
}

// healthReport is the wire shape of the /health response.
type healthReport struct {
	Status string        `json:"status"`
	Tracks []trackReport `json:"tracks"`
}

type trackReport struct {
	Name       string  `json:"name"`
	Queued     int     `json:"queued"`
	State      string  `json:"state"`
	JitterMs   float64 `json:"jitter_ms"`
	AvBufMs    float64 `json:"avbuftime_ms"`
	Late       uint64  `json:"late"`
	Duplicate  uint64  `json:"duplicate"`
	Lost       uint64  `json:"lost"`
	Overflow   uint64  `json:"overflow"`
	Underflow  uint64  `json:"underflow"`
}

// healthHandler reports per-track jitter buffer status as JSON.
type healthHandler struct {
	registry *Registry
}

// NewHandler returns the /health handler for the given registry.
func NewHandler(registry *Registry) http.Handler {
	return &healthHandler{registry: registry}
}

func (h *healthHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Add("Content-Type", "application/json")

	tracks := h.registry.snapshot()
	report := healthReport{Status: "ok", Tracks: make([]trackReport, 0, len(tracks))}
	for _, t := range tracks {
		stats := t.Buffer.Stats()
		report.Tracks = append(report.Tracks, trackReport{
			Name:      t.Name,
			Queued:    stats.Queued,
			State:     stats.State,
			JitterMs:  stats.JitterMs,
			AvBufMs:   stats.AvBufTimeMs,
			Late:      stats.Late,
			Duplicate: stats.Duplicate,
			Lost:      stats.Lost,
			Overflow:  stats.Overflow,
			Underflow: stats.Underflow,
		})
	}

	response, err := json.Marshal(&report)
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		writer.Write([]byte(http.StatusText(http.StatusInternalServerError)))
		return
	}
	writer.WriteHeader(http.StatusOK)
	writer.Write(response)
}

// NewMux builds the status HTTP surface: /health for the JSON track report
// and /metrics for the Prometheus registry, served on the same port
// (spec.md §7's telemetry counters, exposed over HTTP per SPEC_FULL.md's
// supplemented features).
func NewMux(registry *Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", NewHandler(registry))
	mux.Handle("/metrics", metrics.PromHandler())
	return mux
}
