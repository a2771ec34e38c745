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

package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onitake/rtspmedia/jitter"
)

func TestHealthHandlerReportsRegisteredTracks(t *testing.T) {
	buf, err := jitter.Alloc(2, 50, 4)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	registry := NewRegistry()
	registry.Add("audio0", buf)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	NewHandler(registry).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var report healthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if report.Status != "ok" {
		t.Errorf("unexpected status field: %q", report.Status)
	}
	if len(report.Tracks) != 1 || report.Tracks[0].Name != "audio0" {
		t.Errorf("unexpected tracks: %+v", report.Tracks)
	}
}

func TestRegistryRemove(t *testing.T) {
	buf, _ := jitter.Alloc(2, 50, 4)
	registry := NewRegistry()
	registry.Add("video0", buf)
	registry.Remove("video0")

	if len(registry.snapshot()) != 0 {
		t.Error("expected empty registry after Remove")
	}
}

func TestMuxServesMetricsEndpoint(t *testing.T) {
	registry := NewRegistry()
	mux := NewMux(registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status from /metrics: %d", rec.Code)
	}
}
