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

package jitter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onitake/rtspmedia/metrics"
)

// PromTelemetry counts buffer control events with prometheus counters,
// labelled by the stream name the buffer was created for.
type PromTelemetry struct {
	late      prometheus.Counter
	duplicate prometheus.Counter
	lost      prometheus.Counter
	overflow  prometheus.Counter
	underflow prometheus.Counter
}

var (
	jitterLateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtspmedia_jitter_late_total",
		Help: "Packets rejected by the jitter buffer as arriving after the last drained sequence.",
	}, []string{"stream"})
	jitterDuplicateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtspmedia_jitter_duplicate_total",
		Help: "Packets rejected by the jitter buffer as duplicates of an already-queued sequence.",
	}, []string{"stream"})
	jitterLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtspmedia_jitter_lost_total",
		Help: "Sequence gaps observed while draining the jitter buffer.",
	}, []string{"stream"})
	jitterOverflowTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtspmedia_jitter_overflow_total",
		Help: "Puts that had to steal the oldest queued frame because the pool was exhausted.",
	}, []string{"stream"})
	jitterUnderflowTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtspmedia_jitter_underflow_total",
		Help: "Gets that found an empty queue after the buffer had started draining.",
	}, []string{"stream"})
)

func init() {
	metrics.MustRegister(jitterLateTotal, jitterDuplicateTotal, jitterLostTotal, jitterOverflowTotal, jitterUnderflowTotal)
}

// NewPromTelemetry returns a Telemetry that reports to the default
// prometheus registry under the given stream label.
func NewPromTelemetry(stream string) *PromTelemetry {
	return &PromTelemetry{
		late:      jitterLateTotal.WithLabelValues(stream),
		duplicate: jitterDuplicateTotal.WithLabelValues(stream),
		lost:      jitterLostTotal.WithLabelValues(stream),
		overflow:  jitterOverflowTotal.WithLabelValues(stream),
		underflow: jitterUnderflowTotal.WithLabelValues(stream),
	}
}

func (p *PromTelemetry) IncLate()      { p.late.Inc() }
func (p *PromTelemetry) IncDuplicate() { p.duplicate.Inc() }
func (p *PromTelemetry) IncLost(n int) { p.lost.Add(float64(n)) }
func (p *PromTelemetry) IncOverflow()  { p.overflow.Inc() }
func (p *PromTelemetry) IncUnderflow() { p.underflow.Inc() }
