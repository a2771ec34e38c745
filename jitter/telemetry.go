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

// Telemetry receives counts of the control events a Buffer produces during
// normal operation: late/duplicate rejections, lost-sequence gaps found at
// drain time, pool overflow (a put that had to steal the oldest frame) and
// underflow (a get that found nothing to return after priming).
//
// A Buffer never holds a nil Telemetry: Alloc installs NoopTelemetry and
// SetTelemetry(nil) restores it, so call sites invoke it unguarded.
type Telemetry interface {
	IncLate()
	IncDuplicate()
	IncLost(n int)
	IncOverflow()
	IncUnderflow()
}

// NoopTelemetry discards every event. It exists so callers that don't care
// about buffer telemetry don't need to write their own no-op type.
type NoopTelemetry struct{}

func (NoopTelemetry) IncLate()      {}
func (NoopTelemetry) IncDuplicate() {}
func (NoopTelemetry) IncLost(int)   {}
func (NoopTelemetry) IncOverflow()  {}
func (NoopTelemetry) IncUnderflow() {}
