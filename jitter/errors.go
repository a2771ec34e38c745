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

import "errors"

var (
	// ErrInvalidSize is returned by Alloc when min/max/wish violate the
	// sizing constraints (min >= 1, max >= min+3, max >= min*220/125).
	ErrInvalidSize = errors.New("jitter: invalid buffer sizing")
	// ErrLate is returned by Put when the arriving sequence is not after
	// the most recently drained sequence. Treated as a control signal, not
	// a buffer failure.
	ErrLate = errors.New("jitter: late packet")
	// ErrDuplicate is returned by Put when a frame with the same sequence
	// is already queued.
	ErrDuplicate = errors.New("jitter: duplicate packet")
	// ErrNotReady is returned by Get before the buffer has primed past its
	// wish size, when the queue has drained, or when a silence-triggered
	// grow is holding back playback.
	ErrNotReady = errors.New("jitter: not ready")
)
