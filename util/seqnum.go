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

package util

// SeqBefore compares two 16-bit RTP-style sequence numbers, wrapping around
// at 65536. It returns true if a precedes b on the circular sequence space,
// i.e. if int16(a-b) < 0.
func SeqBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

// SeqAfter is the converse of SeqBefore: it returns true if a follows b.
func SeqAfter(a, b uint16) bool {
	return SeqBefore(b, a)
}

// SeqDistance returns the signed distance from a to b on the circular
// 16-bit sequence space, i.e. the number of steps to add to a to reach b.
// It is negative when b precedes a.
func SeqDistance(a, b uint16) int32 {
	return int32(int16(b - a))
}
