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

package rtsp

import "errors"

var (
	// ErrNeedMoreData means the buffer doesn't yet hold a complete message;
	// the caller should rewind its cursor and wait for more bytes.
	ErrNeedMoreData = errors.New("rtsp: need more data")
	// ErrMalformed means the buffer can never become a valid message no
	// matter how many more bytes arrive; the connection should be closed.
	ErrMalformed = errors.New("rtsp: malformed message")
	// ErrOverflow is returned by SendInterleaved when a payload exceeds the
	// 16-bit ILD length field. A connection whose pending input exceeds the
	// per-connection cap is closed instead; no error value is surfaced.
	ErrOverflow = errors.New("rtsp: input buffer overflow")
	// ErrSelfCheckFailed means an outbound message failed to parse when fed
	// back through Decode; the send was aborted.
	ErrSelfCheckFailed = errors.New("rtsp: outbound message failed self-check")
	// ErrConnectionClosed is returned by send operations on a closed connection.
	ErrConnectionClosed = errors.New("rtsp: connection closed")
)
