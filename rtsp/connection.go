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

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onitake/rtspmedia/util"
)

const (
	moduleConnection = "rtsp_connection"

	eventConnectionAccepted  = "accepted"
	eventConnectionMessage   = "message"
	eventConnectionTimeout   = "timeout"
	eventConnectionOverflow  = "overflow"
	eventConnectionMalformed = "malformed"
	eventConnectionClosed    = "closed"

	errorConnectionPeerGone = "peer_gone"
)

const (
	// initialTimeout closes a freshly accepted connection if no complete
	// message arrives within it (spec §4.3.1).
	initialTimeout = 10 * time.Second
	// idleTimeout closes an established connection after this much
	// inactivity (spec §4.3.2).
	idleTimeout = 600 * time.Second
	// maxPendingBytes is the per-connection input accumulation cap
	// (spec §4.3.2): exceeding it is always fatal to the connection.
	maxPendingBytes = 512 * 1024
	// readChunk is how much is read from the socket per Read call.
	readChunk = 4096
)

// MessageHandler is invoked for every decoded message. If the handler
// closes the connection, the receive loop notices and stops without
// touching it again.
type MessageHandler func(conn *Connection, msg *Message)

// Connection is one accepted RTSP TCP (optionally TLS) connection. Its
// receive loop runs on its own goroutine, which is this module's
// translation of the spec's single-threaded event-loop-delivered receive
// callback (§5) into Go's usual one-goroutine-per-connection idiom; there
// is still exactly one goroutine touching a given Connection's parse state
// at a time.
type Connection struct {
	mu      sync.Mutex
	conn    net.Conn
	peer    net.Addr
	pending []byte

	timer *time.Timer

	closed  int32
	handler MessageHandler
	logger  *util.ModuleLogger

	parent *Socket
	// prev/next form the intrusive doubly-linked list the owning Socket
	// walks on teardown (spec §5 "Ownership").
	prev, next *Connection
}

func newConnection(c net.Conn, parent *Socket, handler MessageHandler) *Connection {
	peer := c.RemoteAddr()
	return &Connection{
		conn:    c,
		peer:    peer,
		handler: handler,
		parent:  parent,
		logger: util.NewGlobalModuleLogger(moduleConnection, util.Dict{
			"remote": peer.String(),
		}).(*util.ModuleLogger),
	}
}

// Peer returns the connection's remote address.
func (c *Connection) Peer() net.Addr {
	return c.peer
}

// SetLogger installs a connection-scoped logger.
func (c *Connection) SetLogger(logger util.Logger) {
	if ml, ok := logger.(*util.ModuleLogger); ok {
		c.logger = ml
	}
}

func (c *Connection) isClosed() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

// run arms the initial timer and starts the receive loop. Called by Socket
// right after accept (and, for TLS listeners, after the handshake).
func (c *Connection) run() {
	c.mu.Lock()
	c.timer = time.AfterFunc(initialTimeout, c.onTimeout)
	c.mu.Unlock()
	go c.receiveLoop()
}

func (c *Connection) onTimeout() {
	c.logger.Logd(util.Dict{
		"event":   eventConnectionTimeout,
		"message": "no complete message before the deadline",
	})
	c.Close()
}

func (c *Connection) resetTimer(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, c.onTimeout)
}

// receiveLoop reads from the socket, accumulates into the pending buffer
// and repeatedly drains complete messages from its front (spec §4.3.2).
func (c *Connection) receiveLoop() {
	buf := make([]byte, readChunk)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if !c.absorb(buf[:n]) {
				return
			}
		}
		if err != nil {
			if !c.isClosed() {
				c.logger.Logd(util.Dict{
					"event":   eventConnectionClosed,
					"error":   errorConnectionPeerGone,
					"message": err.Error(),
				})
			}
			c.Close()
			return
		}
	}
}

// absorb appends data to the pending buffer and drains as many complete
// messages as are available. It returns false if the connection was
// closed in the process (overflow or malformed input), in which case the
// receive loop must stop.
func (c *Connection) absorb(data []byte) bool {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	if len(c.pending) > maxPendingBytes {
		c.mu.Unlock()
		c.logger.Logd(util.Dict{
			"event":   eventConnectionOverflow,
			"message": "pending input exceeded the per-connection cap",
		})
		c.Close()
		return false
	}

	for {
		msg, consumed, err := Decode(c.pending)
		if err == ErrNeedMoreData {
			c.mu.Unlock()
			return true
		}
		if err != nil {
			c.mu.Unlock()
			c.logger.Logd(util.Dict{
				"event":   eventConnectionMalformed,
				"message": err.Error(),
			})
			c.Close()
			return false
		}

		c.pending = append([]byte(nil), c.pending[consumed:]...)
		c.mu.Unlock()

		c.resetTimer(idleTimeout)
		if c.handler != nil {
			c.handler(c, msg)
		}
		if c.isClosed() {
			return false
		}
		c.mu.Lock()
	}
}

// write sends raw bytes to the peer. Safe to call from the application's
// message handler, which runs on the connection's own receive goroutine.
func (c *Connection) write(data []byte) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}
	_, err := c.conn.Write(data)
	return err
}

// Reply sends a status line plus either extraHeaders (already CRLF-joined,
// including its own terminating blank line) or a bare Content-Length: 0.
// Every outbound message is parsed back by Decode before it's written
// (spec §4.3.3's self-check); a parse failure aborts the send.
func (c *Connection) Reply(major, minor, code int, reason string, extraHeaders []byte) error {
	var out []byte
	out = append(out, []byte(fmt.Sprintf("RTSP/%d.%d %d %s\r\n", major, minor, code, reason))...)
	if len(extraHeaders) > 0 {
		out = append(out, extraHeaders...)
	} else {
		out = append(out, []byte("Content-Length: 0\r\n\r\n")...)
	}
	return c.sendChecked(out)
}

// CReply is Reply plus a body: it appends Content-Type/Content-Length and
// the body verbatim after any caller-supplied headers.
func (c *Connection) CReply(major, minor, code int, reason, contentType string, body []byte, extraHeaders []byte) error {
	var out []byte
	out = append(out, []byte(fmt.Sprintf("RTSP/%d.%d %d %s\r\n", major, minor, code, reason))...)
	out = append(out, extraHeaders...)
	out = append(out, []byte(fmt.Sprintf("Content-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, len(body)))...)
	out = append(out, body...)
	return c.sendChecked(out)
}

// SendRequest formats and sends a bare RTSP request line plus headers,
// self-checked the same way Reply is.
func (c *Connection) SendRequest(method, path string, major, minor int, extraHeaders []byte) error {
	var out []byte
	out = append(out, []byte(fmt.Sprintf("%s %s RTSP/%d.%d\r\n", method, path, major, minor))...)
	if len(extraHeaders) > 0 {
		out = append(out, extraHeaders...)
	} else {
		out = append(out, []byte("Content-Length: 0\r\n\r\n")...)
	}
	return c.sendChecked(out)
}

// SendCRequest is SendRequest plus a body.
func (c *Connection) SendCRequest(method, path string, major, minor int, contentType string, body []byte, extraHeaders []byte) error {
	var out []byte
	out = append(out, []byte(fmt.Sprintf("%s %s RTSP/%d.%d\r\n", method, path, major, minor))...)
	out = append(out, extraHeaders...)
	out = append(out, []byte(fmt.Sprintf("Content-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, len(body)))...)
	out = append(out, body...)
	return c.sendChecked(out)
}

func (c *Connection) sendChecked(data []byte) error {
	if _, _, err := Decode(data); err != nil {
		return ErrSelfCheckFailed
	}
	return c.write(data)
}

// SendInterleaved writes one ILD frame (0x24, channel, big-endian length,
// payload) without running it through the self-check: send_ild in the
// spec is explicitly unparsed, since its payload is arbitrary media data
// rather than an RTSP message. It satisfies rtp.InterleavedWriter, letting
// an RTP endpoint use this connection as its TCP transport without rtsp
// importing rtp.
func (c *Connection) SendInterleaved(channel uint8, data []byte) error {
	if len(data) > 0xFFFF {
		return ErrOverflow
	}
	header := make([]byte, 4)
	header[0] = 0x24
	header[1] = channel
	binary.BigEndian.PutUint16(header[2:], uint16(len(data)))
	if err := c.write(header); err != nil {
		return err
	}
	return c.write(data)
}

// Close detaches the connection from its socket's list, cancels its timer
// and closes the underlying transport. It is safe to call more than once
// and safe to call from within the message handler.
func (c *Connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	if c.parent != nil {
		c.parent.detach(c)
	}

	c.logger.Logd(util.Dict{
		"event":   eventConnectionClosed,
		"message": "connection closed",
	})
	return c.conn.Close()
}
