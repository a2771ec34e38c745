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
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/onitake/rtspmedia/util"
)

const (
	moduleSocket = "rtsp_socket"

	eventSocketListening = "listening"
	eventSocketAccepted  = "accepted"
	eventSocketRejected  = "rejected"
	eventSocketClosed    = "closed"

	errorSocketAccept    = "accept"
	errorSocketTlsUpgrade = "tls_upgrade"
)

const (
	// defaultAcceptRate and defaultAcceptBurst pace how fast new
	// connections are handed off to a Connection (spec's accept path has
	// no cap of its own; this guards against accept-loop storms).
	defaultAcceptRate  = 200
	defaultAcceptBurst = 50
)

// Socket owns exactly one TCP listener and the list of connections it
// accepted (spec §5 "Ownership"): it exclusively owns the listener and
// the connection list, and is the only side that ever walks the list.
type Socket struct {
	mu       sync.Mutex
	listener net.Listener
	tlsConf  *tls.Config
	handler  MessageHandler
	logger   *util.ModuleLogger
	limiter  *rate.Limiter
	head     *Connection
	closed   int32
}

// Listen opens a plain TCP RTSP listener and starts its accept loop.
func Listen(addr string, handler MessageHandler) (*Socket, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newSocket(l, nil, handler), nil
}

// ListenSecure layers TLS onto a TCP listener using the given certificate
// and key files. Client-certificate verification is not performed on
// inbound connections (spec §4.3.1).
func ListenSecure(addr, certFile, keyFile string, handler MessageHandler) (*Socket, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	conf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return newSocket(l, conf, handler), nil
}

func newSocket(l net.Listener, tlsConf *tls.Config, handler MessageHandler) *Socket {
	s := &Socket{
		listener: l,
		tlsConf:  tlsConf,
		handler:  handler,
		limiter:  rate.NewLimiter(rate.Limit(defaultAcceptRate), defaultAcceptBurst),
		logger: util.NewGlobalModuleLogger(moduleSocket, util.Dict{
			"listen": l.Addr().String(),
		}).(*util.ModuleLogger),
	}
	s.logger.Logd(util.Dict{
		"event":   eventSocketListening,
		"message": "accepting RTSP connections",
		"secure":  tlsConf != nil,
	})
	go s.acceptLoop()
	return s
}

// Addr returns the listener's bound address.
func (s *Socket) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Socket) isClosed() bool {
	return atomic.LoadInt32(&s.closed) != 0
}

func (s *Socket) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isClosed() {
				s.logger.Logd(util.Dict{
					"event":   eventSocketRejected,
					"error":   errorSocketAccept,
					"message": err.Error(),
				})
			}
			return
		}

		if err := s.limiter.Wait(context.Background()); err != nil {
			conn.Close()
			continue
		}

		// The handshake (when present) and the rest of connection setup run
		// on their own goroutine so a single stalling client can't hold up
		// Accept() for every connection still waiting behind it: libre's
		// connect_handler kicks the same work off without blocking its
		// single event-loop thread, and one-goroutine-per-connection is
		// this package's translation of that.
		go s.handleAccepted(conn)
	}
}

func (s *Socket) handleAccepted(conn net.Conn) {
	if s.tlsConf != nil {
		tlsConn := tls.Server(conn, s.tlsConf)
		if err := tlsConn.Handshake(); err != nil {
			s.logger.Logd(util.Dict{
				"event":   eventSocketRejected,
				"error":   errorSocketTlsUpgrade,
				"message": err.Error(),
			})
			tlsConn.Close()
			return
		}
		conn = tlsConn
	}

	c := newConnection(conn, s, s.handler)
	s.attach(c)
	s.logger.Logd(util.Dict{
		"event":  eventSocketAccepted,
		"remote": c.Peer().String(),
	})
	c.run()
}

func (s *Socket) attach(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.next = s.head
	c.prev = nil
	if s.head != nil {
		s.head.prev = c
	}
	s.head = c
}

func (s *Socket) detach(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.prev != nil {
		c.prev.next = c.next
	} else if s.head == c {
		s.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	}
	c.prev = nil
	c.next = nil
}

// Close stops accepting new connections and closes every connection this
// socket owns. It snapshots each connection's next pointer before closing
// it (spec §5), since Close detaches itself from the list.
func (s *Socket) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	err := s.listener.Close()

	s.mu.Lock()
	cur := s.head
	s.head = nil
	s.mu.Unlock()

	for cur != nil {
		next := cur.next
		cur.Close()
		cur = next
	}

	s.logger.Logd(util.Dict{
		"event":   eventSocketClosed,
		"message": "listener closed",
	})
	return err
}
