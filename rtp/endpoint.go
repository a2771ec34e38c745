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

package rtp

import (
	"errors"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"

	"github.com/onitake/rtspmedia/rtcp"
	"github.com/onitake/rtspmedia/util"
)

const (
	moduleEndpoint = "rtp_endpoint"
	//
	eventEndpointListening = "listening"
	eventEndpointClosed    = "closed"
	eventEndpointDecodeErr = "decode_error"
	//
	errorEndpointNoPort = "no_port"
)

// Transport identifies how an Endpoint ships its RTP packets.
type Transport int

const (
	// TransportUDP sends/receives RTP over a pair of UDP sockets.
	TransportUDP Transport = iota
	// TransportTCP rides inside an RTSP connection's interleaved data frames.
	TransportTCP
)

var (
	// ErrNotConnected is returned by Send when no transport is bound yet.
	ErrNotConnected = errors.New("rtp: endpoint has no transport bound")
)

// RecvFunc is the application RTP receive callback (spec §6):
// fn(src, &Header, payload, arg).
type RecvFunc func(src net.Addr, header *Header, payload []byte)

// RtcpFunc is the application RTCP receive callback (spec §6):
// fn(src, &RtcpMsg, arg).
type RtcpFunc func(src net.Addr, msg rtcp.Message)

// InterleavedWriter is implemented by an RTSP connection (spec §4.1
// over_tcp): it lets the RTP endpoint ship a frame as RTSP interleaved
// data without importing the rtsp package.
type InterleavedWriter interface {
	SendInterleaved(channel uint8, data []byte) error
}

// Endpoint owns the RTP (and optionally RTCP) transport for one media
// stream: one or two UDP sockets, or an outbound channel inside an RTSP
// TCP connection. See spec §4.1.
type Endpoint struct {
	mu sync.Mutex

	transport Transport
	rtpConn   net.PacketConn
	rtcpConn  net.PacketConn
	localAddr net.Addr
	rtcpPeer  net.Addr

	// tcp-interleaved state
	tcpWriter  InterleavedWriter
	tcpChannel uint8

	seq  uint16
	ssrc uint32

	rtcpMux     bool
	rtcpSession *rtcp.Session

	recvCB RecvFunc
	rtcpCB RtcpFunc

	logger  *util.ModuleLogger
	closed  int32
	readers sync.WaitGroup
}

// Alloc creates an endpoint with a random 15-bit initial sequence and
// random 32-bit SSRC; no sockets are bound yet (spec §4.1 alloc()).
func Alloc() *Endpoint {
	return &Endpoint{
		seq:  uint16(rand.Intn(1 << 15)),
		ssrc: rand.Uint32(),
		logger: &util.ModuleLogger{
			Logger:       &util.ConsoleLogger{},
			Defaults:     util.Dict{"module": moduleEndpoint},
			AddTimestamp: true,
		},
	}
}

// SetLogger assigns a logger backend.
func (e *Endpoint) SetLogger(logger util.Logger) {
	e.logger.Logger = logger
}

// Listen binds RTP to an even port in [minPort, maxPort] and, if enableRtcp
// is set, RTCP to port+1 (spec §4.1 listen). recvCB/rtcpCB are invoked from
// a dedicated receive goroutine per socket.
func (e *Endpoint) Listen(network, local string, minPort, maxPort int, enableRtcp bool, recvCB RecvFunc, rtcpCB RtcpFunc) error {
	host := splitHost(local)
	rtpConn, rtcpConn, err := bindPair(network, host, minPort, maxPort, enableRtcp)
	if err != nil {
		e.logger.Logd(util.Dict{
			"event":   eventEndpointListening,
			"error":   errorEndpointNoPort,
			"message": "No RTP/RTCP port pair available",
		})
		return err
	}
	e.mu.Lock()
	e.transport = TransportUDP
	e.rtpConn = rtpConn
	e.rtcpConn = rtcpConn
	e.localAddr = rtpConn.LocalAddr()
	e.recvCB = recvCB
	e.rtcpCB = rtcpCB
	e.mu.Unlock()

	e.logger.Logd(util.Dict{
		"event":   eventEndpointListening,
		"local":   e.localAddr.String(),
		"message": "RTP endpoint listening",
	})

	e.readers.Add(1)
	go e.receiveLoop(rtpConn, true)
	if rtcpConn != nil {
		e.readers.Add(1)
		go e.receiveLoop(rtcpConn, false)
	}
	return nil
}

// ListenPlay binds a single RTP socket at the given local address, joining
// a multicast group first if local names one (spec §4.1 listen_play).
func (e *Endpoint) ListenPlay(network, local string, recvCB RecvFunc) error {
	var conn net.PacketConn
	if isMulticast(local) {
		addr, err := net.ResolveUDPAddr(network, local)
		if err != nil {
			return err
		}
		conn, err = net.ListenMulticastUDP(network, nil, addr)
		if err != nil {
			return err
		}
	} else {
		var err error
		conn, err = net.ListenPacket(network, local)
		if err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.transport = TransportUDP
	e.rtpConn = conn
	e.localAddr = conn.LocalAddr()
	e.recvCB = recvCB
	e.mu.Unlock()

	e.readers.Add(1)
	go e.receiveLoop(conn, true)
	return nil
}

// Open creates an unbound UDP socket for af ("udp4"/"udp6") for sending
// only (spec §4.1 open).
func (e *Endpoint) Open(af string) error {
	conn, err := net.ListenPacket(af, ":0")
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.transport = TransportUDP
	e.rtpConn = conn
	e.localAddr = conn.LocalAddr()
	e.mu.Unlock()
	return nil
}

// OverTCP builds an endpoint that ships RTP as RTSP interleaved data on
// targetChannel over writer (spec §4.1 over_tcp). The returned endpoint's
// notion of "port" is the channel number, not a real UDP port.
func OverTCP(targetChannel uint8, writer InterleavedWriter) *Endpoint {
	e := Alloc()
	e.transport = TransportTCP
	e.tcpWriter = writer
	e.tcpChannel = targetChannel
	return e
}

// Channel returns the outbound interleaved channel for a TCP-transport
// endpoint.
func (e *Endpoint) Channel() uint8 {
	return e.tcpChannel
}

// LocalAddr returns the bound RTP socket's local address, or nil for a
// TCP-interleaved endpoint.
func (e *Endpoint) LocalAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localAddr
}

// Ssrc returns the endpoint's local SSRC used for encoding.
func (e *Endpoint) Ssrc() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ssrc
}

// Encode writes a fresh RTP header using the endpoint's encoder state into
// the front of buf, returning the number of header bytes written. The
// sequence counter post-increments (spec §4.1 encode).
func (e *Endpoint) Encode(ext *Extension, marker bool, pt uint8, ts uint32, buf []byte) (int, error) {
	if pt > MaxPayloadType {
		return 0, ErrInvalidPayloadType
	}
	e.mu.Lock()
	if e.rtcpMux && rtcp.IsMuxedPacketType(pt) {
		e.mu.Unlock()
		return 0, errors.New("rtp: payload type reserved for RTCP mux")
	}
	h := &Header{
		Marker:      marker,
		PayloadType: pt,
		Sequence:    e.seq,
		Timestamp:   ts,
		Ssrc:        e.ssrc,
		Extension:   ext,
	}
	e.seq++
	e.mu.Unlock()
	return Encode(h, buf)
}

// Decode decodes an RTP header from buf, validating version and extents at
// every step (spec §4.1 decode, I7).
func (e *Endpoint) Decode(buf []byte) (*Header, int, error) {
	return Decode(buf)
}

// Send prepends an RTP header in place (the payload is the last payloadLen
// bytes of buf, preceded by at least FixedHeaderSize bytes of headroom plus
// 4+len(ext.Body) when ext is given; the header carries no CSRCs),
// updates RTCP TX counters and ships the packet via UDP or RTSP
// interleaved write (spec §4.1 send).
func (e *Endpoint) Send(dst net.Addr, ext *Extension, marker bool, pt uint8, ts uint32, buf []byte, payloadLen int) error {
	e.mu.Lock()
	h := &Header{
		Marker:      marker,
		PayloadType: pt,
		Sequence:    e.seq,
		Timestamp:   ts,
		Ssrc:        e.ssrc,
		Extension:   ext,
	}
	headerLen := HeaderLen(h)
	if len(buf) < headerLen {
		e.mu.Unlock()
		return ErrNoHeadroom
	}
	offset := headerLen - FixedHeaderSize - 4*len(h.Csrc)
	if offset < 0 {
		e.mu.Unlock()
		return ErrNoHeadroom
	}
	frameStart := len(buf) - payloadLen - headerLen
	if frameStart < 0 {
		e.mu.Unlock()
		return ErrNoHeadroom
	}
	if _, err := Encode(h, buf[frameStart:]); err != nil {
		e.mu.Unlock()
		return err
	}
	e.seq++
	session := e.rtcpSession
	transport := e.transport
	rtpConn := e.rtpConn
	tcpWriter := e.tcpWriter
	tcpChannel := e.tcpChannel
	e.mu.Unlock()

	frame := buf[frameStart:]
	if session != nil {
		session.OnSend(payloadLen)
	}

	switch transport {
	case TransportUDP:
		if rtpConn == nil {
			return ErrNotConnected
		}
		_, err := rtpConn.WriteTo(frame, dst)
		return err
	case TransportTCP:
		if tcpWriter == nil {
			return ErrNotConnected
		}
		return tcpWriter.SendInterleaved(tcpChannel, frame)
	default:
		return ErrNotConnected
	}
}

// RtcpStart begins an RTCP session and records peer as the destination for
// outgoing reports (spec §4.1 rtcp_start).
func (e *Endpoint) RtcpStart(cname string, peer net.Addr) {
	e.mu.Lock()
	e.rtcpSession = rtcp.NewSession(cname, peer)
	e.rtcpPeer = peer
	e.mu.Unlock()
}

// RtcpMux toggles RTCP-on-RTP-port demultiplexing at the receive side
// (spec §4.1 rtcp_mux). While it is enabled, Encode rejects payload types
// 64-95, the range the receive side routes to RTCP.
func (e *Endpoint) RtcpMux(enabled bool) {
	e.mu.Lock()
	e.rtcpMux = enabled
	e.mu.Unlock()
}

// DecodeInterleaved decodes an RTP header carried inside an RTSP
// interleaved-data payload and invokes the application RTP callback,
// informing the RTCP session first (spec §2 TCP-interleaved data flow).
func (e *Endpoint) DecodeInterleaved(payload []byte) {
	e.deliverRTP(nil, payload)
}

func (e *Endpoint) deliverRTP(src net.Addr, data []byte) {
	h, n, err := Decode(data)
	if err != nil {
		e.logger.Logd(util.Dict{
			"event":   eventEndpointDecodeErr,
			"message": err.Error(),
		})
		return
	}
	payload := data[n:]

	e.mu.Lock()
	session := e.rtcpSession
	cb := e.recvCB
	e.mu.Unlock()

	if session != nil {
		session.OnReceive(h.Sequence, h.Timestamp, h.Ssrc, len(payload))
	}
	if cb != nil {
		cb(src, h, payload)
	}
}

func (e *Endpoint) receiveLoop(conn net.PacketConn, isRtp bool) {
	defer e.readers.Done()
	buf := make([]byte, 65536)
	for atomic.LoadInt32(&e.closed) == 0 {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if n < 2 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		if isRtp {
			e.mu.Lock()
			mux := e.rtcpMux
			rtcpCB := e.rtcpCB
			e.mu.Unlock()
			if mux && rtcp.IsMuxedPacketType(data[1]) {
				e.handleRtcp(src, data, rtcpCB)
				continue
			}
			e.deliverRTP(src, data)
		} else {
			e.mu.Lock()
			rtcpCB := e.rtcpCB
			e.mu.Unlock()
			e.handleRtcp(src, data, rtcpCB)
		}
	}
}

func (e *Endpoint) handleRtcp(src net.Addr, data []byte, cb RtcpFunc) {
	msgs, err := rtcp.Decode(data)
	if err != nil {
		return
	}
	if cb == nil {
		return
	}
	for _, m := range msgs {
		cb(src, m)
	}
}

// Close releases the bound sockets and stops receive goroutines.
func (e *Endpoint) Close() error {
	if !atomic.CompareAndSwapInt32(&e.closed, 0, 1) {
		return nil
	}
	e.mu.Lock()
	rtpConn := e.rtpConn
	rtcpConn := e.rtcpConn
	e.mu.Unlock()
	if rtpConn != nil {
		rtpConn.Close()
	}
	if rtcpConn != nil {
		rtcpConn.Close()
	}
	e.readers.Wait()
	e.logger.Logd(util.Dict{
		"event":   eventEndpointClosed,
		"message": "RTP endpoint closed",
	})
	return nil
}
