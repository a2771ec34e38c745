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

// Package rtcp wraps github.com/pion/rtcp to give an RTP endpoint (spec
// §4.1) just enough session bookkeeping to demultiplex and account for
// RTCP traffic arriving alongside a media stream. Report generation
// beyond what the session needs internally is out of scope (spec §1
// Non-goals); this package decodes incoming compound packets and tracks
// the TX/RX counters an SR/RR would otherwise be built from.
package rtcp

import (
	"net"
	"sync"

	"github.com/pion/rtcp"
)

// PacketTypeLow and PacketTypeHigh bound the RTCP packet-type range used to
// demultiplex RTCP from RTP when both share one port (spec §4.1, §9(c)):
// "the second byte's low 7 bits are in [64, 95]".
const (
	PacketTypeLow  = 64
	PacketTypeHigh = 95
)

// IsMuxedPacketType reports whether b, the second byte of a UDP datagram,
// falls in the RTCP packet-type range used for RTP/RTCP port multiplexing.
func IsMuxedPacketType(b byte) bool {
	pt := b & 0x7f
	return pt >= PacketTypeLow && pt <= PacketTypeHigh
}

// Session tracks per-stream send/receive counters and decodes inbound
// compound RTCP packets. It is created by an RTP endpoint's rtcp_start and
// lives for the duration of the media session.
type Session struct {
	mu sync.Mutex

	cname string
	peer  net.Addr

	txPackets uint32
	txOctets  uint32

	rxPackets uint32
	rxOctets  uint32
	lastSeq   uint16
	haveSeq   bool
	lastSsrc  uint32
}

// NewSession starts an RTCP session bound to cname and the given report peer.
func NewSession(cname string, peer net.Addr) *Session {
	return &Session{cname: cname, peer: peer}
}

// Peer returns the address RTCP reports should be sent to.
func (s *Session) Peer() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// SetPeer updates the RTCP report destination, e.g. after learning it from
// an RTSP Transport header.
func (s *Session) SetPeer(peer net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = peer
}

// OnSend records that an RTP packet of payloadLen bytes was transmitted,
// updating the sender-side counters an SR would report.
func (s *Session) OnSend(payloadLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txPackets++
	s.txOctets += uint32(payloadLen)
}

// OnReceive records an inbound RTP packet's sequence/timestamp/ssrc/length,
// per spec §4.1 "decode RTP and inform RTCP (sequence, ts, ssrc, payload
// length) before the application callback."
func (s *Session) OnReceive(seq uint16, timestamp uint32, ssrc uint32, payloadLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxPackets++
	s.rxOctets += uint32(payloadLen)
	s.lastSeq = seq
	s.haveSeq = true
	s.lastSsrc = ssrc
}

// Stats is a snapshot of a Session's counters.
type Stats struct {
	TxPackets, TxOctets uint32
	RxPackets, RxOctets uint32
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TxPackets: s.txPackets,
		TxOctets:  s.txOctets,
		RxPackets: s.rxPackets,
		RxOctets:  s.rxOctets,
	}
}

// Message is a single decoded RTCP packet handed to the application's RTCP
// receive callback (spec §6).
type Message struct {
	Packet rtcp.Packet
}

// Decode unmarshals a compound RTCP packet. It is used both by the RTP
// endpoint's muxed-port demultiplexer and by a dedicated RTCP socket.
func Decode(buf []byte) ([]Message, error) {
	packets, err := rtcp.Unmarshal(buf)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, len(packets))
	for i, p := range packets {
		msgs[i] = Message{Packet: p}
	}
	return msgs, nil
}

// EncodeSenderReport builds and marshals a minimal SR for this session's
// current TX counters, carrying no reception-report blocks.
func (s *Session) EncodeSenderReport(ssrc uint32, ntpTime uint64, rtpTime uint32) ([]byte, error) {
	s.mu.Lock()
	sr := &rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     ntpTime,
		RTPTime:     rtpTime,
		PacketCount: s.txPackets,
		OctetCount:  s.txOctets,
	}
	s.mu.Unlock()
	return sr.Marshal()
}
