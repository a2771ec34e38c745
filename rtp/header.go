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

// Package rtp implements RFC 3550 RTP header encoding/decoding and a
// datagram/interleaved endpoint that demultiplexes RTCP and forwards
// decoded media to an application callback.
package rtp

import (
	"encoding/binary"
	"errors"
)

const (
	// Version is the only RTP protocol version this package accepts.
	Version uint8 = 2
	// FixedHeaderSize is the length, in bytes, of the fixed RTP header
	// before any CSRC identifiers or extension.
	FixedHeaderSize int = 12
	// MaxCsrc is the largest CSRC count representable in the 4-bit cc field.
	MaxCsrc int = 15
	// MaxPayloadType is the largest value that fits the 7-bit PT field.
	MaxPayloadType uint8 = 0x7f
)

var (
	// ErrInvalidRtpVersion is returned when the decoded version field is not 2 (spec I7).
	ErrInvalidRtpVersion = errors.New("rtp: invalid protocol version")
	// ErrInvalidRtpPacketSize is returned when the buffer is too short to hold
	// the fixed header, the declared CSRC list or the extension header/body.
	ErrInvalidRtpPacketSize = errors.New("rtp: invalid packet size")
	// ErrInvalidPayloadType is returned by Encode when pt doesn't fit 7 bits.
	ErrInvalidPayloadType = errors.New("rtp: payload type does not fit 7 bits")
	// ErrTooManyCsrc is returned by Encode when more than 15 CSRCs are supplied.
	ErrTooManyCsrc = errors.New("rtp: too many CSRC identifiers")
	// ErrNoHeadroom is returned by Send when buf doesn't reserve FixedHeaderSize
	// leading bytes (plus the extension, if any) for the header to be prepended in place.
	ErrNoHeadroom = errors.New("rtp: insufficient header headroom in buffer")
)

// Extension holds the optional RTP header extension (RFC 3550 §5.3.1).
type Extension struct {
	// Type is the profile-defined identifier carried in the first 16 bits.
	Type uint16
	// Body is the extension payload, Words*4 bytes long.
	Body []byte
}

// Words returns the length of Body in 32-bit words, as encoded on the wire.
func (e *Extension) Words() uint16 {
	return uint16(len(e.Body) / 4)
}

// Header is the decoded form of an RTP packet's fixed header, CSRC list and
// optional extension. It does not carry the payload; callers read that
// directly from the remaining bytes of the decode buffer.
type Header struct {
	Version     uint8
	Padding     bool
	Marker      bool
	PayloadType uint8
	Sequence    uint16
	Timestamp   uint32
	Ssrc        uint32
	Csrc        []uint32
	Extension   *Extension
}

// Decode parses an RTP header from the front of buf and returns the header
// together with the number of bytes consumed (the header only, not the
// payload — spec §4.1 "Advances the read cursor past the header only").
//
// Decode validates buffer length at every extent: the fixed header, the
// CSRC tail and, if present, the extension header and body.
func Decode(buf []byte) (*Header, int, error) {
	if len(buf) < FixedHeaderSize {
		return nil, 0, ErrInvalidRtpPacketSize
	}

	h := &Header{}
	h.Version = (buf[0] & 0xc0) >> 6
	if h.Version != Version {
		return nil, 0, ErrInvalidRtpVersion
	}
	h.Padding = buf[0]&0x20 != 0
	hasExtension := buf[0]&0x10 != 0
	csrcCount := int(buf[0] & 0x0f)

	h.Marker = buf[1]&0x80 != 0
	h.PayloadType = buf[1] & 0x7f
	h.Sequence = binary.BigEndian.Uint16(buf[2:4])
	h.Timestamp = binary.BigEndian.Uint32(buf[4:8])
	h.Ssrc = binary.BigEndian.Uint32(buf[8:12])

	offset := FixedHeaderSize
	if len(buf) < offset+4*csrcCount {
		return nil, 0, ErrInvalidRtpPacketSize
	}
	if csrcCount > 0 {
		h.Csrc = make([]uint32, csrcCount)
		for i := 0; i < csrcCount; i++ {
			h.Csrc[i] = binary.BigEndian.Uint32(buf[offset : offset+4])
			offset += 4
		}
	}

	if hasExtension {
		if len(buf) < offset+4 {
			return nil, 0, ErrInvalidRtpPacketSize
		}
		extType := binary.BigEndian.Uint16(buf[offset : offset+2])
		words := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
		offset += 4
		if len(buf) < offset+4*words {
			return nil, 0, ErrInvalidRtpPacketSize
		}
		body := make([]byte, 4*words)
		copy(body, buf[offset:offset+4*words])
		h.Extension = &Extension{Type: extType, Body: body}
		offset += 4 * words
	}

	return h, offset, nil
}

// Encode writes the fixed header, CSRC list and optional extension into buf
// starting at offset 0, returning the number of bytes written. Version is
// always forced to 2 on the wire.
func Encode(h *Header, buf []byte) (int, error) {
	if h.PayloadType > MaxPayloadType {
		return 0, ErrInvalidPayloadType
	}
	if len(h.Csrc) > MaxCsrc {
		return 0, ErrTooManyCsrc
	}
	size := HeaderLen(h)
	if len(buf) < size {
		return 0, ErrInvalidRtpPacketSize
	}

	buf[0] = (Version << 6) | byte(len(h.Csrc)&0x0f)
	if h.Padding {
		buf[0] |= 0x20
	}
	if h.Extension != nil {
		buf[0] |= 0x10
	}
	buf[1] = h.PayloadType & 0x7f
	if h.Marker {
		buf[1] |= 0x80
	}
	binary.BigEndian.PutUint16(buf[2:4], h.Sequence)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.Ssrc)

	offset := FixedHeaderSize
	for _, csrc := range h.Csrc {
		binary.BigEndian.PutUint32(buf[offset:offset+4], csrc)
		offset += 4
	}

	if h.Extension != nil {
		binary.BigEndian.PutUint16(buf[offset:offset+2], h.Extension.Type)
		binary.BigEndian.PutUint16(buf[offset+2:offset+4], h.Extension.Words())
		offset += 4
		copy(buf[offset:], h.Extension.Body)
		offset += len(h.Extension.Body)
	}

	return offset, nil
}

// HeaderLen returns the number of bytes Encode will write for h.
func HeaderLen(h *Header) int {
	size := FixedHeaderSize + 4*len(h.Csrc)
	if h.Extension != nil {
		size += 4 + len(h.Extension.Body)
	}
	return size
}
