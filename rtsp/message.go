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

// Package rtsp implements the text-framed RTSP message codec (RFC 2326 /
// 7826) and a connection-oriented TCP/TLS server built on it. Unlike a
// general-purpose HTTP-ish parser, this codec shares its framing with
// interleaved binary data (ILD) on the same TCP stream. A Message's Raw and
// Body alias the caller's input buffer, which the garbage collector keeps
// alive for as long as the Message is referenced; header names and values
// are unfolded into fresh copies and do not depend on that buffer.
package rtsp

import (
	"bytes"
	"strconv"
)

// startLineCap bounds how many bytes of unterminated input are tolerated
// before a missing start-line terminator is treated as malformed rather
// than merely incomplete.
const startLineCap = 8192

// MessageType distinguishes the three framings sharing one TCP stream.
type MessageType int

const (
	MessageRequest MessageType = iota
	MessageResponse
	MessageInterleaved
)

// Message is a single decoded RTSP request, response or interleaved data
// frame. Body aliases Raw; the Name/Value slices in Headers are copies.
type Message struct {
	Type MessageType

	Method string
	Path   string

	ProtoMajor int
	ProtoMinor int

	StatusCode int
	Reason     string

	Headers []Header

	ContentType       string
	HaveContentType   bool
	ContentLength     int
	HaveContentLength bool
	CSeq              uint32
	HaveCSeq          bool

	Body []byte

	// Channel and the length implied by Raw are only meaningful when
	// Type == MessageInterleaved.
	Channel uint8

	// Raw is the full byte range this message was decoded from, kept
	// alive so Headers/Body slices stay valid.
	Raw []byte
}

// Decode attempts to parse one message from the front of buf. It returns
// the message and the number of bytes consumed on success.
//
// ErrNeedMoreData means buf doesn't yet hold a complete message; the
// caller should retain buf (or its tail) and retry once more bytes
// arrive. ErrMalformed means buf can never become valid and the
// connection should be closed (spec §4.3.4).
func Decode(buf []byte) (*Message, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreData
	}

	if buf[0] == 0x24 {
		return decodeInterleaved(buf)
	}
	return decodeText(buf)
}

func decodeInterleaved(buf []byte) (*Message, int, error) {
	const ildHeaderLen = 4
	if len(buf) < ildHeaderLen {
		return nil, 0, ErrNeedMoreData
	}
	channel := buf[1]
	length := int(buf[2])<<8 | int(buf[3])
	total := ildHeaderLen + length
	if len(buf) < total {
		return nil, 0, ErrNeedMoreData
	}
	msg := &Message{
		Type:    MessageInterleaved,
		Channel: channel,
		Body:    buf[ildHeaderLen:total],
		Raw:     buf[:total],
	}
	return msg, total, nil
}

func decodeText(buf []byte) (*Message, int, error) {
	searchLimit := len(buf)
	if searchLimit > startLineCap {
		searchLimit = startLineCap
	}
	lineEnd := bytes.IndexByte(buf[:searchLimit], '\n')
	if lineEnd < 0 {
		if len(buf) > startLineCap {
			return nil, 0, ErrMalformed
		}
		return nil, 0, ErrNeedMoreData
	}

	line := buf[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	msg, err := parseStartLine(line)
	if err != nil {
		return nil, 0, err
	}

	headers, headerEnd, err := parseHeaderBlock(buf, lineEnd+1)
	if err != nil {
		return nil, 0, err
	}
	msg.Headers = headers
	applyTypedHeaders(msg, headers)

	contentLength := 0
	if msg.HaveContentLength {
		if msg.ContentLength < 0 {
			return nil, 0, ErrMalformed
		}
		contentLength = msg.ContentLength
	}

	total := headerEnd + contentLength
	if len(buf) < total {
		return nil, 0, ErrNeedMoreData
	}

	msg.Body = buf[headerEnd:total]
	msg.Raw = buf[:total]
	return msg, total, nil
}

func parseStartLine(line []byte) (*Message, error) {
	if bytes.HasPrefix(line, []byte("RTSP/")) {
		return parseStatusLine(line)
	}
	return parseRequestLine(line)
}

func parseStatusLine(line []byte) (*Message, error) {
	rest := line[len("RTSP/"):]
	dot := bytes.IndexByte(rest, '.')
	if dot < 0 {
		return nil, ErrMalformed
	}
	major, err := strconv.Atoi(string(rest[:dot]))
	if err != nil {
		return nil, ErrMalformed
	}
	rest = rest[dot+1:]
	sp := bytes.IndexByte(rest, ' ')
	if sp < 0 {
		return nil, ErrMalformed
	}
	minor, err := strconv.Atoi(string(rest[:sp]))
	if err != nil {
		return nil, ErrMalformed
	}
	rest = rest[sp+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	var codeBytes, reason []byte
	if sp2 < 0 {
		codeBytes = rest
	} else {
		codeBytes = rest[:sp2]
		reason = rest[sp2+1:]
	}
	code, err := strconv.Atoi(string(codeBytes))
	if err != nil {
		return nil, ErrMalformed
	}
	return &Message{
		Type:       MessageResponse,
		ProtoMajor: major,
		ProtoMinor: minor,
		StatusCode: code,
		Reason:     string(reason),
	}, nil
}

func parseRequestLine(line []byte) (*Message, error) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return nil, ErrMalformed
	}
	method := line[:sp1]
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 < 0 {
		return nil, ErrMalformed
	}
	path := rest[:sp2]
	verPart := rest[sp2+1:]
	if !bytes.HasPrefix(verPart, []byte("RTSP/")) {
		return nil, ErrMalformed
	}
	verPart = verPart[len("RTSP/"):]
	dot := bytes.IndexByte(verPart, '.')
	if dot < 0 {
		return nil, ErrMalformed
	}
	major, err1 := strconv.Atoi(string(verPart[:dot]))
	minor, err2 := strconv.Atoi(string(verPart[dot+1:]))
	if err1 != nil || err2 != nil {
		return nil, ErrMalformed
	}
	return &Message{
		Type:       MessageRequest,
		Method:     string(method),
		Path:       string(path),
		ProtoMajor: major,
		ProtoMinor: minor,
	}, nil
}

// parseHeaderBlock walks buf[start:] one logical header line at a time,
// folding continuation lines and comma-splitting the headers listed in
// commaFoldedIDs, until it reaches the blank line that ends the block. It
// returns the parsed headers and the offset of the first body byte.
func parseHeaderBlock(buf []byte, start int) ([]Header, int, error) {
	var headers []Header
	pos := start
	for {
		if pos >= len(buf) {
			return nil, 0, ErrNeedMoreData
		}
		if buf[pos] == '\r' {
			if pos+1 >= len(buf) {
				return nil, 0, ErrNeedMoreData
			}
			if buf[pos+1] == '\n' {
				return headers, pos + 2, nil
			}
		}
		if buf[pos] == '\n' {
			return headers, pos + 1, nil
		}

		lineStart := pos
		for {
			nl := bytes.IndexByte(buf[pos:], '\n')
			if nl < 0 {
				return nil, 0, ErrNeedMoreData
			}
			next := pos + nl + 1
			if next < len(buf) && (buf[next] == ' ' || buf[next] == '\t') {
				pos = next
				continue
			}
			pos = next
			break
		}
		rawLine := buf[lineStart:pos]

		idx := bytes.IndexByte(rawLine, ':')
		if idx < 0 {
			return nil, 0, ErrMalformed
		}
		name := bytes.TrimSpace(unfoldHeaderLine(rawLine[:idx]))
		valuePart := unfoldHeaderLine(rawLine[idx+1:])
		id := headerIDBytes(lowerCopy(name))

		if commaFoldedIDs[id] {
			for _, part := range splitUnquotedCommas(valuePart) {
				v := bytes.TrimSpace(part)
				headers = append(headers, Header{Name: name, Value: v, ID: id})
			}
		} else {
			headers = append(headers, Header{Name: name, Value: bytes.TrimSpace(valuePart), ID: id})
		}
	}
}

// unfoldHeaderLine collapses every CR/LF run (plus the fold whitespace
// that follows it) into a single space, leaving the header's logical
// value as the caller intended it before line wrapping.
func unfoldHeaderLine(b []byte) []byte {
	out := make([]byte, 0, len(b))
	i := 0
	for i < len(b) {
		c := b[i]
		if c == '\r' || c == '\n' {
			j := i
			for j < len(b) && (b[j] == '\r' || b[j] == '\n') {
				j++
			}
			for j < len(b) && (b[j] == ' ' || b[j] == '\t') {
				j++
			}
			out = append(out, ' ')
			i = j
			continue
		}
		out = append(out, c)
		i++
	}
	return out
}

// splitUnquotedCommas splits b on commas that fall outside a double-quoted
// string, implementing the comma-folded-header rule from spec §4.2.2.
func splitUnquotedCommas(b []byte) [][]byte {
	var parts [][]byte
	start := 0
	inQuote := false
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				parts = append(parts, b[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, b[start:])
	return parts
}

func lowerCopy(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// applyTypedHeaders lifts Content-Type, Content-Length and CSeq out of the
// generic header list into typed Message fields (spec §4.2.2).
func applyTypedHeaders(msg *Message, headers []Header) {
	for _, h := range headers {
		switch h.ID {
		case HeaderContentType:
			msg.ContentType = string(h.Value)
			msg.HaveContentType = true
		case HeaderContentLength:
			if n, err := strconv.Atoi(string(bytes.TrimSpace(h.Value))); err == nil {
				msg.ContentLength = n
				msg.HaveContentLength = true
			}
		case HeaderCSeq:
			if n, err := strconv.ParseUint(string(bytes.TrimSpace(h.Value)), 10, 32); err == nil {
				msg.CSeq = uint32(n)
				msg.HaveCSeq = true
			}
		}
	}
}
