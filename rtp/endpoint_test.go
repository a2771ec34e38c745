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
	"net"
	"sync"
	"testing"
	"time"
)

func TestEndpointUDPRoundTrip(t *testing.T) {
	rx := Alloc()
	received := make(chan *Header, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	err := rx.Listen("udp4", "127.0.0.1", 16000, 16100, false, func(src net.Addr, h *Header, payload []byte) {
		received <- h
		wg.Done()
	}, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer rx.Close()

	tx := Alloc()
	if err := tx.Open("udp4"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tx.Close()

	payload := []byte("hello")
	buf := make([]byte, FixedHeaderSize+len(payload))
	copy(buf[FixedHeaderSize:], payload)
	if err := tx.Send(rx.LocalAddr(), nil, true, 96, 1000, buf, len(payload)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case h := <-received:
		if h.PayloadType != 96 || h.Timestamp != 1000 || !h.Marker {
			t.Errorf("unexpected header: %+v", h)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
	wg.Wait()
}

func TestEncodeSequenceIncrements(t *testing.T) {
	e := Alloc()
	start := e.seq
	buf := make([]byte, 64)
	if _, err := e.Encode(nil, false, 0, 0, buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if e.seq != start+1 {
		t.Errorf("sequence did not post-increment: got %d, want %d", e.seq, start+1)
	}
}
