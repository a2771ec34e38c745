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
	"net"
	"testing"
	"time"
)

func TestSocketDeliversMessage(t *testing.T) {
	received := make(chan *Message, 1)
	socket, err := Listen("127.0.0.1:0", func(conn *Connection, msg *Message) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer socket.Close()

	client, err := net.Dial("tcp", socket.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("OPTIONS * RTSP/1.0\r\nCSeq: 1\r\n\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Method != "OPTIONS" || msg.CSeq != 1 {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSocketCloseDetachesConnections(t *testing.T) {
	socket, err := Listen("127.0.0.1:0", func(conn *Connection, msg *Message) {})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	client, err := net.Dial("tcp", socket.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	// give the accept loop a moment to register the connection
	time.Sleep(50 * time.Millisecond)

	if err := socket.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if socket.head != nil {
		t.Error("connection list should be empty after Close")
	}
}
