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

// Package jitter implements the adaptive playout buffer that sits between
// an RTP endpoint's I/O callback and an audio/video playback thread. Put
// runs on the I/O side, Get on the playback side; a single writer-preferring
// lock is the only cross-thread boundary in the media core.
package jitter

import (
	"sync"
	"time"

	"github.com/onitake/rtspmedia/rtp"
	"github.com/onitake/rtspmedia/util"
)

// jp is the fixed-point shift used throughout the estimator: all ms-scaled
// quantities (jitter, avbuftime, bufmin, bufmax) are stored as value*jp.
const jp = 512

// nilSlot marks the absence of a link in the arena's free-list or frame-list.
const nilSlot = -1

// state is the buffer's grow/shrink advisory, driven by the jitter estimator.
type state int

const (
	// Good is the steady state: neither growing nor shrinking.
	Good state = iota
	// Low means the buffer is under-filled; Get should hold back a frame
	// to let it grow.
	Low
	// High means the buffer is over-filled; Put should drop a frame (when
	// silence allows it) to let it shrink.
	High
)

func (s state) String() string {
	switch s {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "good"
	}
}

// Frame is a drained payout: the RTP header that arrived with it plus the
// payload bytes, independent of the slot they were held in.
type Frame struct {
	Header   rtp.Header
	Payload  []byte
	Sequence uint16
	Timestamp uint32
}

// slot is one arena cell. It is either on the free list (linked through
// next only) or in the frame list (linked through prev/next, ordered by
// ascending modulo-16 sequence), never both at once.
type slot struct {
	header  rtp.Header
	payload []byte
	prev    int
	next    int
}

// Stats is a snapshot of a Buffer's occupancy, estimator and counters.
type Stats struct {
	Queued     int
	State      string
	JitterMs   float64
	AvBufTimeMs float64
	Late       uint64
	Duplicate  uint64
	Lost       uint64
	Overflow   uint64
	Underflow  uint64
}

// Buffer is a fixed-capacity, sequence-ordered playout queue with an
// adaptive fill-level estimator (spec §4.4). All max frame slots are
// preallocated at Alloc time, so Put never fails for lack of capacity: an
// empty pool steals the oldest queued frame instead.
type Buffer struct {
	mu sync.Mutex

	min, max, wish int
	payloadCap     int

	frames   []slot
	freeHead int
	head     int
	tail     int
	n        int

	started bool
	running bool

	haveSsrc bool
	ssrc     uint32

	havePut bool
	seqPut  uint16
	haveGet bool
	seqGet  uint16

	silence util.AtomicBool

	ptimeMs   int64
	jtime     int64
	mintime   int64
	avbuftime int64
	jitter    int64
	st        state
	locnt     int
	hicnt     int

	haveFirst bool
	ts0       uint32
	tr0       time.Time

	nLate, nDup, nLost, nOverflow, nUnderflow uint64

	telemetry Telemetry
	logger    *util.ModuleLogger
}

// defaultPayloadCap bounds the preallocated per-slot payload buffer. A put
// whose payload exceeds it falls back to a fresh allocation for that frame
// only; the arena itself never grows.
const defaultPayloadCap = 1500

// Alloc builds a Buffer with min/max/wish sizing per spec §4.4.1: min must
// be at least 1, max at least min+3 and at least min*220/125, and wish is
// clamped into [min+1, max-1].
func Alloc(min, max, wish int) (*Buffer, error) {
	if min < 1 {
		return nil, ErrInvalidSize
	}
	if max < min+3 || max*125 < min*220 {
		return nil, ErrInvalidSize
	}
	if wish < min+1 {
		wish = min + 1
	}
	if wish > max-1 {
		wish = max - 1
	}

	b := &Buffer{
		min:        min,
		max:        max,
		wish:       wish,
		payloadCap: defaultPayloadCap,
		frames:     make([]slot, max),
		head:       nilSlot,
		tail:       nilSlot,
		telemetry:  NoopTelemetry{},
		logger:     util.NewGlobalModuleLogger("jitter", nil).(*util.ModuleLogger),
	}
	for i := range b.frames {
		b.frames[i].payload = make([]byte, 0, defaultPayloadCap)
		b.frames[i].next = i + 1
		b.frames[i].prev = nilSlot
	}
	b.frames[max-1].next = nilSlot
	b.freeHead = 0

	b.resetEstimatorLocked()

	return b, nil
}

// SetTelemetry installs a counter sink for late/duplicate/lost/overflow/
// underflow events. Passing nil restores the no-op sink.
func (b *Buffer) SetTelemetry(t Telemetry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t == nil {
		t = NoopTelemetry{}
	}
	b.telemetry = t
}

// SetLogger installs a structured logger for control-path warnings (late
// pops). Passing nil silences them. A *util.ModuleLogger is used as is; any
// other logger is wrapped in one tagged with the jitter module name.
func (b *Buffer) SetLogger(logger util.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch l := logger.(type) {
	case nil:
		b.logger = &util.ModuleLogger{Logger: &util.DummyLogger{}}
	case *util.ModuleLogger:
		b.logger = l
	default:
		b.logger = &util.ModuleLogger{Logger: l, Defaults: util.Dict{util.KeyModule: "jitter"}}
	}
}

// SetSilence flips the shrink/grow hint. It is written without the lock by
// design (spec §5): the only reader racing with it is the next Put or Get,
// and a stale read merely delays a shrink or grow by one frame.
func (b *Buffer) SetSilence(asserted bool) {
	util.StoreBool(&b.silence, asserted)
}

// Queued returns the current number of buffered frames.
func (b *Buffer) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Stats returns a snapshot of occupancy, estimator state and counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Queued:      b.n,
		State:       b.st.String(),
		JitterMs:    float64(b.jitter) / jp,
		AvBufTimeMs: float64(b.avbuftime) / jp,
		Late:        b.nLate,
		Duplicate:   b.nDup,
		Lost:        b.nLost,
		Overflow:    b.nOverflow,
		Underflow:   b.nUnderflow,
	}
}

// resetEstimatorLocked restores the estimator to its startup values (spec
// §4.4.4 "On startup..."). Caller must hold mu.
func (b *Buffer) resetEstimatorLocked() {
	b.ptimeMs = 16
	b.jtime = b.ptimeMs * jp
	b.mintime = int64(b.min)*b.jtime - b.jtime/3
	b.avbuftime = int64(b.wish) * b.jtime
	b.jitter = b.avbuftime * 200 / (125 + 220)
	b.st = Good
	b.locnt = 0
	b.hicnt = 0
	b.haveFirst = false
}

// obtainSlot returns a free slot index, stealing the oldest queued frame
// (counted as overflow by the caller) if the pool is exhausted.
func (b *Buffer) obtainSlot() (int, bool) {
	if b.freeHead != nilSlot {
		idx := b.freeHead
		b.freeHead = b.frames[idx].next
		return idx, false
	}
	idx := b.head
	b.unlinkLocked(idx)
	return idx, true
}

// releaseSlot returns idx to the free list.
func (b *Buffer) releaseSlot(idx int) {
	b.frames[idx].next = b.freeHead
	b.frames[idx].prev = nilSlot
	b.freeHead = idx
}

// unlinkLocked removes idx from the frame list and decrements n. It does
// not touch the free list; callers either re-link idx elsewhere or release
// it.
func (b *Buffer) unlinkLocked(idx int) {
	prev := b.frames[idx].prev
	next := b.frames[idx].next
	if prev != nilSlot {
		b.frames[prev].next = next
	} else {
		b.head = next
	}
	if next != nilSlot {
		b.frames[next].prev = prev
	} else {
		b.tail = prev
	}
	b.n--
}

// insertAfterLocked links idx into the frame list immediately after at
// (or at the head if at == nilSlot).
func (b *Buffer) insertAfterLocked(at, idx int) {
	if at == nilSlot {
		b.frames[idx].prev = nilSlot
		b.frames[idx].next = b.head
		if b.head != nilSlot {
			b.frames[b.head].prev = idx
		} else {
			b.tail = idx
		}
		b.head = idx
	} else {
		next := b.frames[at].next
		b.frames[idx].prev = at
		b.frames[idx].next = next
		b.frames[at].next = idx
		if next != nilSlot {
			b.frames[next].prev = idx
		} else {
			b.tail = idx
		}
	}
	b.n++
}

// Put inserts an arriving RTP packet into the buffer. See spec §4.4.2 for
// the ordered list of checks.
func (b *Buffer) Put(h *rtp.Header, payload []byte, arrival time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.haveSsrc && h.Ssrc != b.ssrc {
		b.flushLocked()
	}
	b.ssrc = h.Ssrc
	b.haveSsrc = true

	if b.running && b.haveGet && !util.SeqAfter(h.Sequence, b.seqGet) {
		b.nLate++
		b.telemetry.IncLate()
		return ErrLate
	}

	if util.LoadBool(&b.silence) && b.n > b.min && b.st == High {
		b.st = Good
		b.locnt = 0
		b.hicnt = 0
		return nil
	}

	idx, overflowed := b.obtainSlot()
	if overflowed {
		b.nOverflow++
		b.telemetry.IncOverflow()
	}

	if b.head == nilSlot {
		b.insertAfterLocked(nilSlot, idx)
	} else {
		cur := b.tail
		inserted := false
		for cur != nilSlot {
			curSeq := b.frames[cur].header.Sequence
			if h.Sequence == curSeq {
				b.releaseSlot(idx)
				b.nDup++
				b.telemetry.IncDuplicate()
				return ErrDuplicate
			}
			if util.SeqAfter(h.Sequence, curSeq) {
				b.insertAfterLocked(cur, idx)
				inserted = true
				break
			}
			cur = b.frames[cur].prev
		}
		if !inserted {
			b.insertAfterLocked(nilSlot, idx)
		}
	}

	b.frames[idx].header = *h
	if cap(b.frames[idx].payload) < len(payload) {
		b.frames[idx].payload = make([]byte, len(payload))
	} else {
		b.frames[idx].payload = b.frames[idx].payload[:len(payload)]
	}
	copy(b.frames[idx].payload, payload)

	b.running = true
	b.seqPut = h.Sequence
	b.havePut = true

	if b.started {
		b.runEstimatorLocked(h.Timestamp, arrival)
	}

	return nil
}

// Get drains the oldest queued frame. See spec §4.4.3.
func (b *Buffer) Get() (*Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		if b.n < b.wish+1 {
			return nil, ErrNotReady
		}
		b.started = true
	}

	if b.n == 0 {
		b.nUnderflow++
		b.telemetry.IncUnderflow()
		return nil, ErrNotReady
	}

	if util.LoadBool(&b.silence) && b.n < b.max && b.st == Low {
		b.st = Good
		b.locnt = 0
		b.hicnt = 0
		return nil, ErrNotReady
	}

	idx := b.head
	seq := b.frames[idx].header.Sequence

	if b.haveGet {
		if util.SeqBefore(seq, b.seqGet) {
			b.logger.Logd(util.Dict{
				"event":   "late_pop",
				"message": "draining a frame older than the last one returned",
			})
		}
		gap := util.SeqDistance(b.seqGet, seq)
		if gap > 1 {
			lost := uint64(gap - 1)
			b.nLost += lost
			b.telemetry.IncLost(int(lost))
		}
	}
	b.seqGet = seq
	b.haveGet = true

	frame := &Frame{
		Header:    b.frames[idx].header,
		Payload:   append([]byte(nil), b.frames[idx].payload...),
		Sequence:  seq,
		Timestamp: b.frames[idx].header.Timestamp,
	}

	b.unlinkLocked(idx)
	b.releaseSlot(idx)

	return frame, nil
}

// Flush returns every buffered frame to the pool and re-arms the estimator
// and priming threshold for a fresh stream.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Buffer) flushLocked() {
	cur := b.head
	for cur != nilSlot {
		next := b.frames[cur].next
		b.releaseSlot(cur)
		cur = next
	}
	b.head = nilSlot
	b.tail = nilSlot
	b.n = 0
	b.started = false
	b.running = false
	b.havePut = false
	b.haveGet = false
	b.resetEstimatorLocked()
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// runEstimatorLocked implements the fixed-point jitter/fill estimator
// (spec §4.4.4). Caller must hold mu and have already inserted the new
// frame into the list.
func (b *Buffer) runEstimatorLocked(ts uint32, arrival time.Time) {
	tsNewest := b.frames[b.tail].header.Timestamp
	tsOldest := b.frames[b.head].header.Timestamp

	buftimeMs := int64(int32(tsNewest-tsOldest))/8 + b.ptimeMs
	buftime := buftimeMs * jp

	var d int64
	if b.haveFirst {
		trDeltaMs := arrival.Sub(b.tr0).Milliseconds()
		tsDeltaMs := int64(int32(ts-b.ts0)) / 8
		d = trDeltaMs - tsDeltaMs
	}
	da := util.AbsSubInt64(d, 0) * jp

	var s int64 = 1
	if da > b.jitter {
		s = 64
	}
	b.jitter += (da - b.jitter) * s / jp
	b.avbuftime += (buftime - b.avbuftime) / 16

	bufmin := max64(b.jitter*125/100, b.mintime)
	bufmax := max64(b.jitter*220/100, bufmin+3*b.jtime)

	switch {
	case b.avbuftime < bufmin && b.n < b.max:
		b.locnt++
		b.hicnt = 0
		if b.locnt > 20 {
			b.st = Low
			b.avbuftime = buftime
		}
	case b.avbuftime > bufmax && b.n > b.min:
		b.hicnt++
		b.locnt = 0
		if b.hicnt > 20 {
			b.st = High
			b.avbuftime = buftime
		}
	default:
		b.st = Good
		b.locnt = 0
		b.hicnt = 0
	}

	if b.n > 1 {
		observed := int64(int32(tsNewest-tsOldest)) / 8 / int64(b.n)
		if observed > 0 && observed != b.ptimeMs {
			b.ptimeMs = observed
			b.jtime = b.ptimeMs * jp
			b.mintime = int64(b.min)*b.jtime - b.jtime/3
		}
	}

	b.ts0 = ts
	b.tr0 = arrival
	b.haveFirst = true
}
