// Package ringbuf provides a ring-backed deque of model.Kline used as the
// per-symbol candle history. Appends and front evictions are amortized O(1),
// which keeps the trade-ingestion critical section small even at the history
// bound (15 minutes of 3-second buckets).
package ringbuf

import "volume-screener/internal/model"

// Deque is a growable ring buffer of klines. Not goroutine-safe; the owner
// (the producer) guards it with the candles mutex.
type Deque struct {
	buf  []model.Kline
	head int // index of the oldest element
	n    int
}

// New creates a deque with the given initial capacity (minimum 8).
func New(capacity int) *Deque {
	if capacity < 8 {
		capacity = 8
	}
	return &Deque{buf: make([]model.Kline, nextPow2(capacity))}
}

// Len returns the number of klines held.
func (d *Deque) Len() int { return d.n }

// PushBack appends a kline, growing the ring if full.
func (d *Deque) PushBack(k model.Kline) {
	if d.n == len(d.buf) {
		d.grow()
	}
	d.buf[(d.head+d.n)&(len(d.buf)-1)] = k
	d.n++
}

// Back returns a pointer to the most recent kline, or nil if empty.
// The last element is the only mutable one; callers update it in place
// while the bucket is still forming.
func (d *Deque) Back() *model.Kline {
	if d.n == 0 {
		return nil
	}
	return &d.buf[(d.head+d.n-1)&(len(d.buf)-1)]
}

// Front returns a pointer to the oldest kline, or nil if empty.
func (d *Deque) Front() *model.Kline {
	if d.n == 0 {
		return nil
	}
	return &d.buf[d.head]
}

// At returns the kline at index i (0 = oldest).
func (d *Deque) At(i int) model.Kline {
	return d.buf[(d.head+i)&(len(d.buf)-1)]
}

// PopFront discards the oldest kline.
func (d *Deque) PopFront() {
	if d.n == 0 {
		return
	}
	d.buf[d.head] = model.Kline{}
	d.head = (d.head + 1) & (len(d.buf) - 1)
	d.n--
}

// EvictBefore drops klines from the front while their open time is strictly
// below minOpenTime. Returns the number evicted.
func (d *Deque) EvictBefore(minOpenTime int64) int {
	evicted := 0
	for d.n > 0 && d.buf[d.head].OpenTime < minOpenTime {
		d.PopFront()
		evicted++
	}
	return evicted
}

// Slice returns a copy of the contents, oldest first.
func (d *Deque) Slice() []model.Kline {
	out := make([]model.Kline, d.n)
	for i := 0; i < d.n; i++ {
		out[i] = d.At(i)
	}
	return out
}

// grow doubles the ring and linearizes the contents.
func (d *Deque) grow() {
	next := make([]model.Kline, len(d.buf)*2)
	for i := 0; i < d.n; i++ {
		next[i] = d.At(i)
	}
	d.buf = next
	d.head = 0
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
