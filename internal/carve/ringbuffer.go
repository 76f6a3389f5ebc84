// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package carve implements the signature-driven file carver: a sliding
// window scan over a block.Source, a detector registry dispatch, and the
// recovery bookkeeping that turns matches into extracted artifacts.
package carve

import (
	"fmt"

	"github.com/cgsec/digler/internal/block"
)

// RingBuffer holds a 2*W sliding window over a block.Source, where W is the
// window size detectors are guaranteed to see ahead of any candidate header.
// Advancing by W keeps a full window of lookahead behind every still-active
// recovery while never re-reading more than one overlapping half per step.
type RingBuffer struct {
	src    block.Source
	window uint64 // W
	buf    []byte // len == 2*window
	base   uint64 // absolute stream offset of buf[0]
	length uint64 // src.Length(), cached

	// shifted remembers that a failed Advance already moved the upper half
	// down, so a retry refills without repeating the shift.
	shifted bool
}

// NewRingBuffer mounts a RingBuffer at the given absolute stream offset.
// window must be large enough to hold any single format's header fields
// plus lookahead; PhotoRec's own convention is 1<<16.
func NewRingBuffer(src block.Source, window uint64, start uint64) (*RingBuffer, error) {
	if window == 0 {
		return nil, fmt.Errorf("carve: window size must be non-zero")
	}
	rb := &RingBuffer{
		src:    src,
		window: window,
		buf:    make([]byte, 2*window),
		base:   start,
		length: src.Length(),
	}
	if err := rb.fill(); err != nil {
		return nil, err
	}
	return rb, nil
}

// fill (re)populates buf in full from base. Reads past Length() are
// zero-padded rather than treated as errors.
func (rb *RingBuffer) fill() error {
	n, err := rb.src.ReadAt(rb.base, rb.buf)
	if err != nil {
		return fmt.Errorf("carve: read at %d: %w", rb.base, err)
	}
	for i := n; i < len(rb.buf); i++ {
		rb.buf[i] = 0
	}
	return nil
}

// Base returns the absolute stream offset of View()[0].
func (rb *RingBuffer) Base() uint64 { return rb.base }

// Window returns W, the half-buffer size.
func (rb *RingBuffer) Window() uint64 { return rb.window }

// View returns the full 2*W window, valid until the next Advance.
func (rb *RingBuffer) View() []byte { return rb.buf }

// Done reports whether base has reached or passed the end of the source;
// the driver loop stops once the first half of the window is entirely past
// end-of-stream.
func (rb *RingBuffer) Done() bool {
	return rb.base >= rb.length
}

// Advance slides the window forward by W: the second half becomes the first
// half, and a fresh W bytes at base+2W are read in behind it. This is the
// only mutating operation, and it always moves base forward by exactly
// window bytes, never backward — the property every detector's cursor math
// depends on. On a read failure base is unchanged; the already-performed
// shift is remembered so a retry refills without losing data, and View()
// must not be consulted until a retry succeeds.
func (rb *RingBuffer) Advance() error {
	if !rb.shifted {
		copy(rb.buf[:rb.window], rb.buf[rb.window:])
		rb.shifted = true
	}
	n, err := rb.src.ReadAt(rb.base+2*rb.window, rb.buf[rb.window:])
	if err != nil {
		return fmt.Errorf("carve: read at %d: %w", rb.base+2*rb.window, err)
	}
	for i := rb.window + uint64(n); i < uint64(len(rb.buf)); i++ {
		rb.buf[i] = 0
	}
	rb.base += rb.window
	rb.shifted = false
	return nil
}
