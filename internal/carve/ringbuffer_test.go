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
package carve

import (
	"errors"
	"testing"
)

func patternData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 253)
	}
	return data
}

// Every View must expose exactly the stream bytes [base, base+2W), zero-
// padded past end-of-stream, at every advance step.
func TestRingBufferWindowContents(t *testing.T) {
	data := patternData(2000)
	rb, err := NewRingBuffer(&memSource{data: data}, 256, 0)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}

	for !rb.Done() {
		base := rb.Base()
		view := rb.View()
		for i := range view {
			abs := base + uint64(i)
			want := byte(0)
			if abs < uint64(len(data)) {
				want = data[abs]
			}
			if view[i] != want {
				t.Fatalf("base %d: view[%d] = %#02x, want %#02x", base, i, view[i], want)
			}
		}
		if err := rb.Advance(); err != nil {
			t.Fatalf("Advance at base %d: %v", base, err)
		}
	}
}

// flakySource fails every read at or past failAt once, then recovers.
type flakySource struct {
	memSource
	failAt uint64
	failed bool
}

func (f *flakySource) ReadAt(offset uint64, dst []byte) (int, error) {
	if !f.failed && offset >= f.failAt {
		f.failed = true
		return 0, errors.New("transient read failure")
	}
	return f.memSource.ReadAt(offset, dst)
}

// A failed Advance must leave base unchanged and lose no stream bytes once
// a retry succeeds.
func TestRingBufferAdvanceRetryAfterFailure(t *testing.T) {
	data := patternData(2000)
	src := &flakySource{memSource: memSource{data: data}, failAt: 1024}

	rb, err := NewRingBuffer(src, 256, 0)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}

	sawFailure := false
	for !rb.Done() {
		base := rb.Base()
		if err := rb.Advance(); err != nil {
			sawFailure = true
			if rb.Base() != base {
				t.Fatalf("base moved across a failed Advance: %d -> %d", base, rb.Base())
			}
			continue
		}
		view := rb.View()
		for i := range view {
			abs := rb.Base() + uint64(i)
			want := byte(0)
			if abs < uint64(len(data)) {
				want = data[abs]
			}
			if view[i] != want {
				t.Fatalf("after retry, base %d: view[%d] = %#02x, want %#02x", rb.Base(), i, view[i], want)
			}
		}
	}
	if !sawFailure {
		t.Fatal("flaky source never exercised the failure path")
	}
}
