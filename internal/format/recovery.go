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
package format

// Status is the lifecycle state of a Recovery.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusDiscarded
)

// Recovery is an in-progress (or finished) carve of one artifact. It is the
// only place detector-private state lives: no Detector implementation may
// keep per-recovery data on itself, since one Detector instance is shared
// across every concurrently-active Recovery for its format.
type Recovery struct {
	StreamStart    uint64
	CalculatedSize uint64
	WrittenSize    uint64
	Extension      string
	Detector       Detector
	MinSize        uint64
	MaxSize        uint64
	Status         Status

	// Mode is the recovery's current data-check dispatch mode. A recovery
	// may demote from DataCheckStructured to DataCheckNone (PSB entering
	// its trailing image-data section, or any format whose final size is
	// known but extends past the current window), never the other way.
	Mode DataCheckMode

	// State is a detector-private tag selecting which phase of a multi-stage
	// data_check state machine is active (e.g. PSB's four sections, GIF's
	// block/sub-block modes), dispatched inside the detector's own DataCheck
	// via a switch — never as a stored function pointer.
	State int

	// Aux is a detector-private scalar. For PSB it is the image-data size
	// cap precomputed by HeaderCheck from the header's width/height/
	// channels/depth and consulted by FileCheck; it lives here, per
	// recovery, never as shared state on the detector. For DataCheckNone
	// recoveries it doubles as the slack past CalculatedSize the recovery
	// may still grow; 0 means the size is exactly known.
	Aux uint64

	// Counter is the artifact sink's monotonic name assigned at creation.
	Counter uint64
}

// GrowLimit is the absolute stream offset past which a DataCheckNone
// recovery must not grow: the end of its known size plus any detector-
// declared slack, clamped by the detector's max file size.
func (r *Recovery) GrowLimit() uint64 {
	limit := r.StreamStart + r.CalculatedSize + r.Aux
	if r.MaxSize != 0 && limit > r.StreamStart+r.MaxSize {
		limit = r.StreamStart + r.MaxSize
	}
	return limit
}

// Committed reports whether the recovery met its detector's min_size floor.
// Zero-length recoveries are never committed, including those a FileCheck
// zeroed to reject outright.
func (r *Recovery) Committed() bool {
	return r.WrittenSize > 0 && r.WrittenSize >= r.MinSize
}
