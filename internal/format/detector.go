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

// Signature is a byte pattern anchored at a fixed offset from the start of
// a candidate header, e.g. offset 0 for most formats, 36 for ICC's "acsp".
type Signature struct {
	Offset int
	Bytes  []byte
}

// Info is a detector's static metadata.
type Info struct {
	Ext              string
	Description      string
	Signatures       []Signature
	MaxFileSize      uint64
	EnabledByDefault bool
}

// HeaderKind tags the outcome of a Detector.HeaderCheck call.
type HeaderKind int

const (
	NoMatch HeaderKind = iota
	Start
	SuppressActive
)

// DataCheckMode selects how the Carver advances an active Recovery from one
// window to the next. The mode lives on the Recovery and the Carver
// dispatches on it, so no callback crosses the carver/detector boundary.
type DataCheckMode int

const (
	// DataCheckStructured invokes the Detector's DataCheck once per window
	// advance; the recovery grows only as far as CalculatedSize.
	DataCheckStructured DataCheckMode = iota

	// DataCheckNone means the format has no further structure to follow:
	// the Carver streams raw bytes up to Recovery.GrowLimit and closes the
	// recovery there, or at end-of-stream, whichever comes first. Formats
	// whose size is fully stated in the header (ICC, BMP) start in this
	// mode; others (PSB) demote to it once their last sized section has
	// been walked.
	DataCheckNone
)

// HeaderResult is returned by HeaderCheck. For Start, Extension/MinSize/
// InitialSize seed a new Recovery; State is the detector-private data_check
// state tag the Carver will hand back unmodified on the first DataCheck call.
type HeaderResult struct {
	Kind        HeaderKind
	Extension   string
	MinSize     uint64
	InitialSize uint64
	Mode        DataCheckMode
	State       int
	Aux         uint64 // seeds Recovery.Aux, e.g. PSB's image-data size cap
}

// DataCheckKind tags the outcome of a Detector.DataCheck call.
type DataCheckKind int

const (
	Continue DataCheckKind = iota
	Terminate
	Abort
)

// DataCheckResult is returned by DataCheck. FinalSize is only meaningful for
// Terminate and is the recovery's total size measured from StreamStart.
type DataCheckResult struct {
	Kind      DataCheckKind
	FinalSize uint64
}

// Detector is a per-format recognizer and size-tracker. Implementations are
// stateless: per-recovery state lives entirely on the Recovery record passed
// to DataCheck/FileCheck (State/Aux/CalculatedSize), never inside the
// Detector itself, so one Detector instance serves every concurrently-active
// Recovery for its format.
type Detector interface {
	Info() Info

	// HeaderCheck inspects buf, a view of the window starting exactly at the
	// candidate signature offset, with at least one window-size worth of
	// lookahead. active is the currently-live Recovery at this stream
	// position, or nil.
	HeaderCheck(buf []byte, active *Recovery) HeaderResult

	// DataCheck inspects window (the full 2*W ring buffer contents) and base
	// (the absolute stream offset of window[0]) to advance rec.CalculatedSize
	// and decide whether the recovery continues, terminates, or aborts.
	DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult

	// FileCheck performs final fixup once the recovery's raw size is known.
	FileCheck(rec *Recovery)
}

// cursorIndex returns the position within window that corresponds to the
// recovery's current parse cursor (StreamStart+CalculatedSize), given the
// window's absolute base. Every DataCheck loop resumes from here: the
// cursor is an absolute stream position, the window a sliding view, and
// keeping the two separate is what lets a detector pause mid-structure and
// pick up after the next advance.
func cursorIndex(base uint64, rec *Recovery) int {
	return int(int64(rec.StreamStart+rec.CalculatedSize) - int64(base))
}
