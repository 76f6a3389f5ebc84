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

import "errors"

// Sentinel errors surfaced by the driver loop. Callers should use errors.Is
// against these rather than matching on message text. The spec's two other
// error kinds never propagate: a detector Abort (FormatAbort) discards only
// the current recovery and carving continues, and a recovery overrunning its
// max file size (SizeExceeded) is truncated at the cap and committed or
// discarded by its detector's FileCheck — both are handled entirely inside
// Carver.Scan.
var (
	// ErrIO wraps any block.Source read failure encountered mid-scan.
	ErrIO = errors.New("carve: i/o error reading source")

	// ErrCancelled is returned by Scan/ScanSharded when the context passed
	// in is cancelled before the scan reaches end-of-stream.
	ErrCancelled = errors.New("carve: scan cancelled")
)
