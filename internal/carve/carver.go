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
	"context"
	"fmt"
	"io"

	"github.com/cgsec/digler/internal/block"
	"github.com/cgsec/digler/internal/format"
)

// maxConsecutiveIOFailures bounds how many consecutive failed
// RingBuffer.Advance attempts at the same cursor (the first call included)
// the driver loop tolerates before giving up. Advance guarantees
// the cursor doesn't move on failure, so retrying costs nothing but time.
const maxConsecutiveIOFailures = 3

// Options configures a Carver's driver loop.
type Options struct {
	// Window is the RingBuffer half-window size; 0 defaults to 1<<16,
	// PhotoRec's own convention.
	Window uint64

	// MaxFileSize caps every recovery regardless of what its Detector's own
	// Info.MaxFileSize declares; 0 leaves each detector's own cap in force.
	MaxFileSize uint64
}

// Artifact describes one committed recovery, yielded by Scan.
type Artifact struct {
	Name      string
	Extension string
	Offset    uint64
	Size      uint64
}

// Carver drives a RingBuffer across a block.Source, dispatching every
// sector-aligned offset to a format.Registry and turning the header/data/
// file-check contract into extracted files through an ArtifactSink.
type Carver struct {
	src    block.Source
	reg    *format.Registry
	sink   ArtifactSink
	opts   Options
	length uint64

	err     error
	counter uint64
}

// NewCarver builds a Carver reading src, matching signatures via reg, and
// writing recovered artifacts through sink.
func NewCarver(src block.Source, reg *format.Registry, sink ArtifactSink, opts Options) *Carver {
	if opts.Window == 0 {
		opts.Window = 1 << 16
	}
	return &Carver{src: src, reg: reg, sink: sink, opts: opts, length: src.Length()}
}

// Err returns the error that stopped the most recent Scan, if any, mirroring
// the bufio.Scanner convention for iterators that can't return a value
// directly.
func (c *Carver) Err() error { return c.err }

// activeRecovery pairs a format.Recovery with the open artifact it's being
// written to.
type activeRecovery struct {
	rec  *format.Recovery
	w    io.WriteCloser
	name string
	ext  string
}

// truncater is an optional capability an ArtifactSink's WriteCloser may
// implement (bufferedFile does) letting FileCheck shrink a just-written
// artifact without the Carver re-opening it.
type truncater interface {
	Truncate(size int64) error
}

// renamerSink is an optional ArtifactSink capability, used when a FileCheck
// rewrites the recovery's extension (ZIP recognizing an Office document) so
// the on-disk name follows.
type renamerSink interface {
	Rename(name string, counter uint64, ext string) (string, error)
}

// Scan returns a range-over-func iterator of every committed Artifact, in
// stream order. Iteration stops early if yield returns false, on context
// cancellation, or after repeated I/O failure; call Err afterward to learn
// why. Scan is a push-style iterator rather than a pull API because the
// header/data/file-check contract is driven by the carver, not by each
// caller pulling one artifact at a time.
func (c *Carver) Scan(ctx context.Context) func(yield func(Artifact) bool) {
	return func(yield func(Artifact) bool) {
		c.err = nil

		ring, err := NewRingBuffer(c.src, c.opts.Window, 0)
		if err != nil {
			c.err = err
			return
		}

		step := uint64(c.src.SectorSize())
		if step == 0 {
			step = 1
		}

		var active *activeRecovery

		abort := func() bool {
			if active == nil {
				return true
			}
			art, committed, err := c.closeActive(active)
			active = nil
			if err != nil {
				c.err = err
				return false
			}
			if committed {
				return yield(art)
			}
			return true
		}

		for !ring.Done() {
			select {
			case <-ctx.Done():
				abort()
				c.err = ErrCancelled
				return
			default:
			}

			window := ring.View()
			base := ring.Base()

			for o := uint64(0); o < ring.Window(); o += step {
				var liveRec *format.Recovery
				if active != nil {
					liveRec = active.rec
				}
				for _, d := range c.reg.Lookup(window, int(o)) {
					res := d.HeaderCheck(window[int(o):], liveRec)
					if res.Kind != format.Start {
						continue
					}
					if active != nil {
						// The active recovery always wins: a fresh match is
						// ignored until the recovery closes on its own terms
						// (structure end, growth bound, or end-of-stream).
						// A signature-shaped byte run inside a file's body
						// must never cut that file short.
						continue
					}
					rec, w, name, err := c.startRecovery(d, res, base+o)
					if err != nil {
						c.err = err
						return
					}
					active = &activeRecovery{rec: rec, w: w, name: name, ext: res.Extension}
					liveRec = active.rec
				}
			}

			if active != nil && active.rec.Mode == format.DataCheckStructured {
				dr := active.rec.Detector.DataCheck(window, base, active.rec)
				switch dr.Kind {
				case format.Continue:
					if err := c.flush(active, window, base, base+ring.Window()); err != nil {
						c.err = fmt.Errorf("%w: %v", ErrIO, err)
						return
					}
					if active.rec.MaxSize != 0 && active.rec.CalculatedSize > active.rec.MaxSize {
						// Over the cap: truncate the claimed size to it and
						// drain what remains, letting FileCheck arbitrate.
						active.rec.CalculatedSize = active.rec.MaxSize
						active.rec.Aux = 0
						active.rec.Mode = format.DataCheckNone
					}
				case format.Terminate:
					active.rec.CalculatedSize = dr.FinalSize
					if end := active.rec.StreamStart + dr.FinalSize; end <= base+uint64(len(window)) {
						art, committed, err := c.finish(active, window, base, end)
						active = nil
						if err != nil {
							c.err = err
							return
						}
						if committed && !yield(art) {
							return
						}
					} else {
						// The established end lies past the current window:
						// drain to it over the coming advances.
						active.rec.Aux = 0
						active.rec.Mode = format.DataCheckNone
					}
				case format.Abort:
					if err := c.discard(active); err != nil {
						c.err = err
						return
					}
					active = nil
				}
			}

			if active != nil && active.rec.Mode == format.DataCheckNone {
				if err := c.flush(active, window, base, base+ring.Window()); err != nil {
					c.err = fmt.Errorf("%w: %v", ErrIO, err)
					return
				}
				if rec := active.rec; rec.StreamStart+rec.WrittenSize >= rec.GrowLimit() {
					art, committed, err := c.finish(active, window, base, rec.GrowLimit())
					active = nil
					if err != nil {
						c.err = err
						return
					}
					if committed && !yield(art) {
						return
					}
				}
			}

			if err := ring.Advance(); err != nil {
				// The stream is failing underneath the active recovery:
				// drop it per its abort policy, then decide whether the
				// scan itself can go on.
				if !abort() || c.err != nil {
					return
				}
				for try := 1; err != nil && try < maxConsecutiveIOFailures; try++ {
					err = ring.Advance()
				}
				if err != nil {
					c.err = fmt.Errorf("%w: %v", ErrIO, err)
					return
				}
			}
		}

		abort()
	}
}

// startRecovery opens a new artifact and seeds a format.Recovery from a
// Start HeaderResult.
func (c *Carver) startRecovery(d format.Detector, res format.HeaderResult, streamStart uint64) (*format.Recovery, io.WriteCloser, string, error) {
	c.counter++
	w, name, err := c.sink.Create(c.counter, res.Extension)
	if err != nil {
		return nil, nil, "", err
	}

	maxSize := d.Info().MaxFileSize
	if c.opts.MaxFileSize != 0 && (maxSize == 0 || c.opts.MaxFileSize < maxSize) {
		maxSize = c.opts.MaxFileSize
	}

	rec := &format.Recovery{
		StreamStart:    streamStart,
		CalculatedSize: res.InitialSize,
		Extension:      res.Extension,
		Detector:       d,
		MinSize:        res.MinSize,
		MaxSize:        maxSize,
		Mode:           res.Mode,
		State:          res.State,
		Aux:            res.Aux,
		Status:         format.StatusActive,
		Counter:        c.counter,
	}
	return rec, w, name, nil
}

// flush writes every byte of rec's window-visible span that hasn't already
// been written, bounded above by boundAbs (an absolute stream offset, never
// written past), by the recovery's own growth bound, and by end-of-stream.
// It never writes backward and never re-writes a byte once rec.WrittenSize
// has advanced past it, matching the "exactly once, in order" guarantee the
// RingBuffer's own Advance relies on.
func (c *Carver) flush(a *activeRecovery, window []byte, base uint64, boundAbs uint64) error {
	rec := a.rec
	from := rec.StreamStart + rec.WrittenSize
	to := rec.StreamStart + rec.CalculatedSize
	if rec.Mode == format.DataCheckNone {
		to = rec.GrowLimit()
	}
	if to > boundAbs {
		to = boundAbs
	}
	if to > c.length {
		to = c.length
	}
	if winEnd := base + uint64(len(window)); to > winEnd {
		to = winEnd
	}
	if from < base {
		// The unwritten span has slid out of the window (a detector stalled
		// without advancing its frontier); nothing sound can be written.
		return nil
	}
	if to <= from {
		return nil
	}
	n, err := a.w.Write(window[from-base : to-base])
	rec.WrittenSize += uint64(n)
	return err
}

// finish flushes up to boundAbs, runs the detector's FileCheck, and closes
// the artifact. FileCheck may shrink or zero rec.WrittenSize (PSB clamps an
// over-estimated image-data section, or rejects the recovery outright); when
// it shrinks below what's already been physically written, finish truncates
// the backing file down to match rather than leaving trailing garbage.
func (c *Carver) finish(a *activeRecovery, window []byte, base uint64, boundAbs uint64) (Artifact, bool, error) {
	if err := c.flush(a, window, base, boundAbs); err != nil {
		a.w.Close()
		return Artifact{}, false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return c.closeActive(a)
}

// closeActive runs FileCheck, reconciles WrittenSize against what's actually
// on disk, and either commits the artifact or discards it via sink.Remove.
func (c *Carver) closeActive(a *activeRecovery) (Artifact, bool, error) {
	rec := a.rec
	flushed := rec.WrittenSize
	rec.Detector.FileCheck(rec)
	if rec.WrittenSize > flushed {
		rec.WrittenSize = flushed
	}
	if rec.WrittenSize < flushed {
		if t, ok := a.w.(truncater); ok {
			if err := t.Truncate(int64(rec.WrittenSize)); err != nil {
				a.w.Close()
				return Artifact{}, false, fmt.Errorf("%w: %v", ErrIO, err)
			}
		}
	}

	if err := a.w.Close(); err != nil {
		return Artifact{}, false, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if !rec.Committed() {
		rec.Status = format.StatusDiscarded
		if err := c.sink.Remove(a.name); err != nil {
			return Artifact{}, false, err
		}
		return Artifact{}, false, nil
	}

	name := a.name
	if rec.Extension != a.ext {
		// FileCheck refined the extension (ZIP recognizing an Office
		// document); follow with the on-disk name where the sink can.
		if r, ok := c.sink.(renamerSink); ok {
			if renamed, err := r.Rename(a.name, rec.Counter, rec.Extension); err == nil {
				name = renamed
			}
		}
	}

	rec.Status = format.StatusCommitted
	return Artifact{
		Name:      name,
		Extension: rec.Extension,
		Offset:    rec.StreamStart,
		Size:      rec.WrittenSize,
	}, true, nil
}

// discard closes and deletes an artifact unconditionally, for a Detector's
// explicit Abort — a format-level rejection, not subject to MinSize.
func (c *Carver) discard(a *activeRecovery) error {
	if err := a.w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	a.rec.Status = format.StatusDiscarded
	return c.sink.Remove(a.name)
}
