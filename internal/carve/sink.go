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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArtifactSink receives the bytes of each committed Recovery and assigns it
// a name. Implementations must be safe to call from a single Carver's
// sequential driver loop; ScanSharded gives each shard its own Sink.
type ArtifactSink interface {
	// Create opens a new artifact for writing, named from counter and ext
	// (e.g. "f0000123.gif"). The caller writes the recovered bytes to the
	// returned WriteCloser and then Closes it.
	Create(counter uint64, ext string) (io.WriteCloser, string, error)

	// Remove discards a partial artifact that never reached its detector's
	// MinSize, or that its FileCheck rejected outright.
	Remove(name string) error
}

// DirSink writes each artifact as its own file under Dir, using the
// counter-named convention PhotoRec itself uses (f%07d.ext).
type DirSink struct {
	Dir string
}

// NewDirSink ensures Dir exists and returns a DirSink rooted there.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("carve: create dump dir %q: %w", dir, err)
	}
	return &DirSink{Dir: dir}, nil
}

func (s *DirSink) Create(counter uint64, ext string) (io.WriteCloser, string, error) {
	name := fmt.Sprintf("f%07d.%s", counter, ext)
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("carve: create artifact %q: %w", name, err)
	}
	return &bufferedFile{f: f, w: bufio.NewWriterSize(f, 1<<20)}, name, nil
}

// Rename moves a committed artifact to the counter-derived name for a new
// extension, for detectors that refine the format after the fact.
func (s *DirSink) Rename(name string, counter uint64, ext string) (string, error) {
	newName := fmt.Sprintf("f%07d.%s", counter, ext)
	if newName == name {
		return name, nil
	}
	if err := os.Rename(filepath.Join(s.Dir, name), filepath.Join(s.Dir, newName)); err != nil {
		return name, fmt.Errorf("carve: rename artifact %q: %w", name, err)
	}
	return newName, nil
}

// Remove deletes a previously Create'd artifact that was never committed.
func (s *DirSink) Remove(name string) error {
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("carve: remove artifact %q: %w", name, err)
	}
	return nil
}

// bufferedFile flushes its buffer on Close, matching dumpFile's 1MB
// buffered-write behavior. It additionally exposes Truncate so a detector's
// FileCheck can shrink a recovery after the fact (e.g. PSB clamping an
// over-estimated image-data section) without the Carver re-opening the file.
type bufferedFile struct {
	f *os.File
	w *bufio.Writer
}

func (b *bufferedFile) Write(p []byte) (int, error) { return b.w.Write(p) }

func (b *bufferedFile) Close() error {
	if err := b.w.Flush(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

// Truncate flushes any buffered bytes and then truncates the underlying file
// to size. The Carver type-asserts for this capability; sinks that can't
// support it (e.g. a future network-backed ArtifactSink) simply skip the step.
func (b *bufferedFile) Truncate(size int64) error {
	if err := b.w.Flush(); err != nil {
		return err
	}
	return b.f.Truncate(size)
}
