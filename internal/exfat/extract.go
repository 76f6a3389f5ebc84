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
package exfat

import (
	"fmt"
	"io"
	"os"

	"github.com/cgsec/digler/internal/block"
	"github.com/cgsec/digler/pkg/reader"
)

// sourceReaderAt adapts block.Source's (offset uint64, dst []byte) ReadAt to
// the stdlib's io.ReaderAt (dst []byte, offset int64), so cluster extents can
// be read through io.NewSectionReader as pkg/reader.MultiReadSeeker
// expects.
type sourceReaderAt struct{ src block.Source }

func (s sourceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return s.src.ReadAt(uint64(off), p)
}

// ExtractOptions configures a single Extract call.
type ExtractOptions struct {
	// ListDeleted permits the NextFreeCluster heuristic when fi.Deleted.
	ListDeleted bool
}

// Extract copies fi's content to dst, following its cluster chain one
// cluster at a time until the declared data length is exhausted. It
// assembles a pkg/reader.MultiReadSeeker over one io.SectionReader per
// cluster extent, so a file's non-contiguous clusters read as one stream.
func (w *Walker) Extract(fi FileInfo, dst io.Writer, opts ExtractOptions) error {
	if fi.DataLength == 0 {
		return nil
	}
	if fi.FirstCluster < 2 {
		return fmt.Errorf("exfat: %q has no data cluster", fi.Name)
	}

	clusterSize := int64(w.boot.ClusterSize())
	ra := sourceReaderAt{src: w.src}

	var readers []io.ReadSeeker
	var sizes []int64
	remaining := int64(fi.DataLength)

	chain := newClusterChain(w.src, w.boot)
	cluster := fi.FirstCluster
	first := true
	for n := 0; n < NBRClusterMax && remaining > 0; n++ {
		size := clusterSize
		if size > remaining {
			size = remaining
		}
		readers = append(readers, io.NewSectionReader(ra, int64(w.boot.ClusterOffset(cluster)), size))
		sizes = append(sizes, size)
		remaining -= size

		if remaining <= 0 {
			break
		}
		next, done := chain.next(cluster, first, opts.ListDeleted && fi.Deleted)
		first = false
		if done {
			break
		}
		cluster = next
	}

	if remaining > 0 {
		return fmt.Errorf("exfat: %q: cluster chain ended with %d bytes unread", fi.Name, remaining)
	}

	mrs := reader.NewMultiReadSeeker(readers, sizes)
	if _, err := io.Copy(dst, mrs); err != nil {
		return fmt.Errorf("exfat: copy %q: %w", fi.Name, err)
	}
	return nil
}

// ExtractToFile extracts fi into a new file at path, then applies fi's
// modified/access times.
func (w *Walker) ExtractToFile(fi FileInfo, path string, opts ExtractOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exfat: create %q: %w", path, err)
	}
	if err := w.Extract(fi, f, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("exfat: close %q: %w", path, err)
	}
	if err := os.Chtimes(path, fi.AccessTime, fi.ModifiedTime); err != nil {
		return fmt.Errorf("exfat: set times on %q: %w", path, err)
	}
	return nil
}
