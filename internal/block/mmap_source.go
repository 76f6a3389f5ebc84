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
package block

import (
	"fmt"

	"github.com/cgsec/digler/internal/mmap"
)

// MmapSource backs a Source with a page-cache-mapped file, avoiding a
// syscall per window refill on large images.
type MmapSource struct {
	m          *mmap.MmapFile
	sectorSize uint32
}

// NewMmapSource maps the whole file at path read-only.
func NewMmapSource(path string, sectorSize uint32) (*MmapSource, error) {
	m, err := mmap.NewMmapFile(path)
	if err != nil {
		return nil, fmt.Errorf("block: mmap source: %w", err)
	}
	if sectorSize == 0 {
		sectorSize = 512
	}
	return &MmapSource{m: m, sectorSize: sectorSize}, nil
}

func (s *MmapSource) ReadAt(offset uint64, dst []byte) (int, error) {
	if offset >= uint64(s.m.FileSize) {
		return 0, nil
	}
	n := copy(dst, s.m.Data[offset:])
	return n, nil
}

func (s *MmapSource) SectorSize() uint32 { return s.sectorSize }
func (s *MmapSource) Length() uint64     { return uint64(s.m.FileSize) }
func (s *MmapSource) Close() error       { return s.m.Close() }
