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
	"errors"
	"fmt"
	"io"

	"github.com/cgsec/digler/internal/disk"
	"github.com/cgsec/digler/internal/fs"
)

// FileSource adapts an internal/fs.File raw device/image handle to the
// Source contract.
type FileSource struct {
	f          fs.File
	sectorSize uint32
	length     uint64
}

// NewFileSource opens a Source over an already-open fs.File. A sectorSize of
// 0 falls back to disk.DefaultBlocksize.
func NewFileSource(f fs.File, sectorSize uint32) (*FileSource, error) {
	if sectorSize == 0 {
		sectorSize = disk.DefaultBlocksize
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("block: stat source: %w", err)
	}
	return &FileSource{f: f, sectorSize: sectorSize, length: uint64(fi.Size())}, nil
}

func (s *FileSource) ReadAt(offset uint64, dst []byte) (int, error) {
	n, err := s.f.ReadAt(dst, int64(offset))
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (s *FileSource) SectorSize() uint32 { return s.sectorSize }
func (s *FileSource) Length() uint64     { return s.length }
func (s *FileSource) Close() error       { return s.f.Close() }
