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

import "fmt"

// OffsetSource restricts a parent Source to the sub-range [offset, offset+
// length), re-basing ReadAt so offset 0 of the OffsetSource is offset of the
// parent. Both the carver (scoped to a single disk.Partition) and the exFAT
// walker (whose boot sector sits at partition-relative offset 0) read through
// one of these rather than juggling a raw offset everywhere.
type OffsetSource struct {
	parent Source
	offset uint64
	length uint64
}

// NewOffsetSource mounts a view of parent starting at offset, length bytes
// long. A length of 0 extends to the end of parent.
func NewOffsetSource(parent Source, offset, length uint64) (*OffsetSource, error) {
	total := parent.Length()
	if offset > total {
		return nil, fmt.Errorf("block: offset %d past parent length %d", offset, total)
	}
	if length == 0 || offset+length > total {
		length = total - offset
	}
	return &OffsetSource{parent: parent, offset: offset, length: length}, nil
}

func (s *OffsetSource) ReadAt(offset uint64, dst []byte) (int, error) {
	if offset >= s.length {
		return 0, nil
	}
	if max := s.length - offset; uint64(len(dst)) > max {
		dst = dst[:max]
	}
	return s.parent.ReadAt(s.offset+offset, dst)
}

func (s *OffsetSource) SectorSize() uint32 { return s.parent.SectorSize() }
func (s *OffsetSource) Length() uint64     { return s.length }
