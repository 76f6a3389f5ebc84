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
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/cgsec/digler/internal/block"
)

const dirEntrySize = 32

// Directory entry type bytes. The top bit (0x80) marks an entry in-use;
// clear, it's a deleted entry of the same kind.
const (
	entryFile          = 0x85
	entryFileDeleted   = 0x05
	entryStreamExt     = 0xC0
	entryStreamDeleted = 0x40
	entryNameExt       = 0xC1
	entryNameDeleted   = 0x41
)

// FileInfo is one enumerated directory entry, assembled from a File entry,
// its Stream-extension entry, and as many File-name-extension entries as
// SecondaryCount - 1 declares.
type FileInfo struct {
	Name          string
	Attributes    uint16
	FirstCluster  uint32
	DataLength    uint64
	AccessTime    time.Time
	ModifiedTime  time.Time
	CreatedTime   time.Time
	Deleted       bool
}

// Walker enumerates an exFAT volume's root directory.
type Walker struct {
	src  block.Source
	boot *BootSector
}

// NewWalker validates the boot sector at the start of src and returns a
// Walker ready to enumerate.
func NewWalker(src block.Source) (*Walker, error) {
	boot, err := ReadBootSector(src)
	if err != nil {
		return nil, err
	}
	return &Walker{src: src, boot: boot}, nil
}

// ListOptions configures a single ReadDir call.
type ListOptions struct {
	// ListDeleted includes entries whose top bit is clear, and permits the
	// NextFreeCluster heuristic for a deleted file's own first cluster.
	ListDeleted bool
}

// ReadDir enumerates the root directory, following its cluster chain up to
// NBRClusterMax clusters.
func (w *Walker) ReadDir(opts ListOptions) ([]FileInfo, error) {
	chain := newClusterChain(w.src, w.boot)
	clusterSize := w.boot.ClusterSize()
	buf := make([]byte, clusterSize)

	var entries []FileInfo
	var cur *FileInfo
	var pendingSecondaries int

	cluster := w.boot.RootdirClusnr
	first := true
	for n := 0; n < NBRClusterMax && cluster >= 2; n++ {
		if _, err := w.src.ReadAt(w.boot.ClusterOffset(cluster), buf); err != nil {
			return entries, fmt.Errorf("exfat: read cluster %d: %w", cluster, err)
		}

		for off := 0; off+dirEntrySize <= len(buf); off += dirEntrySize {
			e := buf[off : off+dirEntrySize]
			typ := e[0]
			switch typ {
			case entryFile, entryFileDeleted:
				fi := parseFileEntry(e)
				fi.Deleted = typ == entryFileDeleted
				pendingSecondaries = int(e[1])
				cur = nil
				if !fi.Deleted || opts.ListDeleted {
					entries = append(entries, fi)
					cur = &entries[len(entries)-1]
				}
			case entryStreamExt, entryStreamDeleted:
				if cur == nil {
					continue
				}
				applyStreamExt(e, cur)
				pendingSecondaries--
			case entryNameExt, entryNameDeleted:
				if cur == nil || pendingSecondaries <= 0 {
					continue
				}
				appendNameExt(e, cur)
				pendingSecondaries--
			default:
				cur = nil
			}
		}

		next, done := chain.next(cluster, first, opts.ListDeleted)
		first = false
		if done {
			break
		}
		cluster = next
	}

	return entries, nil
}

// parseFileEntry decodes a 0x85/0x05 File entry: attributes and three
// DOS-style timestamps.
func parseFileEntry(e []byte) FileInfo {
	attr := binary.LittleEndian.Uint16(e[4:6])
	cTime := binary.LittleEndian.Uint16(e[8:10])
	cDate := binary.LittleEndian.Uint16(e[10:12])
	mTime := binary.LittleEndian.Uint16(e[12:14])
	mDate := binary.LittleEndian.Uint16(e[14:16])
	aTime := binary.LittleEndian.Uint16(e[16:18])
	aDate := binary.LittleEndian.Uint16(e[18:20])
	return FileInfo{
		Attributes:   attr,
		CreatedTime:  dosDateTime(cDate, cTime),
		ModifiedTime: dosDateTime(mDate, mTime),
		AccessTime:   dosDateTime(aDate, aTime),
	}
}

// dosDateTime converts a classic FAT/DOS 16-bit date + 16-bit time pair to
// a time.Time. date: bits 15-9 years since 1980, 8-5 month, 4-0 day. time:
// bits 15-11 hours, 10-5 minutes, 4-0 seconds/2.
func dosDateTime(date, t uint16) time.Time {
	year := int(date>>9) + 1980
	month := int((date >> 5) & 0xF)
	day := int(date & 0x1F)
	hour := int(t >> 11)
	min := int((t >> 5) & 0x3F)
	sec := int(t&0x1F) * 2
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// applyStreamExt decodes a 0xC0/0x40 Stream-extension entry, supplying
// data_length and first_cluster for the most recently started File entry.
func applyStreamExt(e []byte, cur *FileInfo) {
	cur.FirstCluster = binary.LittleEndian.Uint32(e[20:24])
	cur.DataLength = binary.LittleEndian.Uint64(e[24:32])
}

// appendNameExt decodes a 0xC1/0x41 File-name-extension entry, appending up
// to 15 UCS-2 characters transcoded UTF-16LE->UTF-8; truncating each code
// unit to its low byte would mangle any non-ASCII name.
func appendNameExt(e []byte, cur *FileInfo) {
	raw := e[2:32]
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(trimNullPairs(raw))
	if err == nil {
		cur.Name += string(out)
	}
}

// trimNullPairs drops trailing 0x0000 UTF-16 code units so the decoder
// doesn't append NUL runes to a name shorter than 15 characters.
func trimNullPairs(raw []byte) []byte {
	end := len(raw)
	for end >= 2 && raw[end-2] == 0 && raw[end-1] == 0 {
		end -= 2
	}
	return raw[:end]
}
