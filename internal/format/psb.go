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

import (
	"bytes"
	"encoding/binary"
)

// psbDetector recognizes Adobe Photoshop images (PSD/PSB), walking the three
// length-prefixed sections (color mode data, image resources, layer and mask
// information) that precede the unprefixed image data.
//
// The image-data size cap lives on Recovery.Aux, never on the detector:
// one Detector instance is shared by every concurrently-active recovery.
type psbDetector struct{}

// PSB is the default Photoshop Detector instance.
var PSB Detector = psbDetector{}

var psbHeader = []byte{'8', 'B', 'P', 'S', 0x00, 0x02}

const (
	psbStateColorMode = iota
	psbStateImageResources
	psbStateLayerInfo
	psbStateImageData
)

func (psbDetector) Info() Info {
	return Info{
		Ext:         "psb",
		Description: "Adobe Photoshop Image",
		Signatures: []Signature{
			{Offset: 0, Bytes: psbHeader},
		},
		MaxFileSize:      4 << 30,
		EnabledByDefault: true,
	}
}

func (psbDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < 0x1a || !bytes.Equal(buf[:6], psbHeader) {
		return HeaderResult{Kind: NoMatch}
	}
	return HeaderResult{
		Kind:        Start,
		Extension:   "psb",
		MinSize:     70,
		InitialSize: 0x1a,
		State:       psbStateColorMode,
		Aux:         psbImageDataSizeMax(buf),
	}
}

// psbImageDataSizeMax computes the channels x height x width x depth
// product from the fixed header fields at offsets 12..23, an upper bound on
// the uncompressed image-data section.
func psbImageDataSizeMax(buf []byte) uint64 {
	channels := uint64(buf[12])<<8 | uint64(buf[13])
	height := uint64(buf[14])<<24 | uint64(buf[15])<<16 | uint64(buf[16])<<8 | uint64(buf[17])
	width := uint64(buf[18])<<24 | uint64(buf[19])<<16 | uint64(buf[20])<<8 | uint64(buf[21])
	depth := uint64(buf[23])
	return channels * height * width * depth / 8
}

func (psbDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	return psbSkip(window, base, rec, rec.State)
}

// psbSkip walks the three length-prefixed sections: each reads a
// big-endian 64-bit section length at the cursor, adds length+8 to
// CalculatedSize, and advances to the next. The final image-data section
// has no length prefix, so reaching it demotes the recovery to
// DataCheckNone: the carver streams raw bytes until the image-data size
// cap or end-of-stream, and FileCheck clamps.
func psbSkip(window []byte, base uint64, rec *Recovery, state int) DataCheckResult {
	if state == psbStateImageData {
		rec.State = psbStateImageData
		rec.Mode = DataCheckNone
		return DataCheckResult{Kind: Continue}
	}

	i := cursorIndex(base, rec)
	if i < 0 || i+16 >= len(window) {
		rec.State = state
		return DataCheckResult{Kind: Continue}
	}

	l := binary.BigEndian.Uint64(window[i:i+8]) + 8
	if l < 4 {
		return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
	}
	rec.CalculatedSize += l

	next := state + 1
	return psbSkip(window, base, rec, next)
}

func (psbDetector) FileCheck(rec *Recovery) {
	if rec.WrittenSize < rec.CalculatedSize {
		rec.WrittenSize = 0
		return
	}
	if rec.WrittenSize > rec.CalculatedSize+rec.Aux {
		rec.WrittenSize = rec.CalculatedSize + rec.Aux
	}
}
