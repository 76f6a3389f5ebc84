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

import "bytes"

// mpgDetector recognizes MPEG-1/2 program streams and bare MPEG-4 elementary
// video, each keyed by a distinct 4-byte start code but sharing one
// data_check.
type mpgDetector struct{}

// MPG is the default MPEG Detector instance.
var MPG Detector = mpgDetector{}

var (
	mpgHeaderSequence  = []byte{0x00, 0x00, 0x01, 0xB3} // picture sequence header
	mpgHeaderElemVideo = []byte{0x00, 0x00, 0x01, 0xB5} // MPEG-4 visual object
	mpgHeaderPack      = []byte{0x00, 0x00, 0x01, 0xBA} // pack start code
	mpgHeaderSystem    = []byte{0x00, 0x00, 0x01, 0xBB} // system header start code
)

func (mpgDetector) Info() Info {
	return Info{
		Ext:         "mpg",
		Description: "Moving Picture Experts Group video",
		Signatures: []Signature{
			{Offset: 0, Bytes: mpgHeaderSequence},
			{Offset: 0, Bytes: mpgHeaderElemVideo},
			{Offset: 0, Bytes: mpgHeaderPack},
			{Offset: 0, Bytes: mpgHeaderSystem},
		},
		MaxFileSize:      4 << 30,
		EnabledByDefault: true,
	}
}

func (mpgDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < 12 {
		return HeaderResult{Kind: NoMatch}
	}

	activeIsMpg := active != nil && active.Extension == "mpg"

	switch {
	case bytes.Equal(buf[:4], mpgHeaderPack):
		return mpgHeaderCheckPack(buf, active, activeIsMpg)
	case bytes.Equal(buf[:4], mpgHeaderSystem):
		if activeIsMpg {
			return HeaderResult{Kind: NoMatch}
		}
		if buf[6]&0x80 == 0x80 && buf[8]&0x01 == 0x01 && buf[11] == 0xff {
			return HeaderResult{Kind: Start, Extension: "mpg"}
		}
	case bytes.Equal(buf[:4], mpgHeaderSequence):
		if activeIsMpg {
			return HeaderResult{Kind: NoMatch}
		}
		if (uint16(buf[4])<<4)+uint16(buf[5]>>4) > 0 &&
			(uint16(buf[5]&0x0f)<<8)+uint16(buf[6]) > 0 &&
			buf[7]>>4 != 0 && buf[7]>>4 != 15 &&
			buf[7]&0x0f != 0 && buf[7]&0xf != 15 &&
			(buf[8] != 0 || buf[9] != 0 || buf[10]&0xc0 != 0) &&
			buf[10]&0x20 == 0x20 {
			return HeaderResult{Kind: Start, Extension: "mpg"}
		}
	case bytes.Equal(buf[:4], mpgHeaderElemVideo):
		if activeIsMpg {
			return HeaderResult{Kind: NoMatch}
		}
		if buf[4]&0xf0 == 0x80 &&
			((buf[4]>>3)&0x0f == 1 || (buf[4]>>3)&0x0f == 2) &&
			buf[4]&0x7 != 0 &&
			buf[5]>>4 != 0 && buf[5]>>4 != 0x0f {
			return HeaderResult{Kind: Start, Extension: "mpg"}
		}
	}
	return HeaderResult{Kind: NoMatch}
}

// mpgHeaderCheckPack recognizes both the MPEG-1 pack start code (the SCR=0
// special case always starts a recovery) and the MPEG-2 program stream pack
// header.
func mpgHeaderCheckPack(buf []byte, active *Recovery, activeIsMpg bool) HeaderResult {
	if buf[4]&0xF1 == 0x21 && buf[6]&1 == 1 && buf[8]&1 == 1 &&
		buf[9]&0x80 == 0x80 && buf[11]&1 == 1 {
		if buf[5] == 0 && buf[6] == 1 && buf[7] == 0 && buf[8] == 1 {
			return HeaderResult{Kind: Start, Extension: "mpg"}
		}
		if activeIsMpg {
			return HeaderResult{Kind: NoMatch}
		}
		return HeaderResult{Kind: Start, Extension: "mpg"}
	}
	if buf[4]&0xc4 == 0x44 && buf[6]&4 == 4 && buf[8]&4 == 4 {
		if buf[4] == 0x44 && buf[5] == 0 && buf[6] == 4 && buf[7] == 0 && buf[8]&0xfc == 4 {
			return HeaderResult{Kind: Start, Extension: "mpg"}
		}
		if activeIsMpg {
			return HeaderResult{Kind: NoMatch}
		}
		return HeaderResult{Kind: Start, Extension: "mpg"}
	}
	return HeaderResult{Kind: NoMatch}
}

var mpgPaddingISOEnd = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x01, 0xB9}
var mpgSequenceEndISOEnd = []byte{0x00, 0x00, 0x01, 0xB7, 0x00, 0x00, 0x01, 0xB9}

// DataCheck searches for the stream's two possible endings around the
// recovery's parse frontier.
func (mpgDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	cur := cursorIndex(base, rec)
	if cur < 0 {
		return DataCheckResult{Kind: Continue}
	}

	// A padding run from the previous half ending in the iso end code lands
	// the 8-byte pattern straddling the frontier, 4 bytes either side.
	if cur >= 4 && cur+4 <= len(window) && bytes.Equal(window[cur-4:cur+4], mpgPaddingISOEnd) {
		rec.CalculatedSize += 4
		return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
	}

	start := cur - 7
	if start < 0 {
		start = 0
	}
	for i := start; i+8 <= len(window); i++ {
		if window[i] == 0x00 && bytes.Equal(window[i:i+8], mpgSequenceEndISOEnd) {
			rec.CalculatedSize += uint64(i + 8 - cur)
			return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
		}
	}

	// Some files don't end with an iso end code: keep the frontier moving a
	// half-window at a time so the max-size cap eventually closes them.
	rec.CalculatedSize += uint64(len(window) / 2)
	return DataCheckResult{Kind: Continue}
}

// FileCheck: an MPEG stream cut short of its scanned frontier is
// discarded, one past it truncated back.
func (mpgDetector) FileCheck(rec *Recovery) {
	if rec.WrittenSize < rec.CalculatedSize {
		rec.WrittenSize = 0
	} else {
		rec.WrittenSize = rec.CalculatedSize
	}
}
