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

// gifDetector recognizes the Graphic Interchange Format.
type gifDetector struct{}

// GIF is the default GIF Detector instance.
var GIF Detector = gifDetector{}

var (
	gifHeader87 = []byte("GIF87a")
	gifHeader89 = []byte("GIF89a")
	gifFooter   = []byte{0x00, 0x3b}
)

const (
	gifStateBlock = iota // scanning block introducers
	gifStateSub          // scanning length-prefixed sub-blocks
)

func (gifDetector) Info() Info {
	return Info{
		Ext:         "gif",
		Description: "Graphic Interchange Format",
		Signatures: []Signature{
			{Offset: 0, Bytes: gifHeader87},
			{Offset: 0, Bytes: gifHeader89},
		},
		MaxFileSize:      4 << 30,
		EnabledByDefault: true,
	}
}

func (gifDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < 13 {
		return HeaderResult{Kind: NoMatch}
	}
	if !bytes.Equal(buf[:6], gifHeader87) && !bytes.Equal(buf[:6], gifHeader89) {
		return HeaderResult{Kind: NoMatch}
	}

	offset := uint64(6) // header
	offset += 7         // logical screen descriptor
	if buf[10]>>7&1 == 1 {
		// global color table
		offset += 3 << ((buf[10] & 7) + 1)
	}

	return HeaderResult{
		Kind:        Start,
		Extension:   "gif",
		MinSize:     42,
		InitialSize: offset,
		State:       gifStateBlock,
	}
}

func (gifDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	return gifDataCheck(window, base, rec, rec.State)
}

// gifDataCheck walks GIF blocks from the recovery's parse cursor: an
// extension introducer or image descriptor switches into sub-block mode,
// the 0x3B trailer ends the file, anything else means this never was a GIF
// past the header.
func gifDataCheck(window []byte, base uint64, rec *Recovery, state int) DataCheckResult {
	switch state {
	case gifStateBlock:
		for {
			i := cursorIndex(base, rec)
			if i < 0 || i+20 >= len(window) {
				rec.State = gifStateBlock
				return DataCheckResult{Kind: Continue}
			}
			switch window[i] {
			case 0x21:
				// Plain Text / Graphic Control / Comment / Application Extension
				rec.CalculatedSize += 2
				return gifDataCheck(window, base, rec, gifStateSub)
			case 0x2c:
				j := i + 10 // image descriptor
				if (window[j+9]>>7)&1 != 0 {
					j += 3 << ((window[j+9] & 7) + 1)
				}
				j++ // LZW minimum code size
				rec.CalculatedSize += uint64(j - i)
				return gifDataCheck(window, base, rec, gifStateSub)
			case 0x3b:
				rec.CalculatedSize++
				return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
			default:
				return DataCheckResult{Kind: Abort}
			}
		}
	case gifStateSub:
		for {
			i := cursorIndex(base, rec)
			if i < 0 || i+2 >= len(window) {
				rec.State = gifStateSub
				return DataCheckResult{Kind: Continue}
			}
			l := window[i]
			rec.CalculatedSize += uint64(l) + 1
			if l == 0 {
				return gifDataCheck(window, base, rec, gifStateBlock)
			}
		}
	default:
		return DataCheckResult{Kind: Abort}
	}
}

func (gifDetector) FileCheck(rec *Recovery) {
	// The Terminate path lands CalculatedSize exactly on the 00 3B trailer,
	// so there is nothing further to truncate to.
	_ = rec
}
