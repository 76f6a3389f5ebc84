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

// jpegDetector recognizes JFIF/Exif JPEG streams with a marker-segment
// walk in the style of the standard library's image/jpeg decoder: lenient
// toward fill bytes and restart markers, driven from the recovery's parse
// cursor rather than a pull reader.
type jpegDetector struct{}

// JPEG is the default JPEG Detector instance.
var JPEG Detector = jpegDetector{}

var jpegHeader = []byte{0xFF, 0xD8, 0xFF}

const (
	jpegSOIMarker = 0xd8
	jpegEOIMarker = 0xd9
	jpegSOSMarker = 0xda
	jpegRST0      = 0xd0
	jpegRST7      = 0xd7
)

const (
	jpegStateMarker = iota
	jpegStateEntropy
)

func (jpegDetector) Info() Info {
	return Info{
		Ext:         "jpg",
		Description: "JPEG picture",
		Signatures: []Signature{
			{Offset: 0, Bytes: jpegHeader},
		},
		MaxFileSize:      4 << 30,
		EnabledByDefault: true,
	}
}

func (jpegDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < 3 || !bytes.Equal(buf[:3], jpegHeader) {
		return HeaderResult{Kind: NoMatch}
	}
	return HeaderResult{
		Kind:        Start,
		Extension:   "jpg",
		MinSize:     134,
		InitialSize: 2,
		State:       jpegStateMarker,
	}
}

func (jpegDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	return jpegDataCheck(window, base, rec, rec.State)
}

func jpegDataCheck(window []byte, base uint64, rec *Recovery, state int) DataCheckResult {
	switch state {
	case jpegStateMarker:
		for {
			i := cursorIndex(base, rec)
			if i < 0 || i+4 >= len(window) {
				rec.State = jpegStateMarker
				return DataCheckResult{Kind: Continue}
			}
			if window[i] != 0xff {
				return DataCheckResult{Kind: Abort}
			}
			if window[i+1] == 0xff {
				// fill byte preceding the real marker
				rec.CalculatedSize++
				continue
			}
			marker := window[i+1]
			switch {
			case marker == jpegEOIMarker:
				rec.CalculatedSize += 2
				return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
			case marker >= jpegRST0 && marker <= jpegRST7:
				rec.CalculatedSize += 2
				continue
			default:
				segLen := int(window[i+2])<<8 | int(window[i+3])
				if segLen < 2 {
					return DataCheckResult{Kind: Abort}
				}
				rec.CalculatedSize += uint64(2 + segLen)
				if marker == jpegSOSMarker {
					return jpegDataCheck(window, base, rec, jpegStateEntropy)
				}
			}
		}
	case jpegStateEntropy:
		for {
			i := cursorIndex(base, rec)
			if i < 0 || i+2 >= len(window) {
				rec.State = jpegStateEntropy
				return DataCheckResult{Kind: Continue}
			}
			if window[i] != 0xff {
				rec.CalculatedSize++
				continue
			}
			next := window[i+1]
			if next == 0x00 || (next >= jpegRST0 && next <= jpegRST7) {
				rec.CalculatedSize += 2
				continue
			}
			// real marker: hand back to marker-scanning without consuming it
			return jpegDataCheck(window, base, rec, jpegStateMarker)
		}
	default:
		return DataCheckResult{Kind: Abort}
	}
}

func (jpegDetector) FileCheck(rec *Recovery) {
	_ = rec
}
