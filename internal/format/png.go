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

// pngDetector recognizes PNG, MNG and JNG, which all share an 8-byte magic
// framing scheme and chunked body.
type pngDetector struct{}

// PNG is the default PNG/MNG/JNG Detector instance.
var PNG Detector = pngDetector{}

var (
	pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	mngMagic = []byte{0x8a, 'M', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	jngMagic = []byte{0x8b, 'J', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
)

const (
	pngKindPNG = iota
	pngKindMNG
	pngKindJNG
)

func (pngDetector) Info() Info {
	return Info{
		Ext:         "png",
		Description: "Portable/JPEG/Multiple-Image Network Graphics",
		Signatures: []Signature{
			{Offset: 0, Bytes: pngMagic},
			{Offset: 0, Bytes: mngMagic},
			{Offset: 0, Bytes: jngMagic},
		},
		MaxFileSize:      4 << 30,
		EnabledByDefault: true,
	}
}

func (pngDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < 8 {
		return HeaderResult{Kind: NoMatch}
	}

	switch {
	case bytes.Equal(buf[:8], jngMagic):
		return HeaderResult{Kind: Start, Extension: "jng", InitialSize: 8, State: pngKindJNG}
	case bytes.Equal(buf[:8], mngMagic):
		return HeaderResult{Kind: Start, Extension: "mng", InitialSize: 8, State: pngKindMNG}
	case bytes.Equal(buf[:8], pngMagic):
		// SolidWorks documents embed a PNG thumbnail; while such a compound
		// recovery is active, decline the embedded signature explicitly
		// rather than report a match the carver would ignore anyway.
		if active != nil && active.Extension == "sld" || active != nil && active.Extension == "sldprt" {
			return HeaderResult{Kind: SuppressActive}
		}
		return HeaderResult{Kind: Start, Extension: "png", InitialSize: 8, State: pngKindPNG}
	}
	return HeaderResult{Kind: NoMatch}
}

func (pngDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	if rec.State == pngKindMNG {
		return pngChunkWalk(window, base, rec, []byte("MEND"), false)
	}
	return pngChunkWalk(window, base, rec, []byte("IEND"), true)
}

// pngChunkWalk advances chunk by chunk: each is length(4) + type(4) + data
// + crc(4), so length+12 per step. checkAlpha enables PNG's "chunk type
// must be ASCII alphabetic" corruption safeguard, which the MNG variant
// does not apply.
func pngChunkWalk(window []byte, base uint64, rec *Recovery, footer []byte, checkAlpha bool) DataCheckResult {
	for {
		i := cursorIndex(base, rec)
		if i < 0 || i+8 >= len(window) {
			return DataCheckResult{Kind: Continue}
		}

		length := uint64(window[i])<<24 | uint64(window[i+1])<<16 | uint64(window[i+2])<<8 | uint64(window[i+3])
		rec.CalculatedSize += length + 12

		if bytes.Equal(window[i+4:i+8], footer) {
			return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
		}

		if checkAlpha && !isChunkTypeASCII(window[i+4 : i+8]) {
			return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
		}
	}
}

func isChunkTypeASCII(b []byte) bool {
	for _, c := range b {
		if !isAsciiAlpha(c) {
			return false
		}
	}
	return true
}

func isAsciiAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// FileCheck: a stream cut short of the size the chunk walk established is
// discarded, one past it truncated back.
func (pngDetector) FileCheck(rec *Recovery) {
	if rec.WrittenSize < rec.CalculatedSize {
		rec.WrittenSize = 0
	} else {
		rec.WrittenSize = rec.CalculatedSize
	}
}
