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

import "encoding/binary"

// bmpDetector recognizes Windows/OS2 Bitmap images. Like ICC, the whole file
// size is stated in the header (BITMAPFILEHEADER.FileSize), so there is no
// DataCheck phase at all.
type bmpDetector struct{}

// BMP is the default BMP Detector instance.
var BMP Detector = bmpDetector{}

// BMP compression types, from the BITMAPINFOHEADER spec.
const (
	biRGB            = 0
	biRLE8           = 1
	biRLE4           = 2
	biBitfields      = 3
	biJPEG           = 4
	biPNG            = 5
	biAlphaBitfields = 6
	biCMYK           = 11
	biCMYKRLE8       = 12
	biCMYKRLE4       = 13
)

func (bmpDetector) Info() Info {
	return Info{
		Ext:         "bmp",
		Description: "Bitmap Image File Format",
		Signatures: []Signature{
			{Offset: 0, Bytes: []byte("BM")},
		},
		MaxFileSize:      256 << 20,
		EnabledByDefault: true,
	}
}

// bmpMinHeader is BITMAPFILEHEADER (14 bytes) + the smallest DIB header
// (BITMAPCOREHEADER, 12 bytes).
const bmpMinHeader = 14 + 12

func (bmpDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < bmpMinHeader || buf[0] != 'B' || buf[1] != 'M' {
		return HeaderResult{Kind: NoMatch}
	}

	fileSize := binary.LittleEndian.Uint32(buf[2:6])
	reserved1 := binary.LittleEndian.Uint16(buf[6:8])
	reserved2 := binary.LittleEndian.Uint16(buf[8:10])
	dataOffset := binary.LittleEndian.Uint32(buf[10:14])

	if reserved1 != 0 || reserved2 != 0 {
		return HeaderResult{Kind: NoMatch}
	}
	if fileSize < bmpMinHeader || dataOffset < 14 {
		return HeaderResult{Kind: NoMatch}
	}

	dibSize := binary.LittleEndian.Uint32(buf[14:18])
	switch dibSize {
	case 12, 40, 64, 108, 124:
	default:
		return HeaderResult{Kind: NoMatch}
	}
	if uint64(len(buf)) < 14+uint64(dibSize) {
		return HeaderResult{Kind: NoMatch}
	}

	var planes, bpp uint16
	var compression uint32
	if dibSize == 12 {
		// BITMAPCOREHEADER has 16-bit width/height and no compression field.
		planes = binary.LittleEndian.Uint16(buf[22:24])
		bpp = binary.LittleEndian.Uint16(buf[24:26])
		compression = biRGB
	} else {
		planes = binary.LittleEndian.Uint16(buf[26:28])
		bpp = binary.LittleEndian.Uint16(buf[28:30])
		compression = binary.LittleEndian.Uint32(buf[30:34])
	}

	if planes != 1 {
		return HeaderResult{Kind: NoMatch}
	}
	switch bpp {
	case 1, 4, 8, 16, 24, 32:
	default:
		return HeaderResult{Kind: NoMatch}
	}
	switch compression {
	case biRGB, biRLE8, biRLE4, biBitfields, biJPEG, biPNG, biAlphaBitfields, biCMYK, biCMYKRLE8, biCMYKRLE4:
	default:
		return HeaderResult{Kind: NoMatch}
	}

	return HeaderResult{Kind: Start, Extension: "bmp", InitialSize: uint64(fileSize), MinSize: bmpMinHeader, Mode: DataCheckNone}
}

// DataCheck is never invoked for a BMP recovery: like ICC, the whole size
// comes from the header and the carver streams straight to it.
func (bmpDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	return DataCheckResult{Kind: Continue}
}

func (bmpDetector) FileCheck(rec *Recovery) {
	_ = rec
}
