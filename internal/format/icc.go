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

// iccDetector recognizes ICC color profiles. http://www.npes.org/ICC/ICC1-V41_ForPublicReview.pdf
//
// As with BMP, the whole size is known from the header alone, so there is
// no DataCheck phase.
type iccDetector struct{}

// ICC is the default ICC Detector instance.
var ICC Detector = iccDetector{}

var iccHeader = []byte{'a', 'c', 's', 'p'}

func (iccDetector) Info() Info {
	return Info{
		Ext:         "icc",
		Description: "Color profiles",
		Signatures: []Signature{
			{Offset: 36, Bytes: iccHeader},
		},
		MaxFileSize:      256 << 20,
		EnabledByDefault: true,
	}
}

func (iccDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	if len(buf) < 40 {
		return HeaderResult{Kind: NoMatch}
	}
	if !bytes.Equal(buf[36:40], iccHeader) {
		return HeaderResult{Kind: NoMatch}
	}

	size := uint64(buf[0])<<24 | uint64(buf[1])<<16 | uint64(buf[2])<<8 | uint64(buf[3])
	if size > 128 && buf[10] == 0 && buf[11] == 0 {
		return HeaderResult{Kind: Start, Extension: "icc", InitialSize: size, Mode: DataCheckNone}
	}
	return HeaderResult{Kind: NoMatch}
}

// DataCheck is never invoked for an ICC recovery: the profile's full size is
// fixed at HeaderCheck time and the carver streams straight to it.
func (iccDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	return DataCheckResult{Kind: Continue}
}

func (iccDetector) FileCheck(rec *Recovery) {
	_ = rec
}
