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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGIFHeaderCheckGlobalColorTable(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf, "GIF89a")

	// No global color table: the initial size is header + logical screen
	// descriptor only.
	res := GIF.HeaderCheck(buf, nil)
	require.Equal(t, Start, res.Kind)
	require.Equal(t, uint64(13), res.InitialSize)

	// Global color table present, size bits 2: 3*2^3 = 24 extra bytes.
	buf[10] = 0x80 | 0x02
	res = GIF.HeaderCheck(buf, nil)
	require.Equal(t, Start, res.Kind)
	require.Equal(t, uint64(13+24), res.InitialSize)
}

func TestPSBHeaderCheckImageDataCap(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf, []byte{'8', 'B', 'P', 'S', 0x00, 0x02})
	buf[13] = 3                               // channels
	binary.BigEndian.PutUint32(buf[14:18], 5) // height
	binary.BigEndian.PutUint32(buf[18:22], 7) // width
	buf[23] = 16                              // bits per channel

	res := PSB.HeaderCheck(buf, nil)
	require.Equal(t, Start, res.Kind)
	require.Equal(t, uint64(0x1a), res.InitialSize)
	require.Equal(t, uint64(3*5*7*16/8), res.Aux)
}

func TestPNGHeaderCheckSuppressedInsideCompoundDocument(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})

	res := PNG.HeaderCheck(buf, &Recovery{Extension: "sld"})
	require.Equal(t, SuppressActive, res.Kind)

	res = PNG.HeaderCheck(buf, &Recovery{Extension: "sldprt"})
	require.Equal(t, SuppressActive, res.Kind)

	res = PNG.HeaderCheck(buf, &Recovery{Extension: "zip"})
	require.Equal(t, Start, res.Kind)
	require.Equal(t, "png", res.Extension)
}

func TestMPGHeaderCheckRejectsZeroHorizontalSize(t *testing.T) {
	// A sequence header start code whose horizontal size decodes to zero
	// must not start a recovery.
	buf := make([]byte, 64)
	copy(buf, []byte{0x00, 0x00, 0x01, 0xB3})
	res := MPG.HeaderCheck(buf, nil)
	require.Equal(t, NoMatch, res.Kind)

	// 320x240, aspect 0x1, frame rate 0x3, non-zero bitrate, marker bit.
	buf[4], buf[5], buf[6] = 0x14, 0x00, 0xf0
	buf[7] = 0x13
	buf[8], buf[9] = 0x27, 0x10
	buf[10] = 0x20
	res = MPG.HeaderCheck(buf, nil)
	require.Equal(t, Start, res.Kind)
	require.Equal(t, "mpg", res.Extension)
}

func TestICCHeaderCheckValidatesSizeField(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf[36:], "acsp")

	// Size field of 0x40 is <= 128: rejected.
	binary.BigEndian.PutUint32(buf[0:4], 0x40)
	require.Equal(t, NoMatch, ICC.HeaderCheck(buf, nil).Kind)

	binary.BigEndian.PutUint32(buf[0:4], 0x300)
	res := ICC.HeaderCheck(buf, nil)
	require.Equal(t, Start, res.Kind)
	require.Equal(t, uint64(0x300), res.InitialSize)
	require.Equal(t, DataCheckNone, res.Mode)

	// Bytes 10 and 11 must be zero.
	buf[10] = 1
	require.Equal(t, NoMatch, ICC.HeaderCheck(buf, nil).Kind)
}
