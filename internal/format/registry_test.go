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
	"testing"

	"github.com/stretchr/testify/require"
)

// stubDetector is a no-op detector with a configurable signature, for
// registry tests that only care about matching and ordering.
type stubDetector struct {
	ext string
	sig []byte
}

func (d *stubDetector) Info() Info {
	return Info{Ext: d.ext, Signatures: []Signature{{Offset: 0, Bytes: d.sig}}}
}

func (d *stubDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	return HeaderResult{Kind: NoMatch}
}

func (d *stubDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	return DataCheckResult{Kind: Abort}
}

func (d *stubDetector) FileCheck(rec *Recovery) {}

func TestRegistryLookupAnchored(t *testing.T) {
	reg := NewDefaultRegistry()

	window := make([]byte, 1024)
	copy(window[100:], "GIF89a")

	ds := reg.Lookup(window, 100)
	require.Len(t, ds, 1)
	require.Equal(t, "gif", ds[0].Info().Ext)

	// One byte off the anchor, no detector fires.
	require.Empty(t, reg.Lookup(window, 99))
	require.Empty(t, reg.Lookup(window, 101))
}

func TestRegistryLookupIntraHeaderOffset(t *testing.T) {
	reg := NewDefaultRegistry()

	window := make([]byte, 1024)
	copy(window[200+36:], "acsp")

	ds := reg.Lookup(window, 200)
	require.Len(t, ds, 1)
	require.Equal(t, "icc", ds[0].Info().Ext)

	// The acsp bytes anchor the ICC detector only at cursor+36, not at the
	// cursor itself.
	require.Empty(t, reg.Lookup(window, 236))
}

func TestRegistryLookupRegistrationOrder(t *testing.T) {
	// Two patterns where one is a prefix of the other both match at the
	// same cursor; detectors come back in registration order.
	a := &stubDetector{ext: "aaa", sig: []byte("STUBBED")}
	b := &stubDetector{ext: "bbb", sig: []byte("STUB")}

	reg := NewRegistry()
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))

	window := make([]byte, 64)
	copy(window, "STUBBED!")

	ds := reg.Lookup(window, 0)
	require.Len(t, ds, 2)
	require.Equal(t, "aaa", ds[0].Info().Ext)
	require.Equal(t, "bbb", ds[1].Info().Ext)
}

func TestRegistryRegisterRejectsDuplicateSignature(t *testing.T) {
	a := &stubDetector{ext: "aaa", sig: []byte("STUB")}
	b := &stubDetector{ext: "bbb", sig: []byte("STUB")}

	reg := NewRegistry()
	require.NoError(t, reg.Register(a))
	require.ErrorIs(t, reg.Register(b), ErrInvalidSignature)

	require.ErrorIs(t, reg.Register(&stubDetector{ext: "ccc"}), ErrInvalidSignature)
}

func TestRegistryLookupNearWindowEnd(t *testing.T) {
	reg := NewDefaultRegistry()

	window := make([]byte, 64)
	require.Empty(t, reg.Lookup(window, 63))
	require.Empty(t, reg.Lookup(window, 64))
}
