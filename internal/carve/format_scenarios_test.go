package carve

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cgsec/digler/internal/format"
)

// runScenario carves data through the full built-in Registry and returns the
// committed artifacts along with their bytes, keyed by artifact name.
func runScenario(t *testing.T, data []byte) ([]Artifact, map[string][]byte) {
	t.Helper()

	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	reg := format.NewDefaultRegistry()
	c := NewCarver(&memSource{data: data}, reg, sink, Options{Window: 256})

	var artifacts []Artifact
	c.Scan(context.Background())(func(a Artifact) bool {
		artifacts = append(artifacts, a)
		return true
	})
	if err := c.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	content := make(map[string][]byte, len(artifacts))
	for _, a := range artifacts {
		b, err := os.ReadFile(filepath.Join(dir, a.Name))
		if err != nil {
			t.Fatalf("read artifact %s: %v", a.Name, err)
		}
		content[a.Name] = b
	}
	return artifacts, content
}

// minimalGIF builds a well-formed GIF89a stream with an empty (no global
// color table) logical screen descriptor, one extension block, one 30-byte
// sub-block, and a trailer — 48 bytes total, comfortably over the detector's
// 42-byte min_size floor.
func minimalGIF() []byte {
	gif := append([]byte("GIF89a"), make([]byte, 7)...) // header + LSD, flags=0: no GCT
	gif = append(gif, 0x21, 0x00)                       // extension introducer + label
	gif = append(gif, 30)                               // sub-block length
	gif = append(gif, make([]byte, 30)...)              // sub-block data
	gif = append(gif, 0)                                // sub-block terminator
	gif = append(gif, 0x3b)                             // trailer
	return gif
}

// S1 (extended past the detector's min_size floor): a GIF89a header, one
// extension sub-block, and a trailer. Round-trips byte-exact.
func TestScenarioGIF(t *testing.T) {
	gif := minimalGIF()

	data := make([]byte, 1024)
	data = append(data, gif...)
	data = append(data, make([]byte, 512)...)

	artifacts, content := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	if a.Extension != "gif" || a.Offset != 1024 || a.Size != uint64(len(gif)) {
		t.Fatalf("unexpected artifact: %+v, want size %d", a, len(gif))
	}
	if string(content[a.Name]) != string(gif) {
		t.Fatalf("content mismatch: got %x, want %x", content[a.Name], gif)
	}
}

// S3: a minimal well-formed PNG stream: magic, IHDR(13), IDAT(3), IEND(0),
// each correctly length/type/crc framed (CRC bytes are not validated by
// data_check, only chunk type and length, matching file_png.c).
func TestScenarioPNG(t *testing.T) {
	var png []byte
	png = append(png, 0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a)
	png = append(png, pngChunk("IHDR", make([]byte, 13))...)
	png = append(png, pngChunk("IDAT", make([]byte, 3))...)
	png = append(png, pngChunk("IEND", nil)...)

	data := append([]byte{}, png...)
	data = append(data, make([]byte, 512)...)

	artifacts, content := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	wantSize := uint64(8 + (13 + 12) + (3 + 12) + (0 + 12))
	if a.Extension != "png" || a.Offset != 0 || a.Size != wantSize {
		t.Fatalf("unexpected artifact: %+v, want size %d", a, wantSize)
	}
	if string(content[a.Name]) != string(png) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(content[a.Name]), len(png))
	}
}

func pngChunk(typ string, data []byte) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	out = append(out, 0, 0, 0, 0) // CRC, not validated
	return out
}

// S4: an ICC profile header with a known total size, acsp magic at offset
// 36, and the two size-prefix-validity bytes zeroed.
func TestScenarioICC(t *testing.T) {
	const size = 0xC0
	icc := make([]byte, size)
	binary.BigEndian.PutUint32(icc[0:4], size)
	icc[10], icc[11] = 0, 0
	copy(icc[36:40], "acsp")

	data := append([]byte{}, icc...)
	data = append(data, make([]byte, 256)...)

	artifacts, content := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	if a.Extension != "icc" || a.Offset != 0 || a.Size != size {
		t.Fatalf("unexpected artifact: %+v", a)
	}
	if string(content[a.Name]) != string(icc) {
		t.Fatalf("content mismatch")
	}
}

// S2: an 8BPS header followed by three length-prefixed sections (color mode,
// image resources, layer info) of length 8 each, and trailing raw bytes that
// fall outside the zero-valued image-data-size cap computed from the
// (deliberately zeroed) color-mode header fields, so file_check clamps them
// away.
func TestScenarioPSB(t *testing.T) {
	header := make([]byte, 0x1a)
	copy(header, []byte{'8', 'B', 'P', 'S', 0x00, 0x02})

	section := func(n int) []byte {
		s := make([]byte, 8+n)
		binary.BigEndian.PutUint64(s[0:8], uint64(n))
		return s
	}

	var psb []byte
	psb = append(psb, header...)
	psb = append(psb, section(8)...) // color mode
	psb = append(psb, section(8)...) // image resources
	psb = append(psb, section(8)...) // layer info
	wantSize := uint64(len(psb))

	data := append([]byte{}, psb...)
	data = append(data, make([]byte, 20)...) // raw image data, clamped away
	data = append(data, make([]byte, 256)...)

	artifacts, content := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	if a.Extension != "psb" || a.Offset != 0 || a.Size != wantSize {
		t.Fatalf("unexpected artifact: %+v, want size %d", a, wantSize)
	}
	if string(content[a.Name]) != string(psb) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(content[a.Name]), len(psb))
	}
}

// An ICC profile whose body happens to contain another format's signature
// (an MPEG pack start code with SCR=0, which always passes header
// validation) must still be recovered whole: the embedded match is ignored
// while the profile's recovery is active.
func TestScenarioICCIgnoresEmbeddedSignature(t *testing.T) {
	const size = 0xC0
	icc := make([]byte, size)
	binary.BigEndian.PutUint32(icc[0:4], size)
	copy(icc[36:40], "acsp")
	copy(icc[64:], []byte{0x00, 0x00, 0x01, 0xBA, 0x21, 0x00, 0x01, 0x00, 0x01, 0x80, 0x00, 0x01})

	data := append([]byte{}, icc...)
	data = append(data, make([]byte, 256)...)

	artifacts, content := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1: %+v", len(artifacts), artifacts)
	}
	a := artifacts[0]
	if a.Extension != "icc" || a.Offset != 0 || a.Size != size {
		t.Fatalf("unexpected artifact: %+v", a)
	}
	if !bytes.Equal(content[a.Name], icc) {
		t.Fatalf("profile truncated or altered: got %d bytes", len(content[a.Name]))
	}
}

// S2 with a real image-data ceiling: channels=1, height=2, width=4, depth=8
// gives an 8-byte cap, so exactly 8 of the trailing raw bytes survive the
// file-check clamp.
func TestScenarioPSBImageDataClamp(t *testing.T) {
	header := make([]byte, 0x1a)
	copy(header, []byte{'8', 'B', 'P', 'S', 0x00, 0x02})
	header[13] = 1                               // channels
	binary.BigEndian.PutUint32(header[14:18], 2) // height
	binary.BigEndian.PutUint32(header[18:22], 4) // width
	header[23] = 8                               // bits per channel

	section := func(n int) []byte {
		s := make([]byte, 8+n)
		binary.BigEndian.PutUint64(s[0:8], uint64(n))
		return s
	}

	var psb []byte
	psb = append(psb, header...)
	psb = append(psb, section(8)...)
	psb = append(psb, section(8)...)
	psb = append(psb, section(8)...)

	raw := bytes.Repeat([]byte{0xEE}, 20)
	want := append(append([]byte{}, psb...), raw[:8]...)

	data := append(append([]byte{}, psb...), raw...)
	data = append(data, make([]byte, 256)...)

	artifacts, content := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	if a.Extension != "psb" || a.Offset != 0 || a.Size != uint64(len(want)) {
		t.Fatalf("unexpected artifact: %+v, want size %d", a, len(want))
	}
	if !bytes.Equal(content[a.Name], want) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(content[a.Name]), len(want))
	}
}

// S6: two overlapping GIF headers six bytes apart; only the first is
// recovered because the second is ignored while the first recovery is
// active (a fresh match never ends a live recovery).
func TestScenarioOverlappingGIFHeaders(t *testing.T) {
	gif := minimalGIF()

	data := make([]byte, 512)
	copy(data, gif)
	copy(data[6:], "GIF89a") // second header starts 6 bytes in, inside the first recovery

	artifacts, _ := runScenario(t, data)
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1 (overlapping GIF header must not split the recovery): %+v", len(artifacts), artifacts)
	}
	if artifacts[0].Offset != 0 {
		t.Fatalf("recovered artifact anchored at wrong offset: %+v", artifacts[0])
	}
}
