package carve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cgsec/digler/internal/format"
)

// memSource is a minimal block.Source backed by an in-memory byte slice, for
// driving the Carver without touching disk.
type memSource struct {
	data []byte
}

func (m *memSource) ReadAt(offset uint64, dst []byte) (int, error) {
	if offset >= uint64(len(m.data)) {
		return 0, nil
	}
	n := copy(dst, m.data[offset:])
	return n, nil
}

func (m *memSource) SectorSize() uint32 { return 1 }
func (m *memSource) Length() uint64     { return uint64(len(m.data)) }

// fixedDetector recognizes a literal magic byte string and terminates after
// a fixed payload length, for driver-loop tests that don't need a real
// format's state machine.
type fixedDetector struct {
	ext     string
	magic   []byte
	size    uint64
	minSize uint64
	mode    format.DataCheckMode
	aux     uint64
}

// Methods take a pointer receiver so each fixedDetector instance is its own
// comparable identity (the Registry and Carver key/compare Detector values
// by interface identity, and a struct holding a []byte field isn't itself
// comparable).
func (d *fixedDetector) Info() format.Info {
	return format.Info{
		Ext:        d.ext,
		Signatures: []format.Signature{{Offset: 0, Bytes: d.magic}},
	}
}

func (d *fixedDetector) HeaderCheck(buf []byte, active *format.Recovery) format.HeaderResult {
	if len(buf) < len(d.magic) || string(buf[:len(d.magic)]) != string(d.magic) {
		return format.HeaderResult{Kind: format.NoMatch}
	}
	return format.HeaderResult{Kind: format.Start, Extension: d.ext, MinSize: d.minSize, Mode: d.mode, Aux: d.aux}
}

func (d *fixedDetector) DataCheck(window []byte, base uint64, rec *format.Recovery) format.DataCheckResult {
	if rec.StreamStart+d.size <= base+uint64(len(window)) {
		return format.DataCheckResult{Kind: format.Terminate, FinalSize: d.size}
	}
	rec.CalculatedSize = base + uint64(len(window)) - rec.StreamStart
	return format.DataCheckResult{Kind: format.Continue}
}

func (*fixedDetector) FileCheck(*format.Recovery) {}

func newTestRegistry(t *testing.T, dets ...format.Detector) *format.Registry {
	t.Helper()
	reg := format.NewRegistry()
	for _, d := range dets {
		if err := reg.Register(d); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

func TestCarverRecoversSingleArtifact(t *testing.T) {
	det := &fixedDetector{ext: "bin", magic: []byte("MAGIC!!!"), size: 20, minSize: 1}
	data := make([]byte, 4096)
	copy(data[100:], det.magic)

	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	reg := newTestRegistry(t, det)
	c := NewCarver(&memSource{data: data}, reg, sink, Options{Window: 256})

	var artifacts []Artifact
	c.Scan(context.Background())(func(a Artifact) bool {
		artifacts = append(artifacts, a)
		return true
	})
	if err := c.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	if a.Offset != 100 || a.Size != 20 || a.Extension != "bin" {
		t.Fatalf("unexpected artifact: %+v", a)
	}

	content, err := os.ReadFile(filepath.Join(dir, a.Name))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(content) != 20 {
		t.Fatalf("artifact file has %d bytes, want 20", len(content))
	}
}

func TestCarverDiscardsBelowMinSize(t *testing.T) {
	det := &fixedDetector{ext: "bin", magic: []byte("MAGIC!!!"), size: 4, minSize: 1000}
	data := make([]byte, 512)
	copy(data[10:], det.magic)

	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	reg := newTestRegistry(t, det)
	c := NewCarver(&memSource{data: data}, reg, sink, Options{Window: 256})

	var artifacts []Artifact
	c.Scan(context.Background())(func(a Artifact) bool {
		artifacts = append(artifacts, a)
		return true
	})
	if err := c.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(artifacts) != 0 {
		t.Fatalf("got %d artifacts, want 0 (below min_size)", len(artifacts))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("discarded artifact file left behind: %v", entries)
	}
}

func TestCarverSameDetectorNeverPreemptsItself(t *testing.T) {
	det := &fixedDetector{ext: "gif", magic: []byte("GIF89a"), size: 1000, minSize: 1}
	data := make([]byte, 4096)
	copy(data[0:], det.magic)
	copy(data[6:], det.magic) // a second header six bytes later, still inside the first recovery

	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	reg := newTestRegistry(t, det)
	c := NewCarver(&memSource{data: data}, reg, sink, Options{Window: 256})

	var artifacts []Artifact
	c.Scan(context.Background())(func(a Artifact) bool {
		artifacts = append(artifacts, a)
		return true
	})
	if err := c.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1 (overlapping same-format header must not split the recovery)", len(artifacts))
	}
}

func TestCarverActiveStructureIgnoresNewHeaders(t *testing.T) {
	a := &fixedDetector{ext: "aaa", magic: []byte("AAAA"), size: 2000, minSize: 1}
	b := &fixedDetector{ext: "bbb", magic: []byte("BBBB"), size: 50, minSize: 1}
	data := make([]byte, 4096)
	copy(data[0:], a.magic)
	copy(data[50:], b.magic) // matches while a's recovery is still active

	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	reg := newTestRegistry(t, a, b)
	c := NewCarver(&memSource{data: data}, reg, sink, Options{Window: 256})

	var artifacts []Artifact
	c.Scan(context.Background())(func(art Artifact) bool {
		artifacts = append(artifacts, art)
		return true
	})
	if err := c.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1 (a's data check owns the stream until it ends)", len(artifacts))
	}
	if artifacts[0].Extension != "aaa" || artifacts[0].Offset != 0 || artifacts[0].Size != 2000 {
		t.Fatalf("unexpected artifact: %+v", artifacts[0])
	}
}

func TestCarverOpenEndedRecoveryIgnoresNewHeaders(t *testing.T) {
	// a has no data check and drains to its growth bound; a signature-shaped
	// byte run inside its body must not cut the recovery short.
	a := &fixedDetector{ext: "aaa", magic: []byte("AAAA"), minSize: 1, mode: format.DataCheckNone, aux: 100}
	b := &fixedDetector{ext: "bbb", magic: []byte("BBBB"), size: 50, minSize: 1}
	data := make([]byte, 4096)
	copy(data[0:], a.magic)
	copy(data[50:], b.magic) // inside a's body

	dir := t.TempDir()
	sink, err := NewDirSink(dir)
	if err != nil {
		t.Fatalf("NewDirSink: %v", err)
	}

	reg := newTestRegistry(t, a, b)
	c := NewCarver(&memSource{data: data}, reg, sink, Options{Window: 256})

	var artifacts []Artifact
	c.Scan(context.Background())(func(art Artifact) bool {
		artifacts = append(artifacts, art)
		return true
	})
	if err := c.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1 (embedded header must not end the open-ended recovery)", len(artifacts))
	}
	if artifacts[0].Extension != "aaa" || artifacts[0].Offset != 0 || artifacts[0].Size != 100 {
		t.Fatalf("unexpected artifact: %+v", artifacts[0])
	}
}
