package exfat

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestDosDateTime(t *testing.T) {
	// 2024-03-15, 14:32:46. DOS date: ((2024-1980)<<9)|(3<<5)|15.
	// DOS time: (14<<11)|(32<<5)|(46/2).
	date := uint16((2024-1980)<<9 | 3<<5 | 15)
	clock := uint16(14<<11 | 32<<5 | 23)

	got := dosDateTime(date, clock)
	want := time.Date(2024, time.March, 15, 14, 32, 46, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("dosDateTime(%#04x, %#04x) = %v, want %v", date, clock, got, want)
	}
}

func TestDosDateTimeZeroMonthDay(t *testing.T) {
	// A zeroed date/time pair (as in an uninitialized directory entry)
	// must not produce an invalid time.Date month/day of 0.
	got := dosDateTime(0, 0)
	if got.Month() != time.January || got.Day() != 1 {
		t.Fatalf("dosDateTime(0,0) = %v, want month=January day=1", got)
	}
	if got.Year() != 1980 {
		t.Fatalf("dosDateTime(0,0) year = %d, want 1980", got.Year())
	}
}

func TestAppendNameExtUTF16LE(t *testing.T) {
	cur := &FileInfo{}

	// "HELLO.TXT" as UTF-16LE, padded with null pairs to the 30-byte
	// File-name-extension payload (15 UCS-2 characters).
	entry := make([]byte, 32)
	entry[0] = entryNameExt
	name := "HELLO.TXT"
	for i, r := range name {
		entry[2+i*2] = byte(r)
		entry[2+i*2+1] = 0
	}

	appendNameExt(entry, cur)
	if cur.Name != name {
		t.Fatalf("appendNameExt: got %q, want %q", cur.Name, name)
	}
}

func TestAppendNameExtConcatenatesAcrossEntries(t *testing.T) {
	// A name longer than 15 characters spans more than one
	// File-name-extension entry; appendNameExt must concatenate them in
	// order rather than overwrite.
	cur := &FileInfo{}
	long := "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345" // 32 chars, spans 3 entries

	for start := 0; start < len(long); start += 15 {
		end := start + 15
		if end > len(long) {
			end = len(long)
		}
		chunk := long[start:end]
		entry := make([]byte, 32)
		entry[0] = entryNameExt
		for i, r := range chunk {
			entry[2+i*2] = byte(r)
			entry[2+i*2+1] = 0
		}
		appendNameExt(entry, cur)
	}

	if cur.Name != long {
		t.Fatalf("appendNameExt (multi-entry) = %q, want %q", cur.Name, long)
	}
}

func TestTrimNullPairs(t *testing.T) {
	raw := []byte{'H', 0, 'I', 0, 0, 0, 0, 0}
	trimmed := trimNullPairs(raw)
	if len(trimmed) != 4 {
		t.Fatalf("trimNullPairs: len=%d, want 4", len(trimmed))
	}
}

// buildVolume assembles a minimal in-memory exFAT volume: boot sector, FAT,
// and cluster heap. Geometry: 512-byte sectors, 1 sector per cluster, FAT at
// sector 8, cluster heap at sector 16, root directory in cluster 2.
type volumeBuilder struct {
	data []byte
}

func newVolumeBuilder(clusterCount uint32) *volumeBuilder {
	v := &volumeBuilder{data: make([]byte, (16+int(clusterCount))*512)}
	copy(v.data, newRawBootSector(8, 16, 2, clusterCount, 9, 0))
	v.setFAT(2, eocMarker) // root directory: single cluster
	return v
}

func (v *volumeBuilder) setFAT(cluster, next uint32) {
	binary.LittleEndian.PutUint32(v.data[8*512+cluster*4:], next)
}

func (v *volumeBuilder) cluster(n uint32) []byte {
	off := (16 + int(n) - 2) * 512
	return v.data[off : off+512]
}

// addFile writes a File + Stream-extension + File-name-extension entry
// triple at the given root-directory slot and fills the file's clusters.
func (v *volumeBuilder) addFile(slot int, name string, content []byte, firstCluster uint32, deleted bool) {
	chain := firstCluster
	for off := 0; off < len(content); off += 512 {
		end := off + 512
		if end > len(content) {
			end = len(content)
		}
		copy(v.cluster(chain), content[off:end])
		if end < len(content) {
			if deleted {
				v.setFAT(chain, 0) // freed chain, reconstructed heuristically
			} else {
				v.setFAT(chain, chain+1)
			}
			chain++
		} else if deleted {
			v.setFAT(chain, 0)
		} else {
			v.setFAT(chain, eocMarker)
		}
	}

	root := v.cluster(2)
	e := root[slot*dirEntrySize:]

	fileType := byte(entryFile)
	streamType := byte(entryStreamExt)
	nameType := byte(entryNameExt)
	if deleted {
		fileType = entryFileDeleted
		streamType = entryStreamDeleted
		nameType = entryNameDeleted
	}

	e[0] = fileType
	e[1] = 2 // stream extension + one name extension
	binary.LittleEndian.PutUint16(e[12:14], uint16(10<<11|30<<5|15)) // mtime 10:30:30
	binary.LittleEndian.PutUint16(e[14:16], uint16((2024-1980)<<9|6<<5|1))

	s := e[dirEntrySize:]
	s[0] = streamType
	binary.LittleEndian.PutUint32(s[20:24], firstCluster)
	binary.LittleEndian.PutUint64(s[24:32], uint64(len(content)))

	n := e[2*dirEntrySize:]
	n[0] = nameType
	for i, r := range name {
		n[2+i*2] = byte(r)
	}
}

func testFileContent(size int) []byte {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func TestWalkerReadDirAndExtract(t *testing.T) {
	v := newVolumeBuilder(64)
	content := testFileContent(5000)
	v.addFile(0, "HELLO.TXT", content, 3, false)

	w, err := NewWalker(&memSource{data: v.data, sectorSize: 512})
	if err != nil {
		t.Fatalf("NewWalker: %v", err)
	}

	entries, err := w.ReadDir(ListOptions{})
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Name != "HELLO.TXT" || e.DataLength != 5000 || e.FirstCluster != 3 || e.Deleted {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.ModifiedTime.Year() != 2024 {
		t.Fatalf("mtime not decoded: %v", e.ModifiedTime)
	}

	var buf bytes.Buffer
	if err := w.Extract(e, &buf, ExtractOptions{}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Fatalf("extracted %d bytes, mismatch against original %d", buf.Len(), len(content))
	}
}

func TestWalkerDeletedEntryHeuristicChain(t *testing.T) {
	v := newVolumeBuilder(64)
	content := testFileContent(2000)
	v.addFile(0, "GONE.BIN", content, 3, true)

	w, err := NewWalker(&memSource{data: v.data, sectorSize: 512})
	if err != nil {
		t.Fatalf("NewWalker: %v", err)
	}

	// Without ListDeleted the entry is invisible.
	entries, err := w.ReadDir(ListOptions{})
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries without ListDeleted, want 0", len(entries))
	}

	entries, err = w.ReadDir(ListOptions{ListDeleted: true})
	if err != nil {
		t.Fatalf("ReadDir(deleted): %v", err)
	}
	if len(entries) != 1 || !entries[0].Deleted || entries[0].Name != "GONE.BIN" {
		t.Fatalf("unexpected deleted listing: %+v", entries)
	}

	// The FAT marks the whole chain free; extraction succeeds only through
	// the free-cluster walk.
	var buf bytes.Buffer
	if err := w.Extract(entries[0], &buf, ExtractOptions{ListDeleted: true}); err != nil {
		t.Fatalf("Extract(deleted): %v", err)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Fatalf("deleted-file reconstruction mismatch: got %d bytes", buf.Len())
	}
}
