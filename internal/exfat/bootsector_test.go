package exfat

import (
	"encoding/binary"
	"errors"
	"testing"
)

// memSource is a minimal in-memory block.Source for exfat package tests.
type memSource struct {
	data       []byte
	sectorSize uint32
}

func (m *memSource) ReadAt(offset uint64, dst []byte) (int, error) {
	if offset >= uint64(len(m.data)) {
		return 0, nil
	}
	n := copy(dst, m.data[offset:])
	return n, nil
}

func (m *memSource) SectorSize() uint32 { return m.sectorSize }
func (m *memSource) Length() uint64     { return uint64(len(m.data)) }

// newRawBootSector builds a minimal 512-byte exFAT boot sector with the
// given geometry, valid signature and OEM id.
func newRawBootSector(fatOffsetSectors, clusterHeapOffsetSectors, rootCluster, clusterCount uint32, bytesPerSectorShift, sectorsPerClusterShift uint8) []byte {
	buf := make([]byte, 512)
	copy(buf[3:11], "EXFAT   ")
	binary.LittleEndian.PutUint32(buf[80:84], fatOffsetSectors)
	binary.LittleEndian.PutUint32(buf[88:92], clusterHeapOffsetSectors)
	binary.LittleEndian.PutUint32(buf[92:96], clusterCount)
	binary.LittleEndian.PutUint32(buf[96:100], rootCluster)
	buf[108] = bytesPerSectorShift
	buf[109] = sectorsPerClusterShift
	binary.LittleEndian.PutUint16(buf[510:512], bootSignature)
	return buf
}

func TestReadBootSectorValid(t *testing.T) {
	raw := newRawBootSector(8, 16, 2, 64, 9, 0)
	src := &memSource{data: raw, sectorSize: 512}

	boot, err := ReadBootSector(src)
	if err != nil {
		t.Fatalf("ReadBootSector: %v", err)
	}
	if boot.RootdirClusnr != 2 {
		t.Errorf("RootdirClusnr = %d, want 2", boot.RootdirClusnr)
	}
	if boot.FatBlocknr != 8 {
		t.Errorf("FatBlocknr = %d, want 8", boot.FatBlocknr)
	}
	if boot.ClusBlocknr != 16 {
		t.Errorf("ClusBlocknr = %d, want 16", boot.ClusBlocknr)
	}
	if boot.ClusterSize() != 512 {
		t.Errorf("ClusterSize() = %d, want 512", boot.ClusterSize())
	}
	if got := boot.ClusterOffset(2); got != 16*512 {
		t.Errorf("ClusterOffset(2) = %d, want %d", got, 16*512)
	}
	if got := boot.ClusterOffset(3); got != 17*512 {
		t.Errorf("ClusterOffset(3) = %d, want %d", got, 17*512)
	}
}

func TestReadBootSectorBadSignature(t *testing.T) {
	raw := newRawBootSector(8, 16, 2, 64, 9, 0)
	raw[510] = 0 // corrupt the 0xAA55 signature
	raw[511] = 0
	src := &memSource{data: raw, sectorSize: 512}

	_, err := ReadBootSector(src)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("ReadBootSector: got %v, want ErrBadSignature", err)
	}
}

func TestReadBootSectorBadOEMID(t *testing.T) {
	raw := newRawBootSector(8, 16, 2, 64, 9, 0)
	copy(raw[3:11], "FAT32   ")
	src := &memSource{data: raw, sectorSize: 512}

	_, err := ReadBootSector(src)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("ReadBootSector: got %v, want ErrBadSignature", err)
	}
}
