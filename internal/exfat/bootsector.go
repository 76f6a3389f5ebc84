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

// Package exfat reads an exFAT volume through a block.Source: boot sector
// validation, directory enumeration (including deleted entries), and file
// content extraction by cluster-chain following. It is independent of the
// carve package and never writes to the source.
package exfat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cgsec/digler/internal/block"
)

const (
	bootSignature = 0xAA55
	oemID         = "EXFAT   "

	// NBRClusterMax bounds how many clusters an enumeration (directory
	// listing or file copy) will follow, guarding against a corrupt or
	// cyclic FAT spinning forever.
	NBRClusterMax = 30

	// eocMarker is the exFAT end-of-chain sentinel.
	eocMarker = 0xFFFFFFFF
)

// rawBootSector mirrors the on-disk exFAT boot sector layout byte for byte:
// a fixed-layout struct read with binary.Read over the first bytes of the
// volume, the same shape internal/disk uses for the FAT boot sector.
type rawBootSector struct {
	JumpBoot                    [3]byte
	FileSystemName              [8]byte
	MustBeZero                  [53]byte
	PartitionOffset             uint64
	VolumeLength                uint64
	FatOffset                   uint32
	FatLength                   uint32
	ClusterHeapOffset           uint32
	ClusterCount                uint32
	FirstClusterOfRootDirectory uint32
	VolumeSerialNumber          uint32
	FileSystemRevision          uint16
	VolumeFlags                 uint16
	BytesPerSectorShift         uint8
	SectorsPerClusterShift      uint8
	NumberOfFats                uint8
	DriveSelect                 uint8
	PercentInUse                uint8
	Reserved                    [7]byte
	BootCode                    [390]byte
	BootSignature               uint16
}

// BootSector is the subset of the raw layout the walker and extractor
// actually consult.
type BootSector struct {
	// BlockPerClusBits is log2(sectors per cluster).
	BlockPerClusBits uint8
	// BlocksizeBits is log2(bytes per sector).
	BlocksizeBits uint8
	// RootdirClusnr is the first cluster of the root directory.
	RootdirClusnr uint32
	// FatBlocknr is the FAT's offset, in sectors, from the start of the
	// volume.
	FatBlocknr uint32
	// ClusBlocknr is the cluster heap's offset, in sectors, from the start
	// of the volume.
	ClusBlocknr uint32
	// TotalClusters is the number of clusters in the cluster heap.
	TotalClusters uint32
}

// ReadBootSector reads and validates the boot sector at the start of src,
// checking the 0xAA55 signature at byte offset 510 and the "EXFAT   " OEM id
// at bytes [3:11].
func ReadBootSector(src block.Source) (*BootSector, error) {
	buf := make([]byte, 512)
	n, err := src.ReadAt(0, buf)
	if err != nil {
		return nil, fmt.Errorf("exfat: read boot sector: %w", err)
	}
	if n < 512 {
		return nil, fmt.Errorf("exfat: %w: short boot sector read (%d bytes)", ErrBadSignature, n)
	}

	var raw rawBootSector
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("exfat: decode boot sector: %w", err)
	}
	if raw.BootSignature != bootSignature {
		return nil, fmt.Errorf("exfat: %w: bad boot signature %#04x", ErrBadSignature, raw.BootSignature)
	}
	if string(raw.FileSystemName[:]) != oemID {
		return nil, fmt.Errorf("exfat: %w: oem id %q", ErrBadSignature, raw.FileSystemName[:])
	}

	return &BootSector{
		BlockPerClusBits: raw.SectorsPerClusterShift,
		BlocksizeBits:    raw.BytesPerSectorShift,
		RootdirClusnr:    raw.FirstClusterOfRootDirectory,
		FatBlocknr:       raw.FatOffset,
		ClusBlocknr:      raw.ClusterHeapOffset,
		TotalClusters:    raw.ClusterCount,
	}, nil
}

// SectorSize returns the volume's byte-per-sector size.
func (b *BootSector) SectorSize() uint64 { return 1 << b.BlocksizeBits }

// ClusterShift is BlockPerClusBits + BlocksizeBits, log2(bytes per
// cluster).
func (b *BootSector) ClusterShift() uint { return uint(b.BlockPerClusBits) + uint(b.BlocksizeBits) }

// ClusterSize returns the volume's byte-per-cluster size.
func (b *BootSector) ClusterSize() uint64 { return 1 << b.ClusterShift() }

// ClusterOffset returns the absolute byte offset of cluster (cluster
// numbers start at 2, matching the FAT/exFAT convention).
func (b *BootSector) ClusterOffset(cluster uint32) uint64 {
	clusterBlocks := uint64(1) << b.BlockPerClusBits
	return (uint64(b.ClusBlocknr) + (uint64(cluster)-2)*clusterBlocks) * b.SectorSize()
}

// fatEntryOffset returns the absolute byte offset of cluster's 32-bit FAT
// entry.
func (b *BootSector) fatEntryOffset(cluster uint32) uint64 {
	return uint64(b.FatBlocknr)*b.SectorSize() + uint64(cluster)*4
}
