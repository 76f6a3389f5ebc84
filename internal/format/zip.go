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
	"bytes"
	"encoding/binary"
)

// zipDetector recognizes ZIP archives, including the Office Open XML family
// (docx/pptx/xlsx), which are ordinary ZIPs whose member names this detector
// sniffs for. The per-archive sniffing flags are packed into Recovery.State
// alongside the phase tag, since a Detector cannot hold per-recovery state
// itself.
type zipDetector struct{}

// ZIP is the default ZIP Detector instance.
var ZIP Detector = zipDetector{}

var (
	zipSig4Bytes     = []byte{'P', 'K', 0x03, 0x04}
	zipSig8Bytes     = []byte{'P', 'K', '0', '0', 'P', 'K', 0x03, 0x04}
	zipCentralDirSig = []byte{'P', 'K', 0x01, 0x02}
	zipDescriptorSig = []byte{'P', 'K', 0x07, 0x08}
	zipEOCDSig       = []byte{'P', 'K', 0x05, 0x06}
)

const (
	zipPhaseEntry = iota
	zipPhaseDescriptor
	zipPhaseCentralDir
)

const (
	zipFlagContentTypes = 1 << 4
	zipFlagRels         = 1 << 5
	zipFlagWordDoc      = 1 << 6
	zipFlagPpt          = 1 << 7
	zipFlagXl           = 1 << 8
)

func (zipDetector) Info() Info {
	return Info{
		Ext:         "zip",
		Description: "ZIP archive",
		Signatures: []Signature{
			{Offset: 0, Bytes: zipSig4Bytes},
			{Offset: 0, Bytes: zipSig8Bytes},
		},
		MaxFileSize:      4 << 30,
		EnabledByDefault: true,
	}
}

func (zipDetector) HeaderCheck(buf []byte, active *Recovery) HeaderResult {
	switch {
	case len(buf) >= 8 && bytes.Equal(buf[:8], zipSig8Bytes):
		return HeaderResult{Kind: Start, Extension: "zip", MinSize: 22, InitialSize: 4, State: zipPhaseEntry}
	case len(buf) >= 4 && bytes.Equal(buf[:4], zipSig4Bytes):
		return HeaderResult{Kind: Start, Extension: "zip", MinSize: 22, InitialSize: 0, State: zipPhaseEntry}
	}
	return HeaderResult{Kind: NoMatch}
}

func (zipDetector) DataCheck(window []byte, base uint64, rec *Recovery) DataCheckResult {
	phase := rec.State & 0xf
	flags := rec.State &^ 0xf
	switch phase {
	case zipPhaseEntry:
		return zipEntry(window, base, rec, flags)
	case zipPhaseDescriptor:
		return zipDescriptor(window, base, rec, flags)
	case zipPhaseCentralDir:
		return zipCentralDir(window, base, rec)
	default:
		return DataCheckResult{Kind: Abort}
	}
}

// zipEntry consumes one local file header: fixed fields (30 bytes) +
// filename + extra field, then either the file's data or (if the streaming
// flag is set) a trailing data descriptor.
func zipEntry(window []byte, base uint64, rec *Recovery, flags int) DataCheckResult {
	i := cursorIndex(base, rec)
	if i < 0 || i+30 >= len(window) {
		rec.State = zipPhaseEntry | flags
		return DataCheckResult{Kind: Continue}
	}

	if bytes.Equal(window[i:i+4], zipCentralDirSig) {
		rec.State = zipPhaseCentralDir | flags
		return zipCentralDir(window, base, rec)
	}
	if !bytes.Equal(window[i:i+4], zipSig4Bytes) {
		return DataCheckResult{Kind: Abort}
	}

	flagsField := binary.LittleEndian.Uint16(window[i+6 : i+8])
	compression := binary.LittleEndian.Uint16(window[i+8 : i+10])
	compressedSize := uint64(binary.LittleEndian.Uint32(window[i+18 : i+22]))
	uncompressedSize := uint64(binary.LittleEndian.Uint32(window[i+22 : i+26]))
	filenameLen := int(binary.LittleEndian.Uint16(window[i+26 : i+28]))
	extraLen := int(binary.LittleEndian.Uint16(window[i+28 : i+30]))

	headerLen := 30 + filenameLen + extraLen
	if i+headerLen >= len(window) {
		rec.State = zipPhaseEntry | flags
		return DataCheckResult{Kind: Continue}
	}

	flags |= zipSniffName(string(window[i+30 : i+30+filenameLen]))

	size := uncompressedSize
	if compression != 0 {
		size = compressedSize
	}
	hasDesc := flagsField&0x0008 != 0
	if hasDesc && size != 0 {
		return DataCheckResult{Kind: Abort}
	}

	rec.CalculatedSize += uint64(headerLen)

	if hasDesc {
		rec.State = zipPhaseDescriptor | flags
		return zipDescriptor(window, base, rec, flags)
	}

	rec.CalculatedSize += size
	rec.State = zipPhaseEntry | flags
	return zipEntry(window, base, rec, flags)
}

func zipSniffName(name string) int {
	switch name {
	case "[Content_Types].xml":
		return zipFlagContentTypes
	case "_rels/.rels":
		return zipFlagRels
	case "word/document.xml":
		return zipFlagWordDoc
	case "ppt/presentation.xml":
		return zipFlagPpt
	case "xl/workbook.xml":
		return zipFlagXl
	}
	return 0
}

// zipDescriptor scans for the streaming data descriptor's signature, then
// skips its fixed 16-byte body (signature included).
func zipDescriptor(window []byte, base uint64, rec *Recovery, flags int) DataCheckResult {
	i := cursorIndex(base, rec)
	if i < 0 {
		return DataCheckResult{Kind: Abort}
	}
	for j := i; j+4 <= len(window); j++ {
		if bytes.Equal(window[j:j+4], zipDescriptorSig) {
			if j+16 > len(window) {
				break
			}
			rec.CalculatedSize += uint64(j-i) + 16
			rec.State = zipPhaseEntry | flags
			return zipEntry(window, base, rec, flags)
		}
	}
	rec.State = zipPhaseDescriptor | flags
	return DataCheckResult{Kind: Continue}
}

// zipCentralDir scans for the end-of-central-directory record and folds in
// its trailing comment length.
func zipCentralDir(window []byte, base uint64, rec *Recovery) DataCheckResult {
	i := cursorIndex(base, rec)
	if i < 0 {
		return DataCheckResult{Kind: Abort}
	}
	for j := i; j+4 <= len(window); j++ {
		if bytes.Equal(window[j:j+4], zipEOCDSig) {
			if j+22 > len(window) {
				break
			}
			commentLen := binary.LittleEndian.Uint16(window[j+20 : j+22])
			rec.CalculatedSize += uint64(j-i) + 22 + uint64(commentLen)
			return DataCheckResult{Kind: Terminate, FinalSize: rec.CalculatedSize}
		}
	}
	rec.State = zipPhaseCentralDir | rec.State&^0xf
	return DataCheckResult{Kind: Continue}
}

func (zipDetector) FileCheck(rec *Recovery) {
	flags := rec.State &^ 0xf
	isOffice := flags&zipFlagContentTypes != 0 && flags&zipFlagRels != 0
	switch {
	case isOffice && flags&zipFlagWordDoc != 0:
		rec.Extension = "docx"
	case isOffice && flags&zipFlagPpt != 0:
		rec.Extension = "pptx"
	case isOffice && flags&zipFlagXl != 0:
		rec.Extension = "xlsx"
	}
}
