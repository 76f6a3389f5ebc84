package main

import (
	"bytes"

	"github.com/cgsec/digler/internal/format"
)

// simpleDetector is a minimal out-of-tree Detector, demonstrating the
// .so plugin contract LoadPlugins expects: a fixed 4-byte magic, a fixed
// recovered size, no DataCheck state machine.
type simpleDetector struct{}

var simpleMagic = []byte{0xDE, 0xAD, 0xBE, 0xEF}

func (simpleDetector) Info() format.Info {
	return format.Info{
		Ext:         "simple",
		Description: "Simple test file format scanner",
		Signatures: []format.Signature{
			{Offset: 0, Bytes: simpleMagic},
		},
		MaxFileSize: 1024,
	}
}

func (simpleDetector) HeaderCheck(buf []byte, active *format.Recovery) format.HeaderResult {
	if len(buf) < len(simpleMagic) || !bytes.Equal(buf[:len(simpleMagic)], simpleMagic) {
		return format.HeaderResult{Kind: format.NoMatch}
	}
	return format.HeaderResult{Kind: format.Start, Extension: "simple", InitialSize: 1024, MinSize: 4}
}

func (simpleDetector) DataCheck(window []byte, base uint64, rec *format.Recovery) format.DataCheckResult {
	return format.DataCheckResult{Kind: format.Terminate, FinalSize: rec.CalculatedSize}
}

func (simpleDetector) FileCheck(rec *format.Recovery) {}

// GetDetector is the exported constructor every digler plugin must provide.
func GetDetector() (format.Detector, error) {
	return simpleDetector{}, nil
}

// main is unused: this file is built with -buildmode=plugin, which ignores
// it, but package main still requires it for ordinary `go build ./...`.
func main() {}
