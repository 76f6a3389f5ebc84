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
	"errors"
	"fmt"
	"sort"

	"github.com/cgsec/digler/pkg/table"
)

// ErrInvalidSignature marks a Register call whose detector declares an empty
// pattern or an (offset, bytes) pair another detector already claimed —
// a configuration error, surfaced at registration rather than at scan time.
var ErrInvalidSignature = errors.New("format: invalid signature registration")

// Registry is a table of registered signatures mapped to Detector handles.
// Patterns are anchored (no regex): most are at in-header offset 0, a few
// (ICC) at a small fixed offset. Lookup is a multi-way matcher over
// pkg/table.PrefixTable, keyed on the first bytes of each pattern.
type Registry struct {
	byOffset map[int]*table.PrefixTable[Detector]
	index    map[Detector]int
	next     int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byOffset: make(map[int]*table.PrefixTable[Detector]),
		index:    make(map[Detector]int),
	}
}

// Register adds every signature declared by d's Info. Each (offset, bytes)
// pair must be unique across the whole registry.
func (r *Registry) Register(d Detector) error {
	for _, sig := range d.Info().Signatures {
		if len(sig.Bytes) == 0 {
			return fmt.Errorf("%w: empty pattern for %q", ErrInvalidSignature, d.Info().Ext)
		}
		t, ok := r.byOffset[sig.Offset]
		if !ok {
			t = table.New[Detector]()
			r.byOffset[sig.Offset] = t
		}
		if _, claimed := t.Get(sig.Bytes); claimed {
			return fmt.Errorf("%w: duplicate pattern %x at offset %d", ErrInvalidSignature, sig.Bytes, sig.Offset)
		}
		t.Insert(sig.Bytes, d)
	}
	if _, ok := r.index[d]; !ok {
		r.index[d] = r.next
		r.next++
	}
	return nil
}

// Lookup returns every Detector whose pattern matches window at the given
// cursor (window[cursor+offset : cursor+offset+len(pattern)]), in
// deterministic registration order.
func (r *Registry) Lookup(window []byte, cursor int) []Detector {
	if len(r.byOffset) == 0 {
		return nil
	}

	var out []Detector
	for offset, t := range r.byOffset {
		start := cursor + offset
		if start < 0 || start >= len(window) {
			continue
		}
		t.Walk(window[start:], func(d Detector) bool {
			out = append(out, d)
			return false
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return r.index[out[i]] < r.index[out[j]]
	})

	// Dedup while preserving order: a detector registering two patterns
	// where one is a prefix of the other matches twice at the same cursor.
	seen := make(map[Detector]bool, len(out))
	deduped := out[:0]
	for _, d := range out {
		if !seen[d] {
			seen[d] = true
			deduped = append(deduped, d)
		}
	}
	return deduped
}
