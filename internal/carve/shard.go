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
package carve

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cgsec/digler/internal/block"
	"github.com/cgsec/digler/internal/format"
)

// Shard describes one disjoint, slightly-overlapping byte range of a larger
// source to scan independently. Overlap must be at least one Options.Window
// so a header straddling a shard boundary is still fully visible to one
// side; artifacts whose StreamStart falls in the overlap of the following
// shard are deduplicated by construction, since only the shard whose range
// contains StreamStart ever reports them (see ScanSharded).
type Shard struct {
	Offset uint64
	Length uint64
}

// PlanShards splits [0, total) into disjoint ranges of approximately size
// bytes, each extended by overlap bytes of lookahead borrowed from the next
// shard (clamped at total). Concurrency is bounded by len(shards), so choose
// size to target the desired fan-out rather than relying on a separate
// worker-count knob.
func PlanShards(total, size, overlap uint64) []Shard {
	if size == 0 || total == 0 {
		return []Shard{{Offset: 0, Length: total}}
	}
	var shards []Shard
	for off := uint64(0); off < total; off += size {
		length := size
		if off+length > total {
			length = total - off
		}
		readLength := length + overlap
		if off+readLength > total {
			readLength = total - off
		}
		shards = append(shards, Shard{Offset: off, Length: readLength})
	}
	return shards
}

// ShardSink is a factory handed to ScanSharded so each shard gets its own
// ArtifactSink (distinct counter namespace, e.g. a "shard-%d" subdirectory),
// avoiding the filename collisions a single shared DirSink would produce
// under concurrent Carvers.
type ShardSink func(shardIndex int) (ArtifactSink, error)

// ScanSharded runs one Carver per Shard concurrently, bounded by
// golang.org/x/sync/errgroup, and merges every committed Artifact — offset-
// adjusted back into src's absolute coordinates — into a single slice sorted
// by Offset. A header match inside a shard's borrowed overlap tail that
// belongs to the next shard's own [Offset, Offset+size) span is naturally
// re-discovered by that next shard's own scan over its primary range, so the
// only duplication risk is a recovery whose StreamStart falls in the
// overlap: ScanSharded drops any artifact whose Offset falls at or past
// shard.Offset+primarySize, since the owning shard will report it itself.
func ScanSharded(ctx context.Context, src block.Source, reg *format.Registry, sinkFor ShardSink, opts Options, shardSize uint64) ([]Artifact, error) {
	if opts.Window == 0 {
		opts.Window = 1 << 16
	}
	overlap := 2 * opts.Window
	total := src.Length()
	shards := PlanShards(total, shardSize, overlap)

	results := make([][]Artifact, len(shards))
	g, gctx := errgroup.WithContext(ctx)

	for i, sh := range shards {
		i, sh := i, sh
		primaryEnd := sh.Offset + shardSize
		g.Go(func() error {
			sub, err := block.NewOffsetSource(src, sh.Offset, sh.Length)
			if err != nil {
				return fmt.Errorf("carve: shard %d source: %w", i, err)
			}
			sink, err := sinkFor(i)
			if err != nil {
				return fmt.Errorf("carve: shard %d sink: %w", i, err)
			}
			carver := NewCarver(sub, reg, sink, opts)
			var out []Artifact
			carver.Scan(gctx)(func(art Artifact) bool {
				abs := art
				abs.Offset += sh.Offset
				if abs.Offset >= primaryEnd && i != len(shards)-1 {
					return true
				}
				out = append(out, abs)
				return true
			})
			if err := carver.Err(); err != nil {
				return fmt.Errorf("carve: shard %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Artifact
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}
