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
	"path/filepath"
	"testing"

	"github.com/cgsec/digler/internal/format"
)

func TestPlanShardsCoversWholeSource(t *testing.T) {
	shards := PlanShards(10_000, 4096, 512)
	if len(shards) != 3 {
		t.Fatalf("got %d shards, want 3: %+v", len(shards), shards)
	}
	if shards[0].Offset != 0 || shards[0].Length != 4096+512 {
		t.Fatalf("unexpected first shard: %+v", shards[0])
	}
	last := shards[len(shards)-1]
	if last.Offset+last.Length != 10_000 {
		t.Fatalf("last shard doesn't reach end of source: %+v", last)
	}
}

func TestScanShardedFindsFilesAcrossShards(t *testing.T) {
	gif := minimalGIF()

	data := make([]byte, 4096)
	copy(data[100:], gif)
	copy(data[2048:], gif)

	dir := t.TempDir()
	sinkFor := func(i int) (ArtifactSink, error) {
		return NewDirSink(filepath.Join(dir, fmt.Sprintf("shard-%d", i)))
	}

	reg := format.NewDefaultRegistry()
	artifacts, err := ScanSharded(context.Background(), &memSource{data: data}, reg, sinkFor, Options{Window: 256}, 1024)
	if err != nil {
		t.Fatalf("ScanSharded: %v", err)
	}

	if len(artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2: %+v", len(artifacts), artifacts)
	}
	if artifacts[0].Offset != 100 || artifacts[0].Size != uint64(len(gif)) {
		t.Fatalf("unexpected first artifact: %+v", artifacts[0])
	}
	if artifacts[1].Offset != 2048 || artifacts[1].Size != uint64(len(gif)) {
		t.Fatalf("unexpected second artifact: %+v (must be reported exactly once despite the overlap)", artifacts[1])
	}
}
