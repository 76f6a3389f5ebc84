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
package exfat

import (
	"encoding/binary"

	"github.com/cgsec/digler/internal/block"
)

// strategy is one of the three cluster-chain-following policies a
// clusterChain may be following. It only ever demotes (strategyFollow ->
// strategyNextFree -> strategyNext, or strategyFollow -> strategyNext
// directly), never back up: once the FAT has proven untrustworthy for a
// chain, it is not consulted again.
type strategy int

const (
	strategyFollow strategy = iota
	strategyNextFree
	strategyNext
)

// clusterChain walks an exFAT cluster chain one cluster at a time, reading
// the FAT through src as needed. One instance is reused across every step
// of a single enumeration (directory listing or file copy) so its strategy
// demotion persists for the whole walk.
type clusterChain struct {
	src      block.Source
	boot     *BootSector
	strategy strategy
}

func newClusterChain(src block.Source, boot *BootSector) *clusterChain {
	return &clusterChain{src: src, boot: boot, strategy: strategyFollow}
}

// readFATEntry reads the 32-bit little-endian FAT entry for cluster.
func (c *clusterChain) readFATEntry(cluster uint32) (uint32, error) {
	var buf [4]byte
	n, err := c.src.ReadAt(c.boot.fatEntryOffset(cluster), buf[:])
	if err != nil {
		return 0, err
	}
	if n < 4 {
		return 0, ErrCorruptEntry
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// next returns the next cluster number in the chain and whether the chain
// has ended (EOC, a free entry outside the demotion case below, or no
// further free cluster in the heap); an out-of-range entry or a failed FAT
// read does not end it but demotes to strategyNext. first marks
// whether cluster is the very first cluster of this enumeration — only
// there does a "free" FAT entry trigger the NextFreeCluster demotion, since
// a deleted file's directory entry points at a cluster the FAT has already
// released. allowDeleted gates that demotion entirely; without it, a free
// entry at the first cluster simply ends the chain.
func (c *clusterChain) next(cluster uint32, first, allowDeleted bool) (next uint32, done bool) {
	switch c.strategy {
	case strategyFollow:
		nc, err := c.readFATEntry(cluster)
		if err != nil {
			c.strategy = strategyNext
			return cluster + 1, false
		}
		if nc == eocMarker {
			return 0, true
		}
		if nc >= 2 && nc <= c.boot.TotalClusters+1 {
			return nc, false
		}
		if nc == 0 {
			if first && allowDeleted {
				c.strategy = strategyNextFree
				return c.next(cluster, first, allowDeleted)
			}
			return 0, true
		}
		// Neither a valid cluster, EOC, nor free: the FAT can't be trusted
		// for this chain any further.
		c.strategy = strategyNext
		return cluster + 1, false

	case strategyNextFree:
		// Walk forward past already-reallocated (non-free) clusters,
		// looking for the next cluster the FAT still marks free (0) —
		// the usual heuristic for reconstructing a deleted file's
		// mostly-contiguous run. Stops at the first free cluster found,
		// which becomes the next cluster read.
		next := cluster
		for {
			next++
			if next >= c.boot.TotalClusters+2 {
				return 0, true
			}
			v, err := c.readFATEntry(next)
			if err != nil {
				c.strategy = strategyNext
				return cluster + 1, false
			}
			if v == 0 {
				return next, false
			}
		}

	default: // strategyNext
		return cluster + 1, false
	}
}
