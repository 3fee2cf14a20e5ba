// Package chain tracks the block index: header metadata linked back to
// genesis, with accumulated chain work.
package chain

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/factorn/factord/pkg/block"
)

// BlockIndex is one node of the header tree.
type BlockIndex struct {
	Prev   *BlockIndex
	Hash   chainhash.Hash
	Height int32

	Header block.Header

	// ChainWork is the total work from genesis to this block inclusive.
	ChainWork *big.Int
}

// NewBlockIndex links a header onto prev. ChainWork is left for the caller
// to accumulate.
func NewBlockIndex(h *block.Header, prev *BlockIndex) *BlockIndex {
	bi := &BlockIndex{
		Prev:      prev,
		Hash:      h.Hash(),
		Header:    *h,
		ChainWork: new(big.Int),
	}
	if prev != nil {
		bi.Height = prev.Height + 1
	}
	return bi
}

// Time returns the header timestamp as a unix time.
func (bi *BlockIndex) Time() int64 {
	return int64(bi.Header.Time)
}

// Bits returns the declared semiprime size of the block.
func (bi *BlockIndex) Bits() uint16 {
	return bi.Header.Bits
}

// Ancestor walks back to the given height. Returns nil when height is out of
// range.
func (bi *BlockIndex) Ancestor(height int32) *BlockIndex {
	if height > bi.Height || height < 0 {
		return nil
	}
	walk := bi
	for walk != nil && walk.Height > height {
		walk = walk.Prev
	}
	return walk
}

// MedianTimePast returns the median timestamp of the last 11 blocks.
func (bi *BlockIndex) MedianTimePast() int64 {
	const span = 11

	times := make([]int64, 0, span)
	walk := bi
	for i := 0; i < span && walk != nil; i++ {
		times = append(times, walk.Time())
		walk = walk.Prev
	}

	// insertion sort, the slice is tiny
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j] < times[j-1]; j-- {
			times[j], times[j-1] = times[j-1], times[j]
		}
	}

	return times[len(times)/2]
}

// LastCommonAncestor finds where the chains of a and b meet. Both must be
// non-nil and share a genesis.
func LastCommonAncestor(a, b *BlockIndex) *BlockIndex {
	if a.Height > b.Height {
		a = a.Ancestor(b.Height)
	} else if b.Height > a.Height {
		b = b.Ancestor(a.Height)
	}

	for a != b && a != nil && b != nil {
		a = a.Prev
		b = b.Prev
	}

	return a
}
