package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorn/factord/pkg/block"
)

func buildChain(length int) *BlockIndex {
	var tip *BlockIndex
	for i := 0; i < length; i++ {
		h := &block.Header{Time: uint32(1650000000 + i*600), Nonce: uint64(i)}
		if tip != nil {
			h.HashPrevBlock = tip.Hash
		}
		tip = NewBlockIndex(h, tip)
	}
	return tip
}

func TestAncestor(t *testing.T) {
	tip := buildChain(10)
	require.Equal(t, int32(9), tip.Height)

	a := tip.Ancestor(4)
	require.NotNil(t, a)
	assert.Equal(t, int32(4), a.Height)

	assert.Equal(t, tip, tip.Ancestor(9))
	assert.Nil(t, tip.Ancestor(10))
	assert.Nil(t, tip.Ancestor(-1))
}

func TestMedianTimePast(t *testing.T) {
	tip := buildChain(20)

	// 11 blocks back from height 19 covers heights 9..19, median at 14
	want := int64(1650000000 + 14*600)
	assert.Equal(t, want, tip.MedianTimePast())

	// short chains still produce a median
	short := buildChain(3)
	assert.Equal(t, int64(1650000000+600), short.MedianTimePast())
}

func TestLastCommonAncestor(t *testing.T) {
	shared := buildChain(5)

	// two forks off the same parent
	a := NewBlockIndex(&block.Header{Time: 1, HashPrevBlock: shared.Hash}, shared)
	b := NewBlockIndex(&block.Header{Time: 2, HashPrevBlock: shared.Hash}, shared)
	b2 := NewBlockIndex(&block.Header{Time: 3, HashPrevBlock: b.Hash}, b)

	assert.Equal(t, shared, LastCommonAncestor(a, b2))
	assert.Equal(t, shared, LastCommonAncestor(shared, b2))
}
