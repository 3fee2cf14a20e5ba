package chaincfg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chain"
)

func extend(tip *chain.BlockIndex, count int, version int32, spacing int64) *chain.BlockIndex {
	start := int64(1650000000)
	if tip != nil {
		start = tip.Time() + spacing
	}

	for i := 0; i < count; i++ {
		h := &block.Header{
			Version: version,
			Time:    uint32(start + int64(i)*spacing),
		}
		if tip != nil {
			h.HashPrevBlock = tip.Hash
		}
		tip = chain.NewBlockIndex(h, tip)
	}
	return tip
}

func TestVersionBitsActivation(t *testing.T) {
	p := RegTestParams()
	d := p.Deployments[DeploymentDeadpool]
	signalling := int32(0x20000000 | 1<<d.Bit)

	cache := NewVersionBitsCache()

	// genesis period: defined moves to started at the first boundary
	tip := extend(nil, 1, 0, 600)
	assert.Equal(t, ThresholdDefined, cache.State(tip, p, DeploymentDeadpool))

	// signal through four full windows
	tip = extend(tip, 31, signalling, 600) // completes period 0
	assert.Equal(t, ThresholdStarted, cache.State(tip, p, DeploymentDeadpool))

	tip = extend(tip, 32, signalling, 600) // threshold met in period 1
	assert.Equal(t, ThresholdLockedIn, cache.State(tip, p, DeploymentDeadpool))

	// locked in waits for the min activation height (128)
	tip = extend(tip, 32, signalling, 600)
	assert.Equal(t, ThresholdLockedIn, cache.State(tip, p, DeploymentDeadpool))

	tip = extend(tip, 32, signalling, 600) // height 128 reached
	assert.Equal(t, ThresholdActive, cache.State(tip, p, DeploymentDeadpool))
	assert.True(t, cache.DeploymentActiveAfter(tip, p, DeploymentDeadpool))

	// terminal: stays active without further signalling
	tip = extend(tip, 64, 0, 600)
	assert.Equal(t, ThresholdActive, cache.State(tip, p, DeploymentDeadpool))
}

func TestVersionBitsNoSignalling(t *testing.T) {
	p := RegTestParams()
	cache := NewVersionBitsCache()

	tip := extend(nil, 100, 0, 600)
	state := cache.State(tip, p, DeploymentDeadpool)
	assert.Equal(t, ThresholdStarted, state)
	assert.False(t, cache.DeploymentActiveAfter(tip, p, DeploymentDeadpool))
}

func TestVersionBitsNeverActive(t *testing.T) {
	p := RegTestParams()
	cache := NewVersionBitsCache()

	tip := extend(nil, 100, 0x20000000|1<<28, 600)
	// the dummy deployment starts immediately on regtest
	assert.NotEqual(t, ThresholdDefined, cache.State(tip, p, DeploymentTestDummy))

	main := MainNetParams()
	mainCache := NewVersionBitsCache()
	mainTip := extend(nil, 100, 0x20000000|1<<28, 600)
	assert.Equal(t, ThresholdFailed, mainCache.State(mainTip, main, DeploymentTestDummy))
}
