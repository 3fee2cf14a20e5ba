package chaincfg

import (
	"sync"

	"github.com/factorn/factord/pkg/chain"
)

// ThresholdState is the versionbits state of a deployment within one
// retarget period.
type ThresholdState int

const (
	ThresholdDefined ThresholdState = iota
	ThresholdStarted
	ThresholdLockedIn
	ThresholdActive
	ThresholdFailed
)

const (
	// vbTopBits is the version prefix that enables versionbits signalling.
	vbTopBits = 0x20000000
	vbTopMask = 0xe0000000
)

// VersionBitsCache memoizes per-period deployment states. States only ever
// change on period boundaries, so the cache key is the last block of the
// prior period.
type VersionBitsCache struct {
	mu     sync.Mutex
	states [maxDeployments]map[*chain.BlockIndex]ThresholdState
}

func NewVersionBitsCache() *VersionBitsCache {
	c := &VersionBitsCache{}
	for i := range c.states {
		c.states[i] = make(map[*chain.BlockIndex]ThresholdState)
	}
	return c
}

func signals(version int32, d *Deployment) bool {
	return uint32(version)&vbTopMask == vbTopBits && uint32(version)&(1<<d.Bit) != 0
}

// State computes the deployment state for the period containing the block
// AFTER prev.
func (c *VersionBitsCache) State(prev *chain.BlockIndex, p *Params, pos DeploymentPos) ThresholdState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(prev, p, pos)
}

func (c *VersionBitsCache) stateLocked(prev *chain.BlockIndex, p *Params, pos DeploymentPos) ThresholdState {
	d := &p.Deployments[pos]
	period := int32(p.MinerConfirmationWindow)

	if d.StartTime == NeverActive {
		return ThresholdFailed
	}

	// walk prev back to the last block of the prior period
	if prev != nil {
		prev = prev.Ancestor(prev.Height - (prev.Height+1)%period)
	}

	// collect period boundaries until a cached or terminal state
	var toCompute []*chain.BlockIndex
	for prev != nil {
		if _, ok := c.states[pos][prev]; ok {
			break
		}
		if prev.MedianTimePast() < d.StartTime {
			// deployment not started yet; state stays defined
			c.states[pos][prev] = ThresholdDefined
			break
		}
		toCompute = append(toCompute, prev)
		prev = prev.Ancestor(prev.Height - period)
	}

	state := ThresholdDefined
	if prev != nil {
		state = c.states[pos][prev]
	}

	// replay forwards
	for i := len(toCompute) - 1; i >= 0; i-- {
		boundary := toCompute[i]

		switch state {
		case ThresholdDefined:
			if boundary.MedianTimePast() >= d.Timeout {
				state = ThresholdFailed
			} else if boundary.MedianTimePast() >= d.StartTime {
				state = ThresholdStarted
			}

		case ThresholdStarted:
			if boundary.MedianTimePast() >= d.Timeout {
				state = ThresholdFailed
				break
			}

			count := uint32(0)
			walk := boundary
			for j := int32(0); j < period && walk != nil; j++ {
				if signals(walk.Header.Version, d) {
					count++
				}
				walk = walk.Prev
			}
			if count >= p.RuleChangeActivationThreshold {
				state = ThresholdLockedIn
			}

		case ThresholdLockedIn:
			if boundary.Height+1 >= d.MinActivationHeight {
				state = ThresholdActive
			}

		case ThresholdActive, ThresholdFailed:
			// terminal
		}

		c.states[pos][boundary] = state
	}

	return state
}

// DeploymentActiveAfter reports whether the deployment enforces for the
// block following prev.
func (c *VersionBitsCache) DeploymentActiveAfter(prev *chain.BlockIndex, p *Params, pos DeploymentPos) bool {
	return c.State(prev, p, pos) == ThresholdActive
}
