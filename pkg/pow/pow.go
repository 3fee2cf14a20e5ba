package pow

import (
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chain"
	"github.com/factorn/factord/pkg/chaincfg"
)

// maxBits rejects headers whose declared size would overflow the 1024-bit
// nP1 field. The retarget walk has no upper bound of its own.
const maxBits = 1024

// CheckProofOfWork verifies that the header's offset and factorization
// describe a valid semiprime of the declared size around the derived seed.
func CheckProofOfWork(h *block.Header, params *chaincfg.Params) bool {
	if h.Bits >= maxBits {
		logrus.Errorf("pow error: nBits %d over field width", h.Bits)
		return false
	}

	w := GHash(h, params)
	return checkProofOfWorkAtSeed(w, h, params)
}

// checkProofOfWorkAtSeed runs the factorization predicate against an
// already-derived seed.
func checkProofOfWorkAtSeed(w *big.Int, h *block.Header, params *chaincfg.Params) bool {
	// |wOffset| <= 16 * nBits
	absOffset := uint64(h.WOffset)
	if h.WOffset < 0 {
		absOffset = uint64(-h.WOffset)
	}
	if absOffset > 16*uint64(h.Bits) {
		logrus.Error("pow error: invalid wOffset")
		return false
	}

	// n = w + offset
	n := new(big.Int)
	off := new(big.Int).SetUint64(absOffset)
	if h.WOffset >= 0 {
		n.Add(w, off)
	} else {
		n.Sub(w, off)
	}

	if n.BitLen() != int(h.Bits) {
		logrus.Errorf("pow error: invalid nBits: expected %d, actual %d", h.Bits, n.BitLen())
		return false
	}

	p1 := h.NP1.Big()
	if p1.Sign() == 0 {
		logrus.Error("pow error: zero factor submitted")
		return false
	}
	p2 := new(big.Int).Quo(n, p1)

	expectedBits := int(h.Bits>>1) + int(h.Bits&1)
	if p1.BitLen() != expectedBits {
		logrus.Errorf("pow error: nP1 expected bitsize=%d, actual size=%d", expectedBits, p1.BitLen())
		return false
	}

	if new(big.Int).Mul(p1, p2).Cmp(n) != 0 {
		logrus.Error("pow error: nP1 does not divide N")
		return false
	}

	if p1.Cmp(p2) > 0 {
		logrus.Error("pow error: nP1 must be the smallest factor")
		return false
	}

	if !p1.ProbablyPrime(params.MillerRabinRounds) || !p2.ProbablyPrime(params.MillerRabinRounds) {
		logrus.Error("pow error: at least 1 composite factor found, rejected")
		return false
	}

	return true
}

// GetNextWorkRequired returns the nBits the block after prev must declare.
func GetNextWorkRequired(prev *chain.BlockIndex, h *block.Header, params *chaincfg.Params) uint16 {
	interval := int32(params.DifficultyAdjustmentInterval())

	// only change once per difficulty adjustment interval
	if (prev.Height+1)%interval != 0 {
		if params.PowAllowMinDifficultyBlocks {
			// testnet rule: a block more than twice the target spacing late
			// may be mined at minimum difficulty
			if int64(h.Time) > prev.Time()+params.PowTargetSpacing*2 {
				return params.PowLimit
			}

			// otherwise return the last non-special-rule bits
			walk := prev
			for walk.Prev != nil && walk.Height%interval != 0 && walk.Bits() == params.PowLimit {
				walk = walk.Prev
			}
			return walk.Bits()
		}
		return prev.Bits()
	}

	first := prev.Ancestor(prev.Height - (interval - 1))
	return CalculateNextWorkRequired(prev, first.Time(), params)
}

// CalculateNextWorkRequired applies the discrete retarget: one bit harder
// when blocks came well under target, one bit easier when they ran long.
func CalculateNextWorkRequired(prev *chain.BlockIndex, firstBlockTime int64, params *chaincfg.Params) uint16 {
	if params.PowNoRetargeting {
		return prev.Bits()
	}

	actualTimespan := prev.Time() - firstBlockTime
	consumed := float64(actualTimespan) / float64(params.PowTargetTimespan)

	retarget := int32(0)

	// over a minute late per block on average: reduce difficulty
	if consumed > 1.0333 {
		retarget = -1
	}

	// the network must beat the target comfortably before difficulty rises,
	// else the next period becomes too much work to handle
	if consumed < 0.90 {
		retarget = 1
	}

	next := int32(prev.Bits()) + retarget
	if next < int32(params.PowLimit) {
		return params.PowLimit
	}
	return uint16(next)
}
