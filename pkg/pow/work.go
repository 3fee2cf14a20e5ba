package pow

import (
	"math"
	"math/big"

	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chain"
	"github.com/factorn/factord/pkg/chaincfg"
)

// GetBlockProof maps the submitted factor's bit length to an integer work
// value. The honest cost estimate for recovering a factor p by ECM is about
// e^sqrt(2*log(p)*log(log(p))); chain work must stay additive across blocks
// of different factor sizes, so instead of exponentiating we take
//
//	a    = sqrt(2*bitsize(p)*log2(bitsize(p)))
//	aInt = floor(a), aFra = a - aInt
//	work = 2^aInt + floor(1024*aFra) * 2^(aInt-11)
//
// an order-preserving integer encoding of the same information.
func GetBlockProof(h *block.Header) *big.Int {
	p1Bits := float64(h.NP1.Bits())

	if p1Bits < 16 {
		return new(big.Int)
	}

	a := math.Sqrt(2 * p1Bits * math.Log2(p1Bits))
	aInt := uint(math.Floor(a))
	aFra := a - math.Floor(a)

	work := new(big.Int).Lsh(big.NewInt(1), aInt)
	tail := new(big.Int).Lsh(big.NewInt(int64(math.Floor(1024*aFra))), aInt-11)

	return work.Add(work, tail)
}

// GetBlockProofEquivalentTime returns the expected time to mine the work
// separating two blocks, at the difficulty of tip. Saturates at the int64
// range.
func GetBlockProofEquivalentTime(to, from, tip *chain.BlockIndex, params *chaincfg.Params) int64 {
	r := new(big.Int)
	sign := int64(1)
	if to.ChainWork.Cmp(from.ChainWork) > 0 {
		r.Sub(to.ChainWork, from.ChainWork)
	} else {
		r.Sub(from.ChainWork, to.ChainWork)
		sign = -1
	}

	r.Mul(r, big.NewInt(params.PowTargetSpacing))
	r.Div(r, GetBlockProof(&tip.Header))

	if r.BitLen() > 63 {
		return sign * math.MaxInt64
	}
	return sign * r.Int64()
}
