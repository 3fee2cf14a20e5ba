package deadpool

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/factorn/factord/pkg/bignum"
)

// MakeClaimHash builds the claim commitment binding a destination script to
// a solution:
//
//	SHA256( SHA256(canonical p) || SHA256(destination scriptPubKey) )
//
// Revealing p later only pays out to the committed destination.
func MakeClaimHash(destScript []byte, solution *bignum.Bignum) chainhash.Hash {
	pHash := sha256.Sum256(solution.Serialize())
	destHash := sha256.Sum256(destScript)

	h := sha256.New()
	h.Write(pHash[:])
	h.Write(destHash[:])

	var out chainhash.Hash
	copy(out[:], h.Sum(nil))
	return out
}
