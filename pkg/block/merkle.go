package block

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// MerkleRoot computes the transaction merkle root: double-SHA256 over pairs,
// duplicating the last node of odd levels.
func MerkleRoot(txs []*Tx) chainhash.Hash {
	if len(txs) == 0 {
		return chainhash.Hash{}
	}

	level := make([]chainhash.Hash, 0, len(txs))
	for _, tx := range txs {
		level = append(level, tx.Hash())
	}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]chainhash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			var pair [chainhash.HashSize * 2]byte
			copy(pair[:chainhash.HashSize], level[i][:])
			copy(pair[chainhash.HashSize:], level[i+1][:])
			next = append(next, chainhash.DoubleHashH(pair[:]))
		}
		level = next
	}

	return level[0]
}
