package pow

import (
	"encoding/binary"
	"math/big"
	"math/bits"

	"github.com/jzelinskie/whirlpool"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"

	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chaincfg"
)

// Scrypt parameters. Memory usage is 128*r*N bytes, about 1 MiB.
const (
	scryptN = 1 << 12
	scryptR = 2
	scryptP = 1

	seedBytes = 256 // 2048-bit working buffer
)

// nextPrimeReps is the primality certainty used while searching for the next
// prime during seed mixing. This is part of the hash definition, not of
// block acceptance.
const nextPrimeReps = 25

// GHash derives the 2048-bit seed buffer from a header and truncates it to
// exactly nBits bits with the top bit forced, returning the seed W as an
// integer. Every step below is consensus critical and must reproduce the
// historical behaviour bit for bit, including the parts that look
// accidental: the 64-byte digests only replace the leading half of each
// 128-byte region they are computed over, the inner-loop selector popcounts
// only the first 8 bytes of the buffer, and the XOR scratch buffer keeps
// stale high limbs between exports.
func GHash(h *block.Header, params *chaincfg.Params) *big.Int {
	// pass = hashPrevBlock || hashMerkleRoot || nNonce
	// salt = nVersion || nBits || nTime
	var pass [72]byte
	copy(pass[:32], h.HashPrevBlock[:])
	copy(pass[32:64], h.HashMerkle[:])
	binary.LittleEndian.PutUint64(pass[64:], h.Nonce)

	var salt [10]byte
	binary.LittleEndian.PutUint32(salt[:4], uint32(h.Version))
	binary.LittleEndian.PutUint16(salt[4:6], h.Bits)
	binary.LittleEndian.PutUint32(salt[6:], h.Time)

	derived, _ := scrypt.Key(pass[:], salt[:], scryptN, scryptR, scryptP, seedBytes)

	for round := 0; round < params.HashRounds; round++ {
		// memory expensive rederivation keyed on the running buffer
		derived, _ = scrypt.Key(derived, salt[:], scryptN, scryptR, scryptP, seedBytes)

		// per-half primitive switch on the parity of the half's popcount;
		// the digest overwrites only the first 64 bytes of the half
		if popcount(derived[:128])%2 == 0 {
			d := blake2b.Sum512(derived[:128])
			copy(derived[:64], d[:])
		} else {
			d := sha3.Sum512(derived[:128])
			copy(derived[:64], d[:])
		}

		if popcount(derived[128:256])%2 == 0 {
			d := blake2b.Sum512(derived[128:256])
			copy(derived[128:192], d[:])
		} else {
			d := sha3.Sum512(derived[128:256])
			copy(derived[128:192], d[:])
		}

		// grunt work over the buffer as an integer:
		//   a = floor(sqrt(M)), p = nextprime(floor(sqrt(a))), a^-1 mod p
		m := leBig(derived)
		a := new(big.Int).Sqrt(m)
		p := nextPrime(new(big.Int).Sqrt(a))

		aInv := new(big.Int).ModInverse(a, p)
		if aInv == nil {
			aInv = new(big.Int)
		}

		var scratch [seedBytes]byte
		exportLimbs(&scratch, aInv)
		xorInto(derived, &scratch)

		irounds := popcount(scratch[:]) & 0x7f

		for jj := 0; jj < irounds; jj++ {
			br := popcount(derived[:8])

			aInv.Exp(aInv, big.NewInt(int64(irounds)), p)

			// the scratch buffer is not cleared between exports; limbs the
			// smaller inverse no longer covers keep their previous contents
			exportLimbs(&scratch, aInv)
			xorInto(derived, &scratch)

			switch br % 3 {
			case 0:
				d := sha3.Sum512(derived[:128])
				copy(derived[:64], d[:])
			case 2:
				d := blake2b.Sum512(derived[128:256])
				copy(derived[192:256], d[:])
			default:
				w := whirlpool.New()
				w.Write(derived[:256])
				copy(derived[112:176], w.Sum(nil))
			}
		}
	}

	return truncateSeed(derived, h.Bits)
}

// truncateSeed masks the buffer down to nBits bits and forces the most
// significant bit so the seed has exactly the declared size.
func truncateSeed(derived []byte, nBits uint16) *big.Int {
	allBytes := int(nBits) / 8
	remBytes := int(nBits) % 8

	var w [128]byte
	n := allBytes + 1
	if n > 128 {
		n = 128
	}
	copy(w[:], derived[:n])

	w[allBytes] &= byte(1<<remBytes) - 1

	if remBytes == 0 {
		w[allBytes-1] |= 0x80
	} else {
		w[allBytes] |= 1 << (remBytes - 1)
	}

	return leBig(w[:])
}

// exportLimbs writes v little endian into the front of scratch, zero padding
// up to a 64-bit limb boundary and touching nothing beyond it.
func exportLimbs(scratch *[seedBytes]byte, v *big.Int) {
	be := v.Bytes()
	for i := range be {
		scratch[i] = be[len(be)-1-i]
	}

	limbEnd := (len(be) + 7) / 8 * 8
	for i := len(be); i < limbEnd; i++ {
		scratch[i] = 0
	}
}

func xorInto(dst []byte, src *[seedBytes]byte) {
	for i := range dst[:seedBytes] {
		dst[i] ^= src[i]
	}
}

func popcount(b []byte) int {
	n := 0
	for _, c := range b {
		n += bits.OnesCount8(c)
	}
	return n
}

// leBig interprets b as a little-endian unsigned integer.
func leBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	return new(big.Int).SetBytes(be)
}

// nextPrime returns the smallest prime strictly greater than n.
func nextPrime(n *big.Int) *big.Int {
	c := new(big.Int).Add(n, big.NewInt(1))
	if c.Cmp(big.NewInt(2)) <= 0 {
		return big.NewInt(2)
	}

	// make odd
	if c.Bit(0) == 0 {
		c.Add(c, big.NewInt(1))
	}

	two := big.NewInt(2)
	for !c.ProbablyPrime(nextPrimeReps) {
		c.Add(c, two)
	}
	return c
}
