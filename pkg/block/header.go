package block

import (
	"bytes"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// P1Bytes is the fixed width of the nP1 header field: 1024 bits.
const P1Bytes = 128

// P1 is the little-endian 1024-bit buffer carrying the smaller prime factor
// submitted with a block.
type P1 [P1Bytes]byte

// Big interprets the buffer as an unsigned little-endian integer.
func (p *P1) Big() *big.Int {
	be := make([]byte, P1Bytes)
	for i, c := range p {
		be[P1Bytes-1-i] = c
	}
	return new(big.Int).SetBytes(be)
}

// Bits returns the bit length of the carried integer.
func (p *P1) Bits() int {
	return p.Big().BitLen()
}

// SetBig stores v as little-endian bytes, zero padded. v must fit 1024 bits.
func (p *P1) SetBig(v *big.Int) {
	*p = P1{}
	be := v.Bytes()
	for i := range be {
		p[i] = be[len(be)-1-i]
	}
}

// Header is a block header. The chain replaces the compact difficulty target
// of its ancestor format with the declared semiprime size nBits, the seed
// displacement wOffset and the smaller prime factor nP1.
type Header struct {
	Version       int32
	HashPrevBlock chainhash.Hash
	HashMerkle    chainhash.Hash
	Time          uint32
	Bits          uint16
	Nonce         uint64
	WOffset       int64
	NP1           P1
}

// Serialize writes the wire encoding: nVersion, hashPrevBlock,
// hashMerkleRoot, nTime, nBits, nNonce, wOffset, nP1, all little-endian.
func (h *Header) Serialize(w io.Writer) error {
	if err := writeUint32(w, uint32(h.Version)); err != nil {
		return err
	}
	if _, err := w.Write(h.HashPrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.HashMerkle[:]); err != nil {
		return err
	}
	if err := writeUint32(w, h.Time); err != nil {
		return err
	}
	if err := writeUint16(w, h.Bits); err != nil {
		return err
	}
	if err := writeUint64(w, h.Nonce); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(h.WOffset)); err != nil {
		return err
	}
	_, err := w.Write(h.NP1[:])
	return err
}

// Deserialize reads the wire encoding.
func (h *Header) Deserialize(r io.Reader) error {
	v, err := readUint32(r)
	if err != nil {
		return err
	}
	h.Version = int32(v)

	if _, err := io.ReadFull(r, h.HashPrevBlock[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.HashMerkle[:]); err != nil {
		return err
	}
	if h.Time, err = readUint32(r); err != nil {
		return err
	}
	if h.Bits, err = readUint16(r); err != nil {
		return err
	}
	if h.Nonce, err = readUint64(r); err != nil {
		return err
	}
	off, err := readUint64(r)
	if err != nil {
		return err
	}
	h.WOffset = int64(off)

	_, err = io.ReadFull(r, h.NP1[:])
	return err
}

// Hash returns the double-SHA256 of the serialized header.
func (h *Header) Hash() chainhash.Hash {
	var buf bytes.Buffer
	_ = h.Serialize(&buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Block is a header together with its transactions.
type Block struct {
	Header Header
	Txs    []*Tx
}

// Serialize writes the header followed by the transaction list.
func (b *Block) Serialize(w io.Writer) error {
	if err := b.Header.Serialize(w); err != nil {
		return err
	}
	if err := writeCompactSize(w, uint64(len(b.Txs))); err != nil {
		return err
	}
	for _, tx := range b.Txs {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a full block.
func (b *Block) Deserialize(r io.Reader) error {
	if err := b.Header.Deserialize(r); err != nil {
		return err
	}
	n, err := readCompactSize(r)
	if err != nil {
		return err
	}
	b.Txs = make([]*Tx, 0, n)
	for i := uint64(0); i < n; i++ {
		tx := &Tx{}
		if err := tx.Deserialize(r); err != nil {
			return err
		}
		b.Txs = append(b.Txs, tx)
	}
	return nil
}

// Hash returns the block hash, which is the header hash.
func (b *Block) Hash() chainhash.Hash {
	return b.Header.Hash()
}
