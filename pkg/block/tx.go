package block

import (
	"bytes"
	"encoding/hex"
	"io"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutPoint locates a transaction output.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Bytes returns the 36-byte key form: txid then little-endian index.
func (o *OutPoint) Bytes() []byte {
	b := make([]byte, chainhash.HashSize+4)
	copy(b, o.Hash[:])
	b[32] = byte(o.Index)
	b[33] = byte(o.Index >> 8)
	b[34] = byte(o.Index >> 16)
	b[35] = byte(o.Index >> 24)
	return b
}

// OutPointFromBytes parses the 36-byte key form.
func OutPointFromBytes(b []byte) (OutPoint, bool) {
	if len(b) != chainhash.HashSize+4 {
		return OutPoint{}, false
	}
	var o OutPoint
	copy(o.Hash[:], b[:32])
	o.Index = uint32(b[32]) | uint32(b[33])<<8 | uint32(b[34])<<16 | uint32(b[35])<<24
	return o, true
}

// String renders txid:index.
func (o OutPoint) String() string {
	return o.Hash.String() + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// TxIn spends a previous output.
type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
}

// TxOut creates a new output.
type TxOut struct {
	Value        Amount
	ScriptPubKey []byte
}

// Tx is a transaction.
type Tx struct {
	Version  int32
	In       []*TxIn
	Out      []*TxOut
	LockTime uint32
}

// Serialize writes the transaction wire encoding.
func (t *Tx) Serialize(w io.Writer) error {
	if err := writeUint32(w, uint32(t.Version)); err != nil {
		return err
	}

	if err := writeCompactSize(w, uint64(len(t.In))); err != nil {
		return err
	}
	for _, in := range t.In {
		if _, err := w.Write(in.PrevOut.Hash[:]); err != nil {
			return err
		}
		if err := writeUint32(w, in.PrevOut.Index); err != nil {
			return err
		}
		if err := writeVarBytes(w, in.ScriptSig); err != nil {
			return err
		}
		if err := writeUint32(w, in.Sequence); err != nil {
			return err
		}
	}

	if err := writeCompactSize(w, uint64(len(t.Out))); err != nil {
		return err
	}
	for _, out := range t.Out {
		if err := writeUint64(w, uint64(out.Value)); err != nil {
			return err
		}
		if err := writeVarBytes(w, out.ScriptPubKey); err != nil {
			return err
		}
	}

	return writeUint32(w, t.LockTime)
}

// Deserialize reads the transaction wire encoding.
func (t *Tx) Deserialize(r io.Reader) error {
	v, err := readUint32(r)
	if err != nil {
		return err
	}
	t.Version = int32(v)

	nIn, err := readCompactSize(r)
	if err != nil {
		return err
	}
	t.In = make([]*TxIn, 0, nIn)
	for i := uint64(0); i < nIn; i++ {
		in := &TxIn{}
		if _, err := io.ReadFull(r, in.PrevOut.Hash[:]); err != nil {
			return err
		}
		if in.PrevOut.Index, err = readUint32(r); err != nil {
			return err
		}
		if in.ScriptSig, err = readVarBytes(r); err != nil {
			return err
		}
		if in.Sequence, err = readUint32(r); err != nil {
			return err
		}
		t.In = append(t.In, in)
	}

	nOut, err := readCompactSize(r)
	if err != nil {
		return err
	}
	t.Out = make([]*TxOut, 0, nOut)
	for i := uint64(0); i < nOut; i++ {
		out := &TxOut{}
		val, err := readUint64(r)
		if err != nil {
			return err
		}
		out.Value = Amount(val)
		if out.ScriptPubKey, err = readVarBytes(r); err != nil {
			return err
		}
		t.Out = append(t.Out, out)
	}

	t.LockTime, err = readUint32(r)
	return err
}

// Hash returns the transaction id: double-SHA256 of the serialization.
func (t *Tx) Hash() chainhash.Hash {
	var buf bytes.Buffer
	_ = t.Serialize(&buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Hex returns the serialization as a hex string.
func (t *Tx) Hex() string {
	var buf bytes.Buffer
	_ = t.Serialize(&buf)
	return hex.EncodeToString(buf.Bytes())
}

// TxFromHex parses a hex-encoded transaction.
func TxFromHex(s string) (*Tx, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	tx := &Tx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return tx, nil
}

// IsCoinBase reports whether the transaction is a coinbase: a single input
// spending the null outpoint.
func (t *Tx) IsCoinBase() bool {
	if len(t.In) != 1 {
		return false
	}
	return t.In[0].PrevOut.Hash == chainhash.Hash{} && t.In[0].PrevOut.Index == 0xffffffff
}
