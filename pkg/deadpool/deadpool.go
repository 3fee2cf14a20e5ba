// Package deadpool implements the bounty protocol built on the two new
// script templates: entries locking value to whoever factors an integer,
// announcements committing to a future claim, and the claim spends that
// reveal the factor.
package deadpool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/factorn/factord/pkg/bignum"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/script"
)

// Announce wraps an announcement output with its confirmation height.
type Announce struct {
	Out    block.TxOut
	Height int32
}

// NewAnnounce builds an Announce from a txout.
func NewAnnounce(out *block.TxOut, height int32) *Announce {
	return &Announce{Out: *out, Height: height}
}

// ClaimHash returns the claim commitment carried in the announcement.
func (a *Announce) ClaimHash() chainhash.Hash {
	_, data := script.Solver(a.Out.ScriptPubKey)
	var h chainhash.Hash
	if len(data) == 2 && len(data[0]) == chainhash.HashSize {
		copy(h[:], data[0])
	}
	return h
}

// ReadN returns the announced integer bytes as pushed.
func (a *Announce) ReadN() ([]byte, bool) {
	_, data := script.Solver(a.Out.ScriptPubKey)
	if len(data) != 2 || len(data[1]) > script.MaxScriptElementSize {
		return nil, false
	}
	return data[1], true
}

// NHash returns the deadpool id the announcement targets.
func (a *Announce) NHash() chainhash.Hash {
	dataN, ok := a.ReadN()
	if !ok {
		return chainhash.Hash{}
	}
	return HashNValue(dataN)
}

// Compact returns the (deadpool id, claim hash) pair.
func (a *Announce) Compact() (chainhash.Hash, chainhash.Hash) {
	return a.NHash(), a.ClaimHash()
}

// LocatedAnnouncement is an announcement together with its outpoint.
type LocatedAnnouncement struct {
	Locator  block.OutPoint
	Announce Announce
}

// ExtractAnnouncements collects the announcements in a transaction.
func ExtractAnnouncements(tx *block.Tx, height int32) ([]LocatedAnnouncement, bool) {
	var anns []LocatedAnnouncement

	txid := tx.Hash()
	for i, out := range tx.Out {
		if t, _ := script.Solver(out.ScriptPubKey); t == script.TxDeadpoolAnnounce {
			anns = append(anns, LocatedAnnouncement{
				Locator:  block.OutPoint{Hash: txid, Index: uint32(i)},
				Announce: *NewAnnounce(out, height),
			})
		}
	}

	return anns, len(anns) > 0
}

// ExtractDeadpoolAnnounceIds collects the deadpool ids announced by a list
// of outputs.
func ExtractDeadpoolAnnounceIds(outs []*block.TxOut, ids map[chainhash.Hash]struct{}) bool {
	found := false
	for _, out := range outs {
		if IsDeadpoolAnnouncement(out) {
			found = true
			ann := NewAnnounce(out, 0)
			ids[ann.NHash()] = struct{}{}
		}
	}
	return found
}

// ExtractDeadpoolEntryIds collects the deadpool ids of the entries in a list
// of outputs.
func ExtractDeadpoolEntryIds(outs []*block.TxOut, ids map[chainhash.Hash]struct{}) bool {
	found := false
	for _, out := range outs {
		if IsDeadpoolEntry(out) {
			found = true
			ids[GetEntryNHash(out)] = struct{}{}
		}
	}
	return found
}

// IsDeadpoolEntry reports whether an output is a deadpool entry.
func IsDeadpoolEntry(out *block.TxOut) bool {
	t, _ := script.Solver(out.ScriptPubKey)
	return t == script.TxDeadpoolEntry
}

// IsDeadpoolAnnouncement reports whether an output is an announcement.
func IsDeadpoolAnnouncement(out *block.TxOut) bool {
	t, _ := script.Solver(out.ScriptPubKey)
	return t == script.TxDeadpoolAnnounce
}

// GetEntryN returns the integer bytes pushed by an entry script, whatever
// script follows them.
func GetEntryN(out *block.TxOut) []byte {
	_, data, _, ok := script.Script(out.ScriptPubKey).GetOp(0)
	if !ok {
		return nil
	}
	return data
}

// GetEntryNHash returns the deadpool id of an entry output.
func GetEntryNHash(out *block.TxOut) chainhash.Hash {
	return HashNValue(GetEntryN(out))
}

// HashNValue is the deadpool id function: a single SHA256 of the encoded
// integer.
func HashNValue(dataN []byte) chainhash.Hash {
	return chainhash.HashH(dataN)
}

// GetClaimHashFromScriptSig extracts the claim commitment from a claiming
// input. Returns the zero hash when none is present.
func GetClaimHashFromScriptSig(in *block.TxIn) chainhash.Hash {
	_, data, _, ok := script.Script(in.ScriptSig).GetOp(0)

	var h chainhash.Hash
	if ok && len(data) == chainhash.HashSize {
		copy(h[:], data)
	}
	return h
}

// GetSolutionFromScriptSig extracts the revealed factor from a claiming
// input.
func GetSolutionFromScriptSig(in *block.TxIn) *bignum.Bignum {
	s := script.Script(in.ScriptSig)
	_, _, next, ok := s.GetOp(0)
	if !ok {
		return bignum.FromBytes(nil)
	}
	_, data, _, _ := s.GetOp(next)
	return bignum.FromBytes(data)
}
