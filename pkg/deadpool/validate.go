package deadpool

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/factorn/factord/pkg/bignum"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chaincfg"
	"github.com/factorn/factord/pkg/script"
)

const (
	// minIntegerBits is the smallest integer accepted into a deadpool.
	minIntegerBits = 160

	// maxIntegerBits: 520 byte script element limit, less the sign bit.
	maxIntegerBits = 520*8 - 1
)

// checkIntegerBytes validates a deadpool integer from its raw encoding.
func checkIntegerBytes(dataN []byte, checkEncoding bool) error {
	if len(dataN) == 0 {
		return ruleError(ReasonBigintZero)
	}

	n := bignum.FromBytes(dataN)

	if !n.IsValid() {
		return ruleError(ReasonBigintInvalid)
	}

	if n.CmpInt64(0) == 0 || n.CmpInt64(1) == 0 {
		return ruleError(ReasonBigintZero)
	}

	if n.Sign() {
		return ruleError(ReasonBigintNegative)
	}

	if n.Bits() < minIntegerBits {
		return ruleError(ReasonBigintTooSmall)
	}

	if n.Bits() > maxIntegerBits {
		return ruleError(ReasonBigintTooLarge)
	}

	if !checkEncoding {
		return nil
	}

	canonical := n.Serialize()

	// size mismatch fails early, it is cheaper
	if len(dataN) != len(canonical) {
		return ruleError(ReasonBigintNonCanonicalSize)
	}

	if !bytes.Equal(dataN, canonical) {
		return ruleError(ReasonBigintNonCanonical)
	}

	return nil
}

// CheckDeadpoolInteger validates an already-parsed integer for range and
// sign. Encoding is not rechecked, the value re-serializes canonically by
// construction.
func CheckDeadpoolInteger(n *bignum.Bignum) error {
	if !n.IsValid() {
		return ruleError(ReasonBigintInvalid)
	}
	return checkIntegerBytes(n.Serialize(), false)
}

// CheckTxOutDeadpoolIntegers validates the integer carried by an entry or
// announcement output, canonical encoding included. Other output kinds pass.
func CheckTxOutDeadpoolIntegers(out *block.TxOut) error {
	t, _ := script.Solver(out.ScriptPubKey)

	var dataN []byte
	switch t {
	case script.TxDeadpoolEntry:
		dataN = GetEntryN(out)
	case script.TxDeadpoolAnnounce:
		ann := NewAnnounce(out, 0)
		var ok bool
		if dataN, ok = ann.ReadN(); !ok {
			return ruleError(ReasonBigintInvalid)
		}
	default:
		return nil
	}

	return checkIntegerBytes(dataN, true)
}

// CheckAnnounceBurn enforces the minimum burn on announcement outputs.
func CheckAnnounceBurn(out *block.TxOut, params *chaincfg.Params) error {
	if !IsDeadpoolAnnouncement(out) {
		return nil
	}
	if out.Value < params.DeadpoolAnnounceMinBurn {
		return ruleError(ReasonAnnounceBurn)
	}
	return nil
}

// AnnounceView is the read side of the consensus announcement database. The
// heights returned are confirmation heights of announcement records matching
// a (deadpool id, claim hash) pair. The view must reflect the chain before
// the block under validation is applied.
type AnnounceView interface {
	// ClaimExists reports whether an announcement for the pair exists with
	// confirmation height inside [minHeight, maxHeight].
	ClaimExists(deadpoolID, claimHash chainhash.Hash, minHeight, maxHeight int32) (bool, error)
}

// WindowChecker binds an AnnounceView to a connecting height, giving the
// script interpreter the announcement predicate for that block.
type WindowChecker struct {
	View   AnnounceView
	Height int32 // height of the block containing the claim
	Params *chaincfg.Params
}

// CheckAnnounced implements script.AnnounceChecker. The maturity window
// keeps a mempool observer from stealing the reveal: replaying it requires a
// prior matured announcement the observer cannot have.
func (w *WindowChecker) CheckAnnounced(deadpoolID, claimHash chainhash.Hash) error {
	minHeight := w.Height - w.Params.DeadpoolAnnounceValidity
	maxHeight := w.Height - w.Params.DeadpoolAnnounceMaturity

	ok, err := w.View.ClaimExists(deadpoolID, claimHash, minHeight, maxHeight)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// distinguish the failure for reporting: an announcement that is too
	// young, too old, or absent entirely
	if ok, _ := w.View.ClaimExists(deadpoolID, claimHash, maxHeight+1, w.Height); ok {
		return ruleError(ReasonClaimBeforeMaturity)
	}
	if ok, _ := w.View.ClaimExists(deadpoolID, claimHash, 0, minHeight-1); ok {
		return ruleError(ReasonClaimAfterValidity)
	}

	return ruleError(ReasonClaimNoAnnouncement)
}

// CheckClaimInput validates one input spending a deadpool entry by running
// the entry script against the input's reveal under the announcement view.
func CheckClaimInput(in *block.TxIn, prevOut *block.TxOut, view AnnounceView, height int32, params *chaincfg.Params) error {
	checker := &WindowChecker{View: view, Height: height, Params: params}

	if err := script.EvalClaim(in.ScriptSig, prevOut.ScriptPubKey, checker); err != nil {
		if _, ok := err.(*RuleError); ok {
			return err
		}
		if errors.Is(err, script.ErrDivVerify) {
			return ruleError(ReasonClaimNoDiv)
		}
		return ruleError(ReasonClaimScriptSig)
	}
	return nil
}
