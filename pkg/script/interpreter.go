package script

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/factorn/factord/pkg/bignum"
)

// AnnounceChecker answers whether a committed announcement exists for a
// deadpool id inside the maturity/validity window at the current tip. The
// state consulted must be the state before the connecting block is applied.
// A nil return means a matching matured, unexpired announcement exists; any
// other return is the rejection reason.
type AnnounceChecker interface {
	CheckAnnounced(deadpoolID chainhash.Hash, claimHash chainhash.Hash) error
}

// Evaluation errors that are not window failures.
var (
	ErrStackSize     = errors.New("invalid stack operation")
	ErrUnknownOpcode = errors.New("unsupported opcode")
	ErrDivVerify     = errors.New("checkdivverify failed")
	ErrBadClaimHash  = errors.New("malformed claim commitment")
	ErrFalseResult   = errors.New("script evaluated to false")
)

type stack [][]byte

func (s *stack) push(b []byte) { *s = append(*s, b) }

func (s *stack) drop() error {
	if len(*s) == 0 {
		return ErrStackSize
	}
	*s = (*s)[:len(*s)-1]
	return nil
}

func (s stack) peek(depth int) ([]byte, error) {
	if depth >= len(s) {
		return nil, ErrStackSize
	}
	return s[len(s)-1-depth], nil
}

// EvalClaim executes a deadpool entry spend: the scriptSig pushes, then the
// entry scriptPubKey. The deadpool id checked by OP_ANNOUNCEVERIFY is the
// hash of the integer pushed by the entry script itself. checker is
// consulted for OP_ANNOUNCEVERIFY; the VM holds no chain state of its own.
func EvalClaim(scriptSig, scriptPubKey Script, checker AnnounceChecker) error {
	var stk stack

	// scriptSig may only push
	for pc := 0; pc < len(scriptSig); {
		op, data, next, ok := scriptSig.GetOp(pc)
		if !ok {
			return ErrStackSize
		}
		if !IsPush(op) {
			return ErrUnknownOpcode
		}
		stk.push(data)
		pc = next
	}

	var entryN []byte

	for pc := 0; pc < len(scriptPubKey); {
		op, data, next, ok := scriptPubKey.GetOp(pc)
		if !ok {
			return ErrStackSize
		}
		pc = next

		switch {
		case IsPush(op):
			if entryN == nil {
				entryN = data
			}
			stk.push(data)

		case op == OP_TRUE:
			stk.push([]byte{1})

		case op == OP_DROP:
			if err := stk.drop(); err != nil {
				return err
			}

		case op == OP_CHECKDIVVERIFY:
			if err := opCheckDivVerify(stk); err != nil {
				return err
			}

		case op == OP_ANNOUNCEVERIFY:
			if err := opAnnounceVerify(stk, entryN, checker); err != nil {
				return err
			}

		default:
			return ErrUnknownOpcode
		}
	}

	top, err := stk.peek(0)
	if err != nil {
		return err
	}
	if !truthy(top) {
		return ErrFalseResult
	}
	return nil
}

// opCheckDivVerify takes the divisor from the top of the stack and the
// candidate factor below it, and verifies the factor divides the divisor
// with the canonical ordering p <= n/p. The stack is left untouched.
func opCheckDivVerify(stk stack) error {
	dataN, err := stk.peek(0)
	if err != nil {
		return err
	}
	dataP, err := stk.peek(1)
	if err != nil {
		return err
	}

	n := bignum.FromBytes(dataN)
	p := bignum.FromBytes(dataP)
	if !n.IsValid() || !p.IsValid() {
		return ErrDivVerify
	}

	if p.CmpInt64(0) == 0 {
		return ErrDivVerify
	}
	if n.Mod(p).CmpInt64(0) != 0 {
		return ErrDivVerify
	}

	// 1 < p <= n/p
	if p.CmpInt64(1) <= 0 {
		return ErrDivVerify
	}
	if p.Cmp(n.Quo(p)) > 0 {
		return ErrDivVerify
	}

	return nil
}

// opAnnounceVerify verifies the claim commitment found beneath the factor on
// the stack against the announcement state. entryN is the integer pushed by
// the entry script being executed.
func opAnnounceVerify(stk stack, entryN []byte, checker AnnounceChecker) error {
	commit, err := stk.peek(1)
	if err != nil {
		return err
	}
	if len(commit) != chainhash.HashSize {
		return ErrBadClaimHash
	}
	if entryN == nil {
		return ErrDivVerify
	}

	var claim chainhash.Hash
	copy(claim[:], commit)

	return checker.CheckAnnounced(chainhash.HashH(entryN), claim)
}

func truthy(b []byte) bool {
	for i, c := range b {
		if c != 0 {
			// negative zero is false
			if i == len(b)-1 && c == 0x80 {
				return false
			}
			return true
		}
	}
	return false
}
