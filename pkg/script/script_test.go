package script

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorn/factord/pkg/bignum"
)

var validN = mustHex("000000000000000000000000000000000000013f")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestDeadpoolEntryTemplate(t *testing.T) {
	s := EntryScript(validN)

	assert.Equal(t, "14000000000000000000000000000000000000013fb975b8757551", hex.EncodeToString(s))

	typ, data := Solver(s)
	assert.Equal(t, TxDeadpoolEntry, typ)
	require.Len(t, data, 1)
	assert.Equal(t, validN, data[0])
}

func TestDeadpoolEntryExtraPadding(t *testing.T) {
	padded := mustHex("0000000000000000000000000000000000000000013f")

	typ, _ := Solver(EntryScript(padded))
	assert.Equal(t, TxDeadpoolEntry, typ)
}

func TestDeadpoolEntryMissingInteger(t *testing.T) {
	s := Script{OP_CHECKDIVVERIFY, OP_DROP, OP_ANNOUNCEVERIFY, OP_DROP, OP_DROP, OP_TRUE}

	assert.Equal(t, "b975b8757551", hex.EncodeToString(s))

	typ, _ := Solver(s)
	assert.Equal(t, TxNonStandard, typ)
}

func TestDeadpoolEntryInsufficientPadding(t *testing.T) {
	// a push under 20 bytes fails the standard check even though it decodes
	unpadded := mustHex("013f")

	typ, _ := Solver(EntryScript(unpadded))
	assert.Equal(t, TxNonStandard, typ)
}

func TestDeadpoolAnnounceTemplate(t *testing.T) {
	claim := mustHex("0100000000000000000000000000000000000000000000000000000000000001")

	s := AnnounceScript(claim, validN)

	typ, data := Solver(s)
	assert.Equal(t, TxDeadpoolAnnounce, typ)
	require.Len(t, data, 2)
	assert.Equal(t, claim, data[0])
	assert.Equal(t, validN, data[1])

	// announcements must be unspendable
	assert.True(t, s.IsUnspendable())
}

func TestStandardTemplates(t *testing.T) {
	p2pkh := append(append(Script{OP_DUP, OP_HASH160, 20}, make([]byte, 20)...), OP_EQUALVERIFY, OP_CHECKSIG)
	typ, _ := Solver(p2pkh)
	assert.Equal(t, TxPubKeyHash, typ)

	p2wpkh := append(Script{OP_0, 20}, make([]byte, 20)...)
	typ, _ = Solver(p2wpkh)
	assert.Equal(t, TxWitnessV0KeyHash, typ)

	nulldata := Script{OP_RETURN, 4, 0xde, 0xad, 0xbe, 0xef}
	typ, _ = Solver(nulldata)
	assert.Equal(t, TxNullData, typ)
	assert.True(t, nulldata.IsUnspendable())
}

func TestGetOpPushdataForms(t *testing.T) {
	long := make([]byte, 100)
	s := Script{}.AddData(long)
	require.Equal(t, byte(OP_PUSHDATA1), s[0])

	op, data, next, ok := s.GetOp(0)
	require.True(t, ok)
	assert.True(t, IsPush(op))
	assert.Equal(t, long, data)
	assert.Equal(t, len(s), next)

	// truncated pushes fail cleanly
	_, _, _, ok = Script(s[:50]).GetOp(0)
	assert.False(t, ok)
}

type fakeChecker struct {
	deadpoolID chainhash.Hash
	claimHash  chainhash.Hash
	err        error
	called     bool
}

func (c *fakeChecker) CheckAnnounced(id, claim chainhash.Hash) error {
	c.called = true
	c.deadpoolID = id
	c.claimHash = claim
	return c.err
}

func claimParts(n, p int64) (Script, Script, chainhash.Hash) {
	nBytes := bignum.FromInt64(n).Serialize()
	pBytes := bignum.FromInt64(p).Serialize()

	claim := chainhash.HashH([]byte("claim commitment"))
	sig := ClaimScriptSig(claim[:], pBytes)
	return sig, EntryScript(pad20(nBytes)), claim
}

// pad20 widens a canonical little-endian integer to the minimum entry push.
func pad20(b []byte) []byte {
	out := make([]byte, 20)
	copy(out, b)
	return out
}

func TestEvalClaimValid(t *testing.T) {
	sig, pub, claim := claimParts(319, 11) // 319 = 11 * 29

	checker := &fakeChecker{}
	require.NoError(t, EvalClaim(sig, pub, checker))

	assert.True(t, checker.called)
	assert.Equal(t, claim, checker.claimHash)

	// the deadpool id is the hash of the bytes the entry pushed
	_, data := Solver(pub)
	assert.Equal(t, chainhash.HashH(data[0]), checker.deadpoolID)
}

func TestEvalClaimDivisionFailures(t *testing.T) {
	checker := &fakeChecker{}

	// p does not divide n
	sig, pub, _ := claimParts(319, 7)
	assert.ErrorIs(t, EvalClaim(sig, pub, checker), ErrDivVerify)

	// p = 1 is no factorization
	sig, pub, _ = claimParts(319, 1)
	assert.ErrorIs(t, EvalClaim(sig, pub, checker), ErrDivVerify)

	// p must be the smaller factor
	sig, pub, _ = claimParts(319, 29)
	assert.ErrorIs(t, EvalClaim(sig, pub, checker), ErrDivVerify)

	// p = n fails the same ordering rule
	sig, pub, _ = claimParts(319, 319)
	assert.ErrorIs(t, EvalClaim(sig, pub, checker), ErrDivVerify)
}

func TestEvalClaimCheckerRejection(t *testing.T) {
	sig, pub, _ := claimParts(319, 11)

	wantErr := assert.AnError
	checker := &fakeChecker{err: wantErr}

	assert.ErrorIs(t, EvalClaim(sig, pub, checker), wantErr)
}

func TestEvalClaimMalformedCommitment(t *testing.T) {
	pBytes := bignum.FromInt64(11).Serialize()
	nBytes := pad20(bignum.FromInt64(319).Serialize())

	// commitment of the wrong width
	sig := ClaimScriptSig([]byte{0x01, 0x02}, pBytes)
	err := EvalClaim(sig, EntryScript(nBytes), &fakeChecker{})
	assert.ErrorIs(t, err, ErrBadClaimHash)

	// empty scriptSig underflows the stack
	err = EvalClaim(Script{}, EntryScript(nBytes), &fakeChecker{})
	assert.ErrorIs(t, err, ErrStackSize)
}

func TestEvalClaimRejectsNonPushScriptSig(t *testing.T) {
	nBytes := pad20(bignum.FromInt64(319).Serialize())

	sig := Script{OP_DUP}
	err := EvalClaim(sig, EntryScript(nBytes), &fakeChecker{})
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}
