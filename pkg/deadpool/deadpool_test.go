package deadpool

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorn/factord/pkg/bignum"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chaincfg"
	"github.com/factorn/factord/pkg/script"
)

var (
	validN     = mustHex("000000000000000000000000000000000000013f")
	validNHash = mustHash("cadb7d0d071506edc955a377b26875136bd74bbaa48eb85bf3f090dfeddb17b3")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

func TestEntryRecognition(t *testing.T) {
	out := &block.TxOut{Value: 1000, ScriptPubKey: script.EntryScript(validN)}

	assert.True(t, IsDeadpoolEntry(out))
	assert.Equal(t, validNHash, HashNValue(validN))
	assert.Equal(t, validNHash, GetEntryNHash(out))

	ids := map[chainhash.Hash]struct{}{}
	require.True(t, ExtractDeadpoolEntryIds([]*block.TxOut{out}, ids))
	assert.Contains(t, ids, validNHash)
}

func TestEntryExtraPaddingSameId(t *testing.T) {
	padded := mustHex("0000000000000000000000000000000000000000013f")
	out := &block.TxOut{Value: 1000, ScriptPubKey: script.EntryScript(padded)}

	assert.True(t, IsDeadpoolEntry(out))
	assert.Equal(t, validNHash, GetEntryNHash(out))
}

func TestEntryRejectsNonEntry(t *testing.T) {
	// no integer push at all
	out := &block.TxOut{ScriptPubKey: []byte{
		script.OP_CHECKDIVVERIFY, script.OP_DROP,
		script.OP_ANNOUNCEVERIFY, script.OP_DROP, script.OP_DROP, script.OP_TRUE,
	}}
	assert.False(t, IsDeadpoolEntry(out))

	ids := map[chainhash.Hash]struct{}{}
	assert.False(t, ExtractDeadpoolEntryIds([]*block.TxOut{out}, ids))
	assert.Empty(t, ids)
}

func TestAnnounceRecognition(t *testing.T) {
	claim := mustHex("0100000000000000000000000000000000000000000000000000000000000001")
	out := &block.TxOut{Value: 1000, ScriptPubKey: script.AnnounceScript(claim, validN)}

	require.True(t, IsDeadpoolAnnouncement(out))
	assert.True(t, script.Script(out.ScriptPubKey).IsUnspendable())

	ann := NewAnnounce(out, 1)

	var want chainhash.Hash
	copy(want[:], claim)
	assert.Equal(t, want, ann.ClaimHash())

	n, ok := ann.ReadN()
	require.True(t, ok)
	assert.Equal(t, validN, n)
	assert.Equal(t, validNHash, ann.NHash())

	ids := map[chainhash.Hash]struct{}{}
	require.True(t, ExtractDeadpoolAnnounceIds([]*block.TxOut{out}, ids))
	assert.Contains(t, ids, validNHash)
}

func TestExtractAnnouncements(t *testing.T) {
	claim := make([]byte, 32)
	tx := &block.Tx{
		Version: 1,
		Out: []*block.TxOut{
			{Value: 10, ScriptPubKey: script.Script{script.OP_RETURN}},
			{Value: 1000000, ScriptPubKey: script.AnnounceScript(claim, validN)},
		},
	}

	anns, found := ExtractAnnouncements(tx, 7)
	require.True(t, found)
	require.Len(t, anns, 1)
	assert.Equal(t, uint32(1), anns[0].Locator.Index)
	assert.Equal(t, tx.Hash(), anns[0].Locator.Hash)
	assert.Equal(t, int32(7), anns[0].Announce.Height)
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	re, ok := err.(*RuleError)
	require.True(t, ok, "expected rule error, got %v", err)
	return re.Reason
}

func TestCheckIntegerBytes(t *testing.T) {
	big160 := bignum.FromDecimal("1461501637330902918203684832716283019655932542975") // 2^160 - 1

	cases := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"empty", nil, ReasonBigintZero},
		{"zero bit pattern", []byte{0x00, 0x80}, ReasonBigintInvalid},
		{"one", []byte{0x01}, ReasonBigintZero},
		{"negative", append(make([]byte, 19), 0x81), ReasonBigintNegative},
		{"below 160 bits", mustHex("3f01"), ReasonBigintTooSmall},
		{"non canonical size", append(big160.Serialize(), 0x00), ReasonBigintNonCanonicalSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkIntegerBytes(tc.data, true)
			require.Error(t, err)
			assert.Equal(t, tc.reason, reasonOf(t, err))
		})
	}

	assert.NoError(t, checkIntegerBytes(big160.Serialize(), true))
}

func TestCheckIntegerTooLarge(t *testing.T) {
	// 4160 magnitude bits cannot fit a script element with its sign bit
	data := make([]byte, 521)
	for i := range data[:520] {
		data[i] = 0xff
	}

	err := checkIntegerBytes(data, true)
	assert.Equal(t, ReasonBigintTooLarge, reasonOf(t, err))
}

func TestCheckDeadpoolIntegerParsed(t *testing.T) {
	n := bignum.FromDecimal("1461501637330902918203684832716283019655932542975")
	assert.NoError(t, CheckDeadpoolInteger(n))

	small := bignum.FromInt64(319)
	err := CheckDeadpoolInteger(small)
	assert.Equal(t, ReasonBigintTooSmall, reasonOf(t, err))
}

func TestCheckTxOutDeadpoolIntegers(t *testing.T) {
	// the scenario-A style entry is standard but its payload is not the
	// canonical encoding of any integer of entry size
	out := &block.TxOut{ScriptPubKey: script.EntryScript(validN)}
	err := CheckTxOutDeadpoolIntegers(out)
	require.Error(t, err)
	assert.Equal(t, ReasonBigintTooSmall, reasonOf(t, err))

	// canonical 160-bit integer passes
	n := bignum.FromDecimal("1461501637330902918203684832716283019655932542975")
	out = &block.TxOut{ScriptPubKey: script.EntryScript(n.Serialize())}
	assert.NoError(t, CheckTxOutDeadpoolIntegers(out))

	// non-deadpool outputs pass untouched
	out = &block.TxOut{ScriptPubKey: script.Script{script.OP_RETURN}}
	assert.NoError(t, CheckTxOutDeadpoolIntegers(out))
}

func TestCheckAnnounceBurn(t *testing.T) {
	params := chaincfg.MainNetParams()
	claim := make([]byte, 32)

	n := bignum.FromDecimal("1461501637330902918203684832716283019655932542975")

	low := &block.TxOut{Value: params.DeadpoolAnnounceMinBurn - 1, ScriptPubKey: script.AnnounceScript(claim, n.Serialize())}
	err := CheckAnnounceBurn(low, params)
	assert.Equal(t, ReasonAnnounceBurn, reasonOf(t, err))

	enough := &block.TxOut{Value: params.DeadpoolAnnounceMinBurn, ScriptPubKey: script.AnnounceScript(claim, n.Serialize())}
	assert.NoError(t, CheckAnnounceBurn(enough, params))

	// only announcements carry the burn rule
	other := &block.TxOut{Value: 1, ScriptPubKey: script.Script{script.OP_RETURN}}
	assert.NoError(t, CheckAnnounceBurn(other, params))
}

func TestMakeClaimHash(t *testing.T) {
	dest := []byte{script.OP_DUP, script.OP_HASH160}
	p := bignum.FromInt64(11)

	h1 := MakeClaimHash(dest, p)
	h2 := MakeClaimHash(dest, p)
	assert.Equal(t, h1, h2)

	// any change to either preimage changes the commitment
	assert.NotEqual(t, h1, MakeClaimHash(dest, bignum.FromInt64(29)))
	assert.NotEqual(t, h1, MakeClaimHash([]byte{script.OP_DUP}, p))
}

// recordedView serves ClaimExists from a fixed set of announcements.
type recordedView struct {
	records []struct {
		id     chainhash.Hash
		claim  chainhash.Hash
		height int32
	}
}

func (v *recordedView) add(id, claim chainhash.Hash, height int32) {
	v.records = append(v.records, struct {
		id     chainhash.Hash
		claim  chainhash.Hash
		height int32
	}{id, claim, height})
}

func (v *recordedView) ClaimExists(id, claim chainhash.Hash, minHeight, maxHeight int32) (bool, error) {
	for _, r := range v.records {
		if r.id == id && r.claim == claim && r.height >= minHeight && r.height <= maxHeight {
			return true, nil
		}
	}
	return false, nil
}

func TestClaimWindow(t *testing.T) {
	params := chaincfg.MainNetParams()

	id := chainhash.HashH([]byte("some deadpool"))
	claim := chainhash.HashH([]byte("some commitment"))

	const announceHeight = 5000

	view := &recordedView{}
	view.add(id, claim, announceHeight)

	at := func(height int32) error {
		w := &WindowChecker{View: view, Height: height, Params: params}
		return w.CheckAnnounced(id, claim)
	}

	// one block early
	err := at(announceHeight + params.DeadpoolAnnounceMaturity - 1)
	assert.Equal(t, ReasonClaimBeforeMaturity, reasonOf(t, err))

	// exactly matured
	assert.NoError(t, at(announceHeight+params.DeadpoolAnnounceMaturity))

	// last valid block
	assert.NoError(t, at(announceHeight+params.DeadpoolAnnounceValidity))

	// one block late
	err = at(announceHeight + params.DeadpoolAnnounceValidity + 1)
	assert.Equal(t, ReasonClaimAfterValidity, reasonOf(t, err))

	// never announced
	err = at(announceHeight + params.DeadpoolAnnounceMaturity)
	assert.NoError(t, err)
	other := chainhash.HashH([]byte("someone else"))
	w := &WindowChecker{View: view, Height: announceHeight + 200, Params: params}
	err = w.CheckAnnounced(id, other)
	assert.Equal(t, ReasonClaimNoAnnouncement, reasonOf(t, err))
}

func TestScriptSigExtraction(t *testing.T) {
	p := bignum.FromInt64(11)
	claim := chainhash.HashH([]byte("commit"))

	in := &block.TxIn{ScriptSig: script.ClaimScriptSig(claim[:], p.Serialize())}

	assert.Equal(t, claim, GetClaimHashFromScriptSig(in))
	assert.Equal(t, 0, GetSolutionFromScriptSig(in).CmpInt64(11))

	// a malformed scriptSig yields the zero hash
	bad := &block.TxIn{ScriptSig: []byte{script.OP_DUP}}
	assert.Equal(t, chainhash.Hash{}, GetClaimHashFromScriptSig(bad))
}
