package script

// TxoutType classifies an output script against the standard templates.
type TxoutType int

const (
	TxNonStandard TxoutType = iota
	TxPubKey
	TxPubKeyHash
	TxScriptHash
	TxWitnessV0KeyHash
	TxWitnessV0ScriptHash
	TxNullData
	TxDeadpoolEntry
	TxDeadpoolAnnounce
)

func (t TxoutType) String() string {
	switch t {
	case TxPubKey:
		return "pubkey"
	case TxPubKeyHash:
		return "pubkeyhash"
	case TxScriptHash:
		return "scripthash"
	case TxWitnessV0KeyHash:
		return "witness_v0_keyhash"
	case TxWitnessV0ScriptHash:
		return "witness_v0_scripthash"
	case TxNullData:
		return "nulldata"
	case TxDeadpoolEntry:
		return "deadpool_entry"
	case TxDeadpoolAnnounce:
		return "deadpool_announce"
	default:
		return "nonstandard"
	}
}

// minEntryIntegerBytes is the smallest standard push of a deadpool integer,
// 160 bits fully padded.
const minEntryIntegerBytes = 20

// entryTail is the fixed opcode suffix of a deadpool entry script.
var entryTail = []byte{OP_CHECKDIVVERIFY, OP_DROP, OP_ANNOUNCEVERIFY, OP_DROP, OP_DROP, OP_TRUE}

// Solver classifies a scriptPubKey and returns the interesting pushdata
// elements of recognized templates.
func Solver(s Script) (TxoutType, [][]byte) {
	if t, data := matchDeadpoolEntry(s); t {
		return TxDeadpoolEntry, data
	}
	if t, data := matchDeadpoolAnnounce(s); t {
		return TxDeadpoolAnnounce, data
	}

	if len(s) > 0 && s[0] == OP_RETURN {
		return TxNullData, nil
	}

	// pay-to-pubkey-hash
	if len(s) == 25 && s[0] == OP_DUP && s[1] == OP_HASH160 && s[2] == 20 &&
		s[23] == OP_EQUALVERIFY && s[24] == OP_CHECKSIG {
		return TxPubKeyHash, [][]byte{s[3:23]}
	}

	// pay-to-script-hash
	if len(s) == 23 && s[0] == OP_HASH160 && s[1] == 20 && s[22] == OP_EQUAL {
		return TxScriptHash, [][]byte{s[2:22]}
	}

	// witness v0
	if len(s) == 22 && s[0] == OP_0 && s[1] == 20 {
		return TxWitnessV0KeyHash, [][]byte{s[2:]}
	}
	if len(s) == 34 && s[0] == OP_0 && s[1] == 32 {
		return TxWitnessV0ScriptHash, [][]byte{s[2:]}
	}

	// pay-to-pubkey
	if (len(s) == 35 && s[0] == 33 || len(s) == 67 && s[0] == 65) &&
		s[len(s)-1] == OP_CHECKSIG {
		return TxPubKey, [][]byte{s[1 : len(s)-1]}
	}

	return TxNonStandard, nil
}

func matchDeadpoolEntry(s Script) (bool, [][]byte) {
	op, data, next, ok := s.GetOp(0)
	if !ok || !IsPush(op) || data == nil {
		return false, nil
	}

	if len(data) < minEntryIntegerBytes || len(data) > MaxScriptElementSize {
		return false, nil
	}

	if len(s)-next != len(entryTail) {
		return false, nil
	}
	for i, op := range entryTail {
		if s[next+i] != op {
			return false, nil
		}
	}

	return true, [][]byte{data}
}

func matchDeadpoolAnnounce(s Script) (bool, [][]byte) {
	if len(s) == 0 || s[0] != OP_ANNOUNCE {
		return false, nil
	}

	op, claim, next, ok := s.GetOp(1)
	if !ok || !IsPush(op) || len(claim) != 32 {
		return false, nil
	}

	op, dataN, next, ok := s.GetOp(next)
	if !ok || !IsPush(op) || dataN == nil {
		return false, nil
	}
	if len(dataN) < minEntryIntegerBytes || len(dataN) > MaxScriptElementSize {
		return false, nil
	}

	if next != len(s) {
		return false, nil
	}

	return true, [][]byte{claim, dataN}
}

// EntryScript builds a deadpool entry locking script for a canonically
// encoded integer.
func EntryScript(dataN []byte) Script {
	s := Script{}.AddData(dataN)
	return append(s, entryTail...)
}

// AnnounceScript builds an unspendable announcement output committing to a
// future claim.
func AnnounceScript(claimHash []byte, dataN []byte) Script {
	s := Script{OP_ANNOUNCE}
	s = s.AddData(claimHash)
	return s.AddData(dataN)
}

// ClaimScriptSig builds the scriptSig spending a deadpool entry.
func ClaimScriptSig(claimHash []byte, solution []byte) Script {
	s := Script{}.AddData(claimHash)
	return s.AddData(solution)
}
