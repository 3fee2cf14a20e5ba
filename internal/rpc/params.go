package rpc

import (
	"bytes"
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/factorn/factord/pkg/block"
)

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func paramString(params []json.RawMessage, idx int) (string, error) {
	if idx >= len(params) || isNull(params[idx]) {
		return "", rpcErrorf(errInvalidParam, "missing parameter %d", idx+1)
	}

	var s string
	if err := json.Unmarshal(params[idx], &s); err != nil {
		return "", rpcErrorf(errInvalidParam, "parameter %d must be a string", idx+1)
	}
	return s, nil
}

func paramHash(params []json.RawMessage, idx int) (chainhash.Hash, error) {
	s, err := paramString(params, idx)
	if err != nil {
		return chainhash.Hash{}, err
	}

	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, rpcErrorf(errInvalidParam, "parameter %d must be a hex hash", idx+1)
	}
	return *h, nil
}

// paramAmount accepts a coin-denominated JSON number or numeric string and
// converts to satoshis.
func paramAmount(params []json.RawMessage, idx int) (block.Amount, error) {
	if idx >= len(params) || isNull(params[idx]) {
		return 0, rpcErrorf(errInvalidParam, "missing parameter %d", idx+1)
	}

	var f float64
	if err := json.Unmarshal(params[idx], &f); err != nil {
		var s string
		if err := json.Unmarshal(params[idx], &s); err != nil {
			return 0, rpcErrorf(errInvalidParam, "parameter %d must be an amount", idx+1)
		}
		f, err = json.Number(s).Float64()
		if err != nil {
			return 0, rpcErrorf(errInvalidParam, "parameter %d must be an amount", idx+1)
		}
	}

	amt, err := btcutil.NewAmount(f)
	if err != nil {
		return 0, rpcErrorf(errInvalidParam, "invalid amount")
	}

	v := block.Amount(amt)
	if !block.MoneyRange(v) {
		return 0, rpcErrorf(errInvalidParam, "amount out of range")
	}
	return v, nil
}

func paramIntDefault(params []json.RawMessage, idx int, def int) int {
	if idx >= len(params) || isNull(params[idx]) {
		return def
	}

	var v int
	if err := json.Unmarshal(params[idx], &v); err != nil {
		return def
	}
	return v
}

func paramBoolDefault(params []json.RawMessage, idx int, def bool) bool {
	if idx >= len(params) || isNull(params[idx]) {
		return def
	}

	var v bool
	if err := json.Unmarshal(params[idx], &v); err != nil {
		// accept 0/1 as well
		var n int
		if err := json.Unmarshal(params[idx], &n); err == nil {
			return n != 0
		}
		return def
	}
	return v
}
