package rpc

import (
	"bytes"
	"encoding/json"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"github.com/factorn/factord/pkg/bignum"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/deadpool"
	"github.com/factorn/factord/pkg/script"
)

// claimFeeRate is the satoshi-per-byte rate deducted from claim templates.
const claimFeeRate = 10

func (s *Server) registerDeadpoolCommands() {
	s.commands["getdeadpoolid"] = s.getDeadpoolID
	s.commands["getdeadpoolentry"] = s.getDeadpoolEntry
	s.commands["listdeadpoolentries"] = s.listDeadpoolEntries
	s.commands["createdeadpoolentry"] = s.createDeadpoolEntry
	s.commands["announcedeadpoolclaim"] = s.announceDeadpoolClaim
	s.commands["claimdeadpooltxs"] = s.claimDeadpoolTxs
	s.commands["claimdeadpoolid"] = s.claimDeadpoolID
}

func (s *Server) requireActivated() error {
	if !s.n.Chain().DeadpoolActive() {
		return rpcErrorf(errMisc, "Deadpool feature is not yet activated")
	}
	return nil
}

// getdeadpoolid n -> hex id of the canonical encoding of n
func (s *Server) getDeadpoolID(params []json.RawMessage) (interface{}, error) {
	dec, err := paramString(params, 0)
	if err != nil {
		return nil, err
	}

	n := bignum.FromDecimal(dec)
	if !n.IsValid() {
		return nil, rpcErrorf(errMisc, "Invalid decimal number provided")
	}

	if err := deadpool.CheckDeadpoolInteger(n); err != nil {
		return nil, rpcErrorf(errMisc, "Invalid integer: %s", err)
	}

	return deadpool.HashNValue(n.Serialize()).String(), nil
}

type entryResult struct {
	TxID           string  `json:"txid"`
	Vout           uint32  `json:"vout"`
	Amount         float64 `json:"amount"`
	Height         int32   `json:"height"`
	Claimed        bool    `json:"claimed"`
	ClaimHeight    int32   `json:"claim_height,omitempty"`
	ClaimBlockHash string  `json:"claim_blockhash,omitempty"`
	ClaimTxID      string  `json:"claim_txid,omitempty"`
	Solution       string  `json:"solution,omitempty"`
}

type announceResult struct {
	TxID       string  `json:"txid"`
	Vout       uint32  `json:"vout"`
	BurnAmount float64 `json:"burn_amount"`
	Height     int32   `json:"height"`
}

// getdeadpoolentry deadpoolid -> entry details with claims and announcements
func (s *Server) getDeadpoolEntry(params []json.RawMessage) (interface{}, error) {
	if err := s.requireActivated(); err != nil {
		return nil, err
	}

	id, err := paramHash(params, 0)
	if err != nil {
		return nil, err
	}

	entries, err := s.n.Index().FindEntries(id)
	if err != nil {
		return nil, rpcErrorf(errMisc, "Unable to query deadpool index.")
	}
	if len(entries) == 0 {
		return nil, rpcErrorf(errMisc, "No entries found.")
	}

	anns, err := s.n.Index().FindAnnounces(id)
	if err != nil {
		anns = nil
	}

	var total block.Amount
	var dataN []byte
	resEntries := []entryResult{}
	for _, entry := range entries {
		if dataN == nil {
			dataN = deadpool.GetEntryN(&entry.TxOut)
		}

		res := entryResult{
			TxID:   entry.Locator.Hash.String(),
			Vout:   entry.Locator.Index,
			Amount: btcutil.Amount(entry.TxOut.Value).ToBTC(),
			Height: entry.Height,
		}

		if claim, ok, _ := s.n.Index().FindClaim(entry.Locator); ok && claim.ClaimHeight > 0 {
			res.Claimed = true
			res.ClaimHeight = claim.ClaimHeight
			res.ClaimBlockHash = claim.ClaimBlockHash.String()
			res.ClaimTxID = claim.ClaimTxHash.String()
			res.Solution = bignum.FromBytes(claim.Solution).Dec()
		}

		resEntries = append(resEntries, res)
		total += entry.TxOut.Value
	}

	resAnns := []announceResult{}
	for _, ann := range anns {
		resAnns = append(resAnns, announceResult{
			TxID:       ann.Locator.Hash.String(),
			Vout:       ann.Locator.Index,
			BurnAmount: btcutil.Amount(ann.TxOut.Value).ToBTC(),
			Height:     ann.Height,
		})
	}

	n := bignum.FromBytes(dataN)

	return map[string]interface{}{
		"n":             n.Dec(),
		"bits":          n.Bits(),
		"deadpoolid":    id.String(),
		"bounty":        btcutil.Amount(total).ToBTC(),
		"entries":       resEntries,
		"announcements": resAnns,
	}, nil
}

// listdeadpoolentries [num_blocks] [limit] [include_claimed] [include_announced]
func (s *Server) listDeadpoolEntries(params []json.RawMessage) (interface{}, error) {
	if err := s.requireActivated(); err != nil {
		return nil, err
	}

	numBlocks := paramIntDefault(params, 0, 1000)
	limit := paramIntDefault(params, 1, 1000)
	includeClaimed := paramBoolDefault(params, 2, false)
	includeAnnounced := paramBoolDefault(params, 3, true)

	targetHeight := s.n.Chain().Height() - int32(numBlocks)
	if targetHeight < 1 {
		targetHeight = 1
	}

	found, err := s.n.Index().FindEntriesSinceHeight(targetHeight)
	if err != nil {
		return nil, rpcErrorf(errMisc, "Unable to query deadpool index.")
	}

	res := []map[string]interface{}{}
	processed := map[chainhash.Hash]struct{}{}
	for _, entry := range found {
		if len(res) >= limit {
			break
		}

		// only process each deadpool id once
		if _, ok := processed[entry.DeadpoolID]; ok {
			continue
		}
		processed[entry.DeadpoolID] = struct{}{}

		// announcements first, in case this id is filtered out
		anns, _ := s.n.Index().FindAnnounces(entry.DeadpoolID)
		if !includeAnnounced && len(anns) > 0 {
			continue
		}

		var total block.Amount
		numEntries := 0

		all, _ := s.n.Index().FindEntries(entry.DeadpoolID)
		for _, other := range all {
			if !includeClaimed {
				if claim, ok, _ := s.n.Index().FindClaim(other.Locator); ok && claim.ClaimHeight > 0 {
					continue
				}
			}
			total += other.TxOut.Value
			numEntries++
		}

		if numEntries > 0 {
			res = append(res, map[string]interface{}{
				"deadpoolid":    entry.DeadpoolID.String(),
				"bounty":        btcutil.Amount(total).ToBTC(),
				"entries":       numEntries,
				"announcements": len(anns),
			})
		}
	}

	return res, nil
}

// createdeadpoolentry amount n -> unfunded entry template
func (s *Server) createDeadpoolEntry(params []json.RawMessage) (interface{}, error) {
	if err := s.requireActivated(); err != nil {
		return nil, err
	}

	amount, err := paramAmount(params, 0)
	if err != nil {
		return nil, err
	}

	dec, err := paramString(params, 1)
	if err != nil {
		return nil, err
	}
	n := bignum.FromDecimal(dec)
	if !n.IsValid() {
		return nil, rpcErrorf(errMisc, "Invalid decimal number provided")
	}
	if err := deadpool.CheckDeadpoolInteger(n); err != nil {
		return nil, rpcErrorf(errMisc, "Invalid integer: %s", err)
	}

	tx := &block.Tx{
		Version: 1,
		Out: []*block.TxOut{{
			Value:        amount,
			ScriptPubKey: script.EntryScript(n.Serialize()),
		}},
	}

	return tx.Hex(), nil
}

// announcedeadpoolclaim burn_amount address entry_n solution -> unfunded
// announcement template
func (s *Server) announceDeadpoolClaim(params []json.RawMessage) (interface{}, error) {
	if err := s.requireActivated(); err != nil {
		return nil, err
	}

	amount, err := paramAmount(params, 0)
	if err != nil {
		return nil, err
	}

	minBurn := s.n.Params().DeadpoolAnnounceMinBurn
	if amount < minBurn {
		return nil, rpcErrorf(errMisc, "Burn amount should be at least %s", btcutil.Amount(minBurn).String())
	}

	destScript, err := s.paramAddressScript(params, 1)
	if err != nil {
		return nil, err
	}

	dec, err := paramString(params, 2)
	if err != nil {
		return nil, err
	}
	n := bignum.FromDecimal(dec)
	if !n.IsValid() {
		return nil, rpcErrorf(errMisc, "Invalid decimal number provided for entry_n")
	}
	if err := deadpool.CheckDeadpoolInteger(n); err != nil {
		return nil, rpcErrorf(errMisc, "Invalid entry_n integer: %s", err)
	}

	sol, err := paramString(params, 3)
	if err != nil {
		return nil, err
	}
	p := bignum.FromDecimal(sol)
	if !p.IsValid() {
		return nil, rpcErrorf(errMisc, "Invalid decimal number provided for solution")
	}

	if n.Mod(p).CmpInt64(0) != 0 {
		return nil, rpcErrorf(errMisc, "Solution is not valid for given entry")
	}

	claimHash := deadpool.MakeClaimHash(destScript, p)

	tx := &block.Tx{
		Version: 1,
		Out: []*block.TxOut{{
			Value:        amount,
			ScriptPubKey: script.AnnounceScript(claimHash[:], n.Serialize()),
		}},
	}

	return tx.Hex(), nil
}

// claimdeadpooltxs inputs to_address solution -> claim transaction
func (s *Server) claimDeadpoolTxs(params []json.RawMessage) (interface{}, error) {
	if err := s.requireActivated(); err != nil {
		return nil, err
	}

	destScript, err := s.paramAddressScript(params, 1)
	if err != nil {
		return nil, err
	}

	sol, err := paramString(params, 2)
	if err != nil {
		return nil, err
	}
	p := bignum.FromDecimal(sol)
	if !p.IsValid() {
		return nil, rpcErrorf(errMisc, "Invalid decimal number provided for solution")
	}

	if len(params) == 0 || isNull(params[0]) {
		return nil, rpcErrorf(errInvalidParam, "Invalid parameter, inputs argument must be non-null")
	}

	var inputs []struct {
		TxID string `json:"txid"`
		Vout *int64 `json:"vout"`
	}
	if err := json.Unmarshal(params[0], &inputs); err != nil {
		return nil, rpcErrorf(errInvalidParam, "Invalid inputs: %s", err)
	}

	var entryN []byte
	var entries []block.OutPoint
	var totalBounty block.Amount
	for _, input := range inputs {
		txid, err := chainhash.NewHashFromStr(input.TxID)
		if err != nil {
			return nil, rpcErrorf(errDeserialization, "Invalid txid: %s", input.TxID)
		}
		if input.Vout == nil || *input.Vout < 0 {
			return nil, rpcErrorf(errDeserialization, "vout cannot be negative")
		}

		locator := block.OutPoint{Hash: *txid, Index: uint32(*input.Vout)}
		coin, ok := s.n.Chain().GetCoin(locator)
		if !ok {
			return nil, rpcErrorf(errDeserialization, "Unable to find entry for %s:%d", txid, *input.Vout)
		}

		if !deadpool.IsDeadpoolEntry(&coin.Out) {
			return nil, rpcErrorf(errDeserialization, "TxOut %s:%d is not a deadpool entry", txid, *input.Vout)
		}

		thisN := deadpool.GetEntryN(&coin.Out)
		if entryN == nil {
			entryN = thisN
		} else if !bytes.Equal(thisN, entryN) {
			return nil, rpcErrorf(errDeserialization, "Entry %s:%d mismatches other entries", txid, *input.Vout)
		}

		entries = append(entries, locator)
		totalBounty += coin.Out.Value
	}

	if len(entries) == 0 {
		return nil, rpcErrorf(errInvalidParam, "Invalid parameter, inputs argument must be non-null")
	}

	n := bignum.FromBytes(entryN)
	if n.Mod(p).CmpInt64(0) != 0 {
		return nil, rpcErrorf(errMisc, "Solution is not valid for given entry")
	}

	return createClaimTx(entries, totalBounty, p, destScript).Hex(), nil
}

// claimdeadpoolid deadpoolid to_address solution -> claim transaction over
// every unclaimed entry of the id
func (s *Server) claimDeadpoolID(params []json.RawMessage) (interface{}, error) {
	if err := s.requireActivated(); err != nil {
		return nil, err
	}

	destScript, err := s.paramAddressScript(params, 1)
	if err != nil {
		return nil, err
	}

	sol, err := paramString(params, 2)
	if err != nil {
		return nil, err
	}
	p := bignum.FromDecimal(sol)
	if !p.IsValid() {
		return nil, rpcErrorf(errMisc, "Invalid decimal number provided for solution")
	}

	id, err := paramHash(params, 0)
	if err != nil {
		return nil, err
	}

	found, err := s.n.Index().FindEntries(id)
	if err != nil {
		return nil, rpcErrorf(errMisc, "Unable to query deadpool index")
	}
	if len(found) == 0 {
		return nil, rpcErrorf(errMisc, "No entries found")
	}

	var entryN []byte
	var unclaimed []block.OutPoint
	var totalBounty block.Amount
	for _, entry := range found {
		coin, ok := s.n.Chain().GetCoin(entry.Locator)
		if !ok {
			// already claimed, move on to the next
			continue
		}

		if entryN == nil {
			entryN = deadpool.GetEntryN(&coin.Out)
		}

		unclaimed = append(unclaimed, entry.Locator)
		totalBounty += coin.Out.Value
	}

	if len(unclaimed) == 0 || entryN == nil {
		return nil, rpcErrorf(errMisc, "No entries found")
	}

	n := bignum.FromBytes(entryN)
	if n.Mod(p).CmpInt64(0) != 0 {
		return nil, rpcErrorf(errMisc, "Solution is not valid for given entry")
	}

	return createClaimTx(unclaimed, totalBounty, p, destScript).Hex(), nil
}

// createClaimTx builds the claim spend over a set of same-N entries, paying
// the bounty less fees to the committed destination.
func createClaimTx(entries []block.OutPoint, totalValue block.Amount, solution *bignum.Bignum, destScript []byte) *block.Tx {
	claimHash := deadpool.MakeClaimHash(destScript, solution)
	scriptSig := script.ClaimScriptSig(claimHash[:], solution.Serialize())

	tx := &block.Tx{Version: 1}
	for _, entry := range entries {
		tx.In = append(tx.In, &block.TxIn{
			PrevOut:   entry,
			ScriptSig: scriptSig,
			Sequence:  0xffffffff,
		})
	}

	// size so far (locktime included) plus the output we are about to add:
	// script, its length byte and the amount
	var sized bytes.Buffer
	_ = tx.Serialize(&sized)
	txSize := sized.Len() + len(destScript) + 1 + 8

	afterFee := totalValue - block.Amount(txSize*claimFeeRate)
	tx.Out = append(tx.Out, &block.TxOut{Value: afterFee, ScriptPubKey: destScript})

	return tx
}

// paramAddressScript decodes an address parameter into its scriptPubKey
// using the chain's address parameters.
func (s *Server) paramAddressScript(params []json.RawMessage, idx int) ([]byte, error) {
	addr, err := paramString(params, idx)
	if err != nil {
		return nil, err
	}

	decoded, err := btcutil.DecodeAddress(addr, s.n.Params().Address)
	if err != nil || !decoded.IsForNet(s.n.Params().Address) {
		return nil, rpcErrorf(errInvalidAddress, "Invalid address: %s", addr)
	}

	destScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, rpcErrorf(errInvalidAddress, "Invalid address: %s", addr)
	}
	return destScript, nil
}
