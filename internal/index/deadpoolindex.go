// Package index maintains the deadpool index: a rebuildable lookup from
// deadpool ids to their entries, announcements and claims. The index is not
// consensus critical.
package index

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/factorn/factord/internal/metrics"
	"github.com/factorn/factord/internal/utils/logging"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/deadpool"
	"github.com/factorn/factord/pkg/script"
)

// Key prefixes. Entries and announcements share a layout and differ only in
// prefix; claims are keyed by entry outpoint so spends can find them.
const (
	prefixEntry    byte = 'd'
	prefixAnnounce byte = 'a'
	prefixClaim    byte = 'c'
	prefixBest     byte = 'B'
)

// Entry is an entry or announcement returned from a lookup.
type Entry struct {
	DeadpoolID chainhash.Hash
	Locator    block.OutPoint
	Height     int32
	TxOut      block.TxOut
}

// Claim is the claim state of one entry. ClaimHeight zero means unclaimed.
type Claim struct {
	EntryLocator   block.OutPoint
	DeadpoolID     chainhash.Hash
	ClaimHeight    int32
	ClaimBlockHash chainhash.Hash
	ClaimTxHash    chainhash.Hash
	Solution       []byte
}

type entryValue struct {
	Height int32  `msgpack:"h"`
	Value  int64  `msgpack:"v"`
	Script []byte `msgpack:"s"`
}

type claimValue struct {
	DeadpoolID  []byte `msgpack:"d"`
	ClaimHeight int32  `msgpack:"h"`
	BlockHash   []byte `msgpack:"b"`
	TxHash      []byte `msgpack:"t"`
	Solution    []byte `msgpack:"p"`
}

type bestValue struct {
	Height int32  `msgpack:"h"`
	Hash   []byte `msgpack:"b"`
}

// DeadpoolIndex is the pebble-backed index.
type DeadpoolIndex struct {
	db *pebble.DB
}

// Open opens or creates the index at path.
func Open(path string) (*DeadpoolIndex, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening deadpool index")
	}

	return &DeadpoolIndex{db: db}, nil
}

// Close releases the store.
func (ix *DeadpoolIndex) Close() error {
	return ix.db.Close()
}

func idKey(prefix byte, id chainhash.Hash, locator []byte) []byte {
	k := make([]byte, 0, 1+chainhash.HashSize+len(locator))
	k = append(k, prefix)
	k = append(k, id[:]...)
	return append(k, locator...)
}

func claimKey(locator []byte) []byte {
	return append([]byte{prefixClaim}, locator...)
}

// ConnectBlock applies a block's deadpool effects in one atomic batch. All
// writes are upserts on deterministic keys, so replaying a connect after a
// crash is safe.
func (ix *DeadpoolIndex) ConnectBlock(b *block.Block, height int32, blockHash chainhash.Hash) error {
	// genesis outputs are not spendable
	if height == 0 {
		return ix.writeBest(nil, height, blockHash)
	}

	batch := ix.db.NewIndexedBatch()
	defer batch.Close()

	var nEntries, nAnns, nClaims int

	for _, tx := range b.Txs {
		txid := tx.Hash()

		for i, out := range tx.Out {
			t, _ := script.Solver(out.ScriptPubKey)
			locator := block.OutPoint{Hash: txid, Index: uint32(i)}

			switch t {
			case script.TxDeadpoolAnnounce:
				ann := deadpool.NewAnnounce(out, height)
				id := ann.NHash()
				if err := writeEntryOrAnnounce(batch, prefixAnnounce, id, locator, height, out); err != nil {
					return err
				}
				logging.Entry().Debugf("deadpool index found announcement: txid=%s height=%d nHash=%s", txid, height, id)
				nAnns++

			case script.TxDeadpoolEntry:
				id := deadpool.GetEntryNHash(out)
				if err := writeEntryOrAnnounce(batch, prefixEntry, id, locator, height, out); err != nil {
					return err
				}

				// open the claim slot as unclaimed
				if err := writeClaim(batch, locator, &Claim{EntryLocator: locator, DeadpoolID: id}); err != nil {
					return err
				}
				logging.Entry().Debugf("deadpool index found entry: txid=%s height=%d nHash=%s", txid, height, id)
				nEntries++
			}
		}

		for _, in := range tx.In {
			claim, ok, err := readClaim(batch, in.PrevOut.Bytes())
			if err != nil {
				return err
			}
			if !ok || claim.ClaimHeight != 0 {
				continue
			}

			solution := deadpool.GetSolutionFromScriptSig(in)
			claim.ClaimHeight = height
			claim.ClaimBlockHash = blockHash
			claim.ClaimTxHash = txid
			claim.Solution = solution.Serialize()

			if err := writeClaim(batch, in.PrevOut, claim); err != nil {
				return err
			}
			logging.Entry().Debugf("deadpool index found claim: txid=%s height=%d nHash=%s", txid, height, claim.DeadpoolID)
			nClaims++
		}
	}

	if err := ix.writeBest(batch, height, blockHash); err != nil {
		return err
	}

	if err := batch.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "committing index batch")
	}

	metrics.IndexBlocksConnected.Inc()
	metrics.IndexEntries.Add(float64(nEntries))
	metrics.IndexAnnouncements.Add(float64(nAnns))
	metrics.IndexClaims.Add(float64(nClaims))

	return nil
}

// DisconnectBlock inverts every write ConnectBlock performed for the block.
func (ix *DeadpoolIndex) DisconnectBlock(b *block.Block, height int32, prevHash chainhash.Hash) error {
	batch := ix.db.NewIndexedBatch()
	defer batch.Close()

	for _, tx := range b.Txs {
		txid := tx.Hash()

		for i, out := range tx.Out {
			t, _ := script.Solver(out.ScriptPubKey)
			locator := block.OutPoint{Hash: txid, Index: uint32(i)}

			switch t {
			case script.TxDeadpoolAnnounce:
				id := deadpool.NewAnnounce(out, height).NHash()
				if err := batch.Delete(idKey(prefixAnnounce, id, locator.Bytes()), nil); err != nil {
					return errors.Wrap(err, "deleting announcement")
				}

			case script.TxDeadpoolEntry:
				id := deadpool.GetEntryNHash(out)
				if err := batch.Delete(idKey(prefixEntry, id, locator.Bytes()), nil); err != nil {
					return errors.Wrap(err, "deleting entry")
				}
				if err := batch.Delete(claimKey(locator.Bytes()), nil); err != nil {
					return errors.Wrap(err, "deleting claim record")
				}
			}
		}

		for _, in := range tx.In {
			claim, ok, err := readClaim(batch, in.PrevOut.Bytes())
			if err != nil {
				return err
			}
			if !ok || claim.ClaimHeight != height {
				continue
			}

			// the spend happened in this block; reopen the slot
			reset := &Claim{EntryLocator: claim.EntryLocator, DeadpoolID: claim.DeadpoolID}
			if err := writeClaim(batch, in.PrevOut, reset); err != nil {
				return err
			}
		}
	}

	if err := ix.writeBest(batch, height-1, prevHash); err != nil {
		return err
	}

	if err := batch.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "committing index batch")
	}

	metrics.IndexBlocksDisconnected.Inc()
	return nil
}

type keyValueWriter interface {
	Set(key, value []byte, opts *pebble.WriteOptions) error
}

func writeEntryOrAnnounce(w keyValueWriter, prefix byte, id chainhash.Hash, locator block.OutPoint, height int32, out *block.TxOut) error {
	v, err := msgpack.Marshal(&entryValue{Height: height, Value: int64(out.Value), Script: out.ScriptPubKey})
	if err != nil {
		return errors.Wrap(err, "marshaling index record")
	}
	return errors.Wrap(w.Set(idKey(prefix, id, locator.Bytes()), v, nil), "writing index record")
}

func writeClaim(w keyValueWriter, locator block.OutPoint, c *Claim) error {
	v, err := msgpack.Marshal(&claimValue{
		DeadpoolID:  c.DeadpoolID[:],
		ClaimHeight: c.ClaimHeight,
		BlockHash:   c.ClaimBlockHash[:],
		TxHash:      c.ClaimTxHash[:],
		Solution:    c.Solution,
	})
	if err != nil {
		return errors.Wrap(err, "marshaling claim record")
	}
	return errors.Wrap(w.Set(claimKey(locator.Bytes()), v, nil), "writing claim record")
}

type keyValueReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func readClaim(r keyValueReader, locator []byte) (*Claim, bool, error) {
	raw, done, err := r.Get(claimKey(locator))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading claim record")
	}
	defer done.Close()

	v := &claimValue{}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return nil, false, errors.Wrap(err, "unmarshaling claim record")
	}

	c := &Claim{ClaimHeight: v.ClaimHeight, Solution: v.Solution}
	if lp, ok := block.OutPointFromBytes(locator); ok {
		c.EntryLocator = lp
	}
	copy(c.DeadpoolID[:], v.DeadpoolID)
	copy(c.ClaimBlockHash[:], v.BlockHash)
	copy(c.ClaimTxHash[:], v.TxHash)
	return c, true, nil
}

func (ix *DeadpoolIndex) writeBest(batch *pebble.Batch, height int32, hash chainhash.Hash) error {
	v, err := msgpack.Marshal(&bestValue{Height: height, Hash: hash[:]})
	if err != nil {
		return errors.Wrap(err, "marshaling best block")
	}

	if batch != nil {
		return errors.Wrap(batch.Set([]byte{prefixBest}, v, nil), "writing best block")
	}
	return errors.Wrap(ix.db.Set([]byte{prefixBest}, v, &pebble.WriteOptions{Sync: true}), "writing best block")
}

// BestBlock returns the height and hash the index has applied up to.
func (ix *DeadpoolIndex) BestBlock() (int32, chainhash.Hash, bool, error) {
	raw, done, err := ix.db.Get([]byte{prefixBest})
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, chainhash.Hash{}, false, nil
		}
		return 0, chainhash.Hash{}, false, errors.Wrap(err, "reading best block")
	}
	defer done.Close()

	v := &bestValue{}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return 0, chainhash.Hash{}, false, errors.Wrap(err, "unmarshaling best block")
	}

	var h chainhash.Hash
	copy(h[:], v.Hash)
	return v.Height, h, true, nil
}

// FindEntries returns all indexed entries for a deadpool id.
func (ix *DeadpoolIndex) FindEntries(id chainhash.Hash) ([]Entry, error) {
	return ix.readEntriesOrAnnounces(prefixEntry, id)
}

// FindAnnounces returns all indexed announcements for a deadpool id.
func (ix *DeadpoolIndex) FindAnnounces(id chainhash.Hash) ([]Entry, error) {
	return ix.readEntriesOrAnnounces(prefixAnnounce, id)
}

func (ix *DeadpoolIndex) readEntriesOrAnnounces(prefix byte, id chainhash.Hash) ([]Entry, error) {
	lower := append([]byte{prefix}, id[:]...)

	iter := ix.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(lower),
	})
	defer iter.Close()

	var list []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}

	return list, iter.Error()
}

// FindEntriesSinceHeight returns all entries confirmed at or above a height.
func (ix *DeadpoolIndex) FindEntriesSinceHeight(minHeight int32) ([]Entry, error) {
	iter := ix.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixEntry},
		UpperBound: []byte{prefixEntry + 1},
	})
	defer iter.Close()

	var list []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		if e.Height < minHeight {
			continue
		}
		list = append(list, *e)
	}

	return list, iter.Error()
}

// FindClaim returns the claim record of an entry outpoint.
func (ix *DeadpoolIndex) FindClaim(locator block.OutPoint) (*Claim, bool, error) {
	return readClaim(ix.db, locator.Bytes())
}

func decodeEntry(key, value []byte) (*Entry, error) {
	if len(key) != 1+chainhash.HashSize+36 {
		return nil, errors.New("malformed index key")
	}

	e := &Entry{}
	copy(e.DeadpoolID[:], key[1:1+chainhash.HashSize])

	locator, ok := block.OutPointFromBytes(key[1+chainhash.HashSize:])
	if !ok {
		return nil, errors.New("malformed index locator")
	}
	e.Locator = locator

	v := &entryValue{}
	if err := msgpack.Unmarshal(value, v); err != nil {
		return nil, errors.Wrap(err, "unmarshaling index record")
	}
	e.Height = v.Height
	e.TxOut = block.TxOut{Value: block.Amount(v.Value), ScriptPubKey: v.Script}

	return e, nil
}

func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
