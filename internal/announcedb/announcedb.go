// Package announcedb keeps the consensus-critical record of deadpool
// announcements. It is consulted during script verification and is kept in
// lockstep with the UTXO set: records are added when the containing block
// connects and removed when it disconnects. Unlike the deadpool index it
// cannot be rebuilt from its own state; losing it requires a rescan.
package announcedb

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/factorn/factord/internal/utils/logging"
	"github.com/factorn/factord/pkg/deadpool"
)

const announcePrefix byte = 'a'

var _ deadpool.AnnounceView = (*DB)(nil)

// claimValue is the stored record for one announcement.
type claimValue struct {
	Height    int32  `msgpack:"h"`
	ClaimHash []byte `msgpack:"c"`
}

// DB is the pebble-backed announcement database.
type DB struct {
	db *pebble.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening announce db")
	}

	return &DB{db: db}, nil
}

// Close releases the store.
func (d *DB) Close() error {
	return d.db.Close()
}

// announceKey is prefix || deadpoolId || outpoint.
func announceKey(id chainhash.Hash, locator []byte) []byte {
	k := make([]byte, 0, 1+chainhash.HashSize+len(locator))
	k = append(k, announcePrefix)
	k = append(k, id[:]...)
	return append(k, locator...)
}

// AddAnnouncements writes the block's announcements in one atomic batch.
func (d *DB) AddAnnouncements(list []deadpool.LocatedAnnouncement) error {
	batch := d.db.NewBatch()
	defer batch.Close()

	for _, ann := range list {
		id := ann.Announce.NHash()
		claim := ann.Announce.ClaimHash()

		logging.Entry().WithField("entry", id).Debugf("adding announcement %s at height %d", ann.Locator, ann.Announce.Height)

		v, err := msgpack.Marshal(&claimValue{Height: ann.Announce.Height, ClaimHash: claim[:]})
		if err != nil {
			return errors.Wrap(err, "marshaling announcement")
		}

		if err := batch.Set(announceKey(id, ann.Locator.Bytes()), v, nil); err != nil {
			return errors.Wrap(err, "writing announcement")
		}
	}

	if err := batch.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "committing announcements")
	}

	logging.Entry().Debugf("committed %d announcements", len(list))
	return nil
}

// RemoveAnnouncements deletes the block's announcements on disconnect.
func (d *DB) RemoveAnnouncements(list []deadpool.LocatedAnnouncement) error {
	batch := d.db.NewBatch()
	defer batch.Close()

	for _, ann := range list {
		id := ann.Announce.NHash()

		logging.Entry().WithField("entry", id).Debugf("removing announcement %s", ann.Locator)

		if err := batch.Delete(announceKey(id, ann.Locator.Bytes()), nil); err != nil {
			return errors.Wrap(err, "deleting announcement")
		}
	}

	if err := batch.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "committing removals")
	}

	return nil
}

// ClaimExists reports whether an announcement with the given claim hash for
// the deadpool id was confirmed inside [minHeight, maxHeight].
func (d *DB) ClaimExists(id, claim chainhash.Hash, minHeight, maxHeight int32) (bool, error) {
	prefix := append([]byte{announcePrefix}, id[:]...)

	iter := d.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		v := &claimValue{}
		if err := msgpack.Unmarshal(iter.Value(), v); err != nil {
			return false, errors.Wrap(err, "unmarshaling announcement")
		}

		if v.Height >= minHeight && v.Height <= maxHeight && claimEq(v.ClaimHash, claim) {
			return true, nil
		}
	}

	return false, iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
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

func claimEq(b []byte, h chainhash.Hash) bool {
	if len(b) != chainhash.HashSize {
		return false
	}
	var c chainhash.Hash
	copy(c[:], b)
	return c == h
}
