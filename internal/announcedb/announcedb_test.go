package announcedb

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorn/factord/pkg/bignum"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/deadpool"
	"github.com/factorn/factord/pkg/script"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func testAnnouncement(t *testing.T, n int64, claimSeed string, height int32, vout uint32) deadpool.LocatedAnnouncement {
	t.Helper()

	// widen to the minimum entry push
	nBytes := make([]byte, 20)
	copy(nBytes, bignum.FromInt64(n).Serialize())

	claim := chainhash.HashH([]byte(claimSeed))
	out := &block.TxOut{
		Value:        1000000,
		ScriptPubKey: script.AnnounceScript(claim[:], nBytes),
	}

	return deadpool.LocatedAnnouncement{
		Locator:  block.OutPoint{Hash: chainhash.HashH([]byte(claimSeed + "tx")), Index: vout},
		Announce: *deadpool.NewAnnounce(out, height),
	}
}

func TestAddAndFindAnnouncement(t *testing.T) {
	db := testDB(t)

	ann := testAnnouncement(t, 319, "alice", 50, 0)
	require.NoError(t, db.AddAnnouncements([]deadpool.LocatedAnnouncement{ann}))

	id, claim := ann.Announce.Compact()

	ok, err := db.ClaimExists(id, claim, 0, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	// outside the window
	ok, err = db.ClaimExists(id, claim, 51, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ClaimExists(id, claim, 0, 49)
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong claim hash
	other := chainhash.HashH([]byte("mallory"))
	ok, err = db.ClaimExists(id, other, 0, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveAnnouncements(t *testing.T) {
	db := testDB(t)

	ann := testAnnouncement(t, 319, "alice", 50, 0)
	require.NoError(t, db.AddAnnouncements([]deadpool.LocatedAnnouncement{ann}))
	require.NoError(t, db.RemoveAnnouncements([]deadpool.LocatedAnnouncement{ann}))

	id, claim := ann.Announce.Compact()
	ok, err := db.ClaimExists(id, claim, 0, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMultipleAnnouncementsSameId(t *testing.T) {
	db := testDB(t)

	// two claimants announce on the same integer at different heights
	a := testAnnouncement(t, 319, "alice", 10, 0)
	b := testAnnouncement(t, 319, "bob", 90, 1)
	require.NoError(t, db.AddAnnouncements([]deadpool.LocatedAnnouncement{a, b}))

	id, aliceClaim := a.Announce.Compact()
	_, bobClaim := b.Announce.Compact()
	require.NotEqual(t, aliceClaim, bobClaim)

	ok, err := db.ClaimExists(id, aliceClaim, 0, 50)
	require.NoError(t, err)
	assert.True(t, ok)

	// bob's is outside this window
	ok, err = db.ClaimExists(id, bobClaim, 0, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ClaimExists(id, bobClaim, 50, 100)
	require.NoError(t, err)
	assert.True(t, ok)

	// removing alice leaves bob intact
	require.NoError(t, db.RemoveAnnouncements([]deadpool.LocatedAnnouncement{a}))
	ok, err = db.ClaimExists(id, aliceClaim, 0, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.ClaimExists(id, bobClaim, 0, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}
