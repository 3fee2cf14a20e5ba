// Package chainstate manages the active chain: block validation and
// connection, the in-memory UTXO view, and the strictly ordered updates to
// the announcement database and deadpool index that ride along with it.
package chainstate

import (
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/factorn/factord/internal/announcedb"
	"github.com/factorn/factord/internal/index"
	"github.com/factorn/factord/internal/utils/logging"
	"github.com/factorn/factord/pkg/block"
	"github.com/factorn/factord/pkg/chain"
	"github.com/factorn/factord/pkg/chaincfg"
	"github.com/factorn/factord/pkg/deadpool"
	"github.com/factorn/factord/pkg/pow"
	"github.com/factorn/factord/pkg/script"
)

// Coin is one unspent output.
type Coin struct {
	Out      block.TxOut
	Height   int32
	Coinbase bool
}

// spentCoin is undo data for one input.
type spentCoin struct {
	prevOut block.OutPoint
	coin    Coin
}

type connectedBlock struct {
	block *block.Block
	spent []spentCoin
	anns  []deadpool.LocatedAnnouncement
}

// Notifier receives ordered block events for the index worker.
type Notifier interface {
	Notify(index.Event)
}

// ChainState is the node's view of the active chain. One writer at a time;
// readers take the shared lock.
type ChainState struct {
	mu sync.RWMutex

	params *chaincfg.Params
	vbits  *chaincfg.VersionBitsCache

	coins  map[block.OutPoint]Coin
	index  map[chainhash.Hash]*chain.BlockIndex
	active []*chain.BlockIndex
	blocks []*connectedBlock

	annDB    *announcedb.DB
	notifier Notifier
}

// New builds a chain state at genesis.
func New(params *chaincfg.Params, annDB *announcedb.DB, notifier Notifier) (*ChainState, error) {
	s := &ChainState{
		params:   params,
		vbits:    chaincfg.NewVersionBitsCache(),
		coins:    make(map[block.OutPoint]Coin),
		index:    make(map[chainhash.Hash]*chain.BlockIndex),
		annDB:    annDB,
		notifier: notifier,
	}

	genesis := &params.Genesis
	bi := chain.NewBlockIndex(&genesis.Header, nil)
	bi.ChainWork = pow.GetBlockProof(&genesis.Header)

	if bi.Hash != params.GenesisHash {
		return nil, errors.New("genesis hash mismatch")
	}

	s.index[bi.Hash] = bi
	s.active = append(s.active, bi)
	s.blocks = append(s.blocks, &connectedBlock{block: genesis})

	if notifier != nil {
		notifier.Notify(index.Event{Connect: true, Block: genesis, Height: 0, Hash: bi.Hash})
	}

	return s, nil
}

// Params returns the consensus parameters.
func (s *ChainState) Params() *chaincfg.Params { return s.params }

// Tip returns the current best block index.
func (s *ChainState) Tip() *chain.BlockIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[len(s.active)-1]
}

// Height returns the current tip height.
func (s *ChainState) Height() int32 {
	return s.Tip().Height
}

// GetCoin looks up an unspent output.
func (s *ChainState) GetCoin(op block.OutPoint) (Coin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coins[op]
	return c, ok
}

// BlockByHeight returns a connected block on the active chain.
func (s *ChainState) BlockByHeight(height int32) (*block.Block, *chain.BlockIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if height < 0 || int(height) >= len(s.active) {
		return nil, nil, false
	}
	return s.blocks[height].block, s.active[height], true
}

// DeadpoolActive reports whether the deadpool softfork enforces for the
// block after the current tip.
func (s *ChainState) DeadpoolActive() bool {
	s.mu.RLock()
	tip := s.active[len(s.active)-1]
	s.mu.RUnlock()
	return s.vbits.DeploymentActiveAfter(tip, s.params, chaincfg.DeploymentDeadpool)
}

// ConnectBlock validates b against the tip and applies it.
func (s *ChainState) ConnectBlock(b *block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.active[len(s.active)-1]
	h := &b.Header

	if h.HashPrevBlock != tip.Hash {
		return errors.New("block does not extend the active tip")
	}

	if h.Bits != pow.GetNextWorkRequired(tip, h, s.params) {
		return &deadpool.RuleError{Reason: "bad-diffbits"}
	}

	if !pow.CheckProofOfWork(h, s.params) {
		return &deadpool.RuleError{Reason: "high-hash"}
	}

	if block.MerkleRoot(b.Txs) != h.HashMerkle {
		return &deadpool.RuleError{Reason: "bad-txnmrklroot"}
	}

	height := tip.Height + 1
	active := s.vbits.DeploymentActiveAfter(tip, s.params, chaincfg.DeploymentDeadpool)

	cb := &connectedBlock{block: b}
	spentInBlock := make(map[block.OutPoint]struct{})

	// validate before mutating anything
	for txn, tx := range b.Txs {
		for _, out := range tx.Out {
			if err := deadpool.CheckTxOutDeadpoolIntegers(out); err != nil {
				if active {
					return err
				}
				logging.WithError(err).Debugf("pre-activation deadpool output accepted in tx %d", txn)
			}
			if err := deadpool.CheckAnnounceBurn(out, s.params); err != nil && active {
				return err
			}
		}

		if tx.IsCoinBase() {
			continue
		}

		for _, in := range tx.In {
			if _, dup := spentInBlock[in.PrevOut]; dup {
				return &deadpool.RuleError{Reason: "bad-txns-inputs-duplicate"}
			}
			spentInBlock[in.PrevOut] = struct{}{}

			coin, ok := s.coins[in.PrevOut]
			if !ok {
				return errors.Errorf("missing input %s", in.PrevOut)
			}

			if deadpool.IsDeadpoolEntry(&coin.Out) && active {
				if err := deadpool.CheckClaimInput(in, &coin.Out, s.annDB, height, s.params); err != nil {
					return err
				}
			}

			cb.spent = append(cb.spent, spentCoin{prevOut: in.PrevOut, coin: coin})
		}
	}

	// apply coin mutations
	for _, sp := range cb.spent {
		delete(s.coins, sp.prevOut)
	}
	for _, tx := range b.Txs {
		txid := tx.Hash()
		for i, out := range tx.Out {
			if script.Script(out.ScriptPubKey).IsUnspendable() {
				continue
			}
			s.coins[block.OutPoint{Hash: txid, Index: uint32(i)}] = Coin{
				Out:      *out,
				Height:   height,
				Coinbase: tx.IsCoinBase(),
			}
		}

		if anns, ok := deadpool.ExtractAnnouncements(tx, height); ok {
			cb.anns = append(cb.anns, anns...)
		}
	}

	if len(cb.anns) > 0 {
		if err := s.annDB.AddAnnouncements(cb.anns); err != nil {
			return errors.Wrap(err, "recording announcements")
		}
	}

	bi := chain.NewBlockIndex(h, tip)
	bi.ChainWork = new(big.Int).Add(tip.ChainWork, pow.GetBlockProof(h))

	s.index[bi.Hash] = bi
	s.active = append(s.active, bi)
	s.blocks = append(s.blocks, cb)

	if s.notifier != nil {
		s.notifier.Notify(index.Event{Connect: true, Block: b, Height: height, Hash: bi.Hash, PrevHash: tip.Hash})
	}

	logging.WithField("hash", bi.Hash).Infof("connected block at height %d", height)
	return nil
}

// DisconnectBlock rolls the tip back one block.
func (s *ChainState) DisconnectBlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) <= 1 {
		return errors.New("cannot disconnect genesis")
	}

	tip := s.active[len(s.active)-1]
	cb := s.blocks[len(s.blocks)-1]

	// drop this block's outputs, restore what it spent
	for _, tx := range cb.block.Txs {
		txid := tx.Hash()
		for i := range tx.Out {
			delete(s.coins, block.OutPoint{Hash: txid, Index: uint32(i)})
		}
	}
	for _, sp := range cb.spent {
		s.coins[sp.prevOut] = sp.coin
	}

	if len(cb.anns) > 0 {
		if err := s.annDB.RemoveAnnouncements(cb.anns); err != nil {
			return errors.Wrap(err, "removing announcements")
		}
	}

	s.active = s.active[:len(s.active)-1]
	s.blocks = s.blocks[:len(s.blocks)-1]
	delete(s.index, tip.Hash)

	if s.notifier != nil {
		s.notifier.Notify(index.Event{
			Connect:  false,
			Block:    cb.block,
			Height:   tip.Height,
			Hash:     tip.Hash,
			PrevHash: tip.Prev.Hash,
		})
	}

	logging.WithField("hash", tip.Hash).Infof("disconnected block at height %d", tip.Height)
	return nil
}
