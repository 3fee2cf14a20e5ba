// Package node assembles the running daemon: the databases, chain state,
// index worker and RPC surface, threaded through one context object instead
// of process-wide globals.
package node

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/factorn/factord/internal/announcedb"
	"github.com/factorn/factord/internal/chainstate"
	"github.com/factorn/factord/internal/config"
	"github.com/factorn/factord/internal/index"
	"github.com/factorn/factord/internal/utils/logging"
	"github.com/factorn/factord/pkg/chaincfg"
)

// eventBuffer bounds the index notification queue.
const eventBuffer = 128

type Node struct {
	cfg    *config.Config
	params *chaincfg.Params

	annDB  *announcedb.DB
	idx    *index.DeadpoolIndex
	worker *index.Worker
	chain  *chainstate.ChainState

	cancel context.CancelFunc
	logger *logrus.Logger
}

func (n *Node) Chain() *chainstate.ChainState {
	return n.chain
}

func (n *Node) Index() *index.DeadpoolIndex {
	return n.idx
}

func (n *Node) Params() *chaincfg.Params {
	return n.params
}

func (n *Node) Config() *config.Config {
	return n.cfg
}

func NewNode(ctx context.Context, opts ...NodeOption) (*Node, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:    cfg,
		params: cfg.Params(),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	if n.logger == nil {
		n.logger = logrus.StandardLogger()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}

	n.annDB, err = announcedb.Open(filepath.Join(cfg.DataDir, "announcedb"))
	if err != nil {
		return nil, errors.Wrap(err, "opening announce db")
	}

	n.idx, err = index.Open(filepath.Join(cfg.DataDir, "indexes", "deadpool"))
	if err != nil {
		return nil, errors.Wrap(err, "opening deadpool index")
	}

	n.worker = index.NewWorker(n.idx, eventBuffer)

	n.chain, err = chainstate.New(n.params, n.annDB, n.worker)
	if err != nil {
		return nil, errors.Wrap(err, "initing chain state")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	go n.worker.Run(workerCtx)

	if err := n.catchupIndex(); err != nil {
		return nil, errors.Wrap(err, "syncing deadpool index")
	}

	return n, nil
}

// catchupIndex replays blocks the index has not seen. A saved best block
// ahead of the chain, or off it entirely, means the index is inconsistent:
// an error saying it requires a rebuild is returned and nothing is replayed.
func (n *Node) catchupIndex() error {
	bestHeight, bestHash, ok, err := n.idx.BestBlock()
	if err != nil {
		return err
	}
	if !ok {
		// fresh index; the genesis notification is already queued
		return nil
	}

	tip := n.chain.Tip()
	if bestHeight > tip.Height {
		return errors.New("deadpool index best block ahead of chain tip; index requires rebuild")
	}

	if _, bi, found := n.chain.BlockByHeight(bestHeight); !found || bi.Hash != bestHash {
		return errors.New("deadpool index best block not on the active chain; index requires rebuild")
	}

	for h := bestHeight + 1; h <= tip.Height; h++ {
		b, bi, found := n.chain.BlockByHeight(h)
		if !found {
			return errors.Errorf("missing block at height %d during index catchup", h)
		}
		n.worker.Notify(index.Event{Connect: true, Block: b, Height: h, Hash: bi.Hash, PrevHash: bi.Prev.Hash})
	}

	if tip.Height > bestHeight {
		logging.Infof("deadpool index catching up from height %d to %d", bestHeight, tip.Height)
	}

	return nil
}

// Stop shuts the node down, letting the index worker finish its queue before
// the stores close.
func (n *Node) Stop() error {
	n.cancel()
	n.worker.Wait()

	if err := n.idx.Close(); err != nil {
		return errors.Wrap(err, "closing deadpool index")
	}
	return errors.Wrap(n.annDB.Close(), "closing announce db")
}
