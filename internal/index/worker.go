package index

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/factorn/factord/internal/utils/logging"
	"github.com/factorn/factord/pkg/block"
)

// Event is one block connect or disconnect, delivered in chain order.
type Event struct {
	Connect  bool
	Block    *block.Block
	Height   int32
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
}

// Worker applies connect/disconnect notifications to the index on a single
// goroutine, keeping the database strictly ordered. A batch in flight is
// always completed before shutdown so the store stays consistent.
type Worker struct {
	ix     *DeadpoolIndex
	events chan Event
	done   chan struct{}
}

// NewWorker wraps an index with an ordered notification queue.
func NewWorker(ix *DeadpoolIndex, buffer int) *Worker {
	return &Worker{
		ix:     ix,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Index returns the underlying index for queries. Readers use snapshots and
// never block the worker.
func (w *Worker) Index() *DeadpoolIndex {
	return w.ix
}

// Notify enqueues an event. Callers must deliver events in chain order;
// the send blocks rather than reorder under backpressure.
func (w *Worker) Notify(ev Event) {
	w.events <- ev
}

// Run consumes events until the context is cancelled. The current event is
// always finished before returning.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case ev := <-w.events:
			w.apply(ev)
		case <-ctx.Done():
			// drain anything already queued so the saved best block does not
			// fall behind what the chain has told us
			for {
				select {
				case ev := <-w.events:
					w.apply(ev)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (w *Worker) Wait() {
	<-w.done
}

func (w *Worker) apply(ev Event) {
	var err error
	if ev.Connect {
		err = w.ix.ConnectBlock(ev.Block, ev.Height, ev.Hash)
	} else {
		err = w.ix.DisconnectBlock(ev.Block, ev.Height, ev.PrevHash)
	}

	if err != nil {
		logging.WithError(err).WithField("height", ev.Height).Error("applying block to deadpool index")
	}
}
