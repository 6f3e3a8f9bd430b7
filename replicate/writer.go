package replicate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/graph"
	"github.com/freehandle/ripple/store"
)

const maxResequence = 3

type writeResult struct {
	msg *feed.Message
	// duplicate is set when a remote message was already stored.
	duplicate bool
	err       error
}

// writeRequest is one unit of work of the writer. Exactly one of local,
// remote and rebuild is set.
type writeRequest struct {
	local   feed.Content
	remote  *feed.Message
	rebuild bool
	result  chan writeResult
}

// write hands req to the writer and waits for its result.
func (n *Node) write(req *writeRequest) writeResult {
	req.result = make(chan writeResult, 1)
	select {
	case n.requests <- req:
	case <-n.ctx.Done():
		return writeResult{err: ErrClosed}
	}
	select {
	case result := <-req.result:
		return result
	case <-n.ctx.Done():
		return writeResult{err: ErrClosed}
	}
}

// writer serializes every change to the store and the graph.
func (n *Node) writer() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		case req := <-n.requests:
			var result writeResult
			switch {
			case req.rebuild:
				result.err = n.rebuild()
			case req.remote != nil:
				result = n.appendRemote(req.remote)
			default:
				result = n.appendLocal(req.local)
			}
			req.result <- result
		}
	}
}

func (n *Node) appendLocal(content feed.Content) writeResult {
	for attempt := 0; attempt < maxResequence; attempt++ {
		head, err := n.store.Head(n.token)
		if err != nil {
			return writeResult{err: err}
		}
		msg := feed.NewMessage(n.key, head, content, time.Now())
		err = n.commit(msg)
		if errors.Is(err, store.ErrSequenceConflict) {
			slog.Debug("local append conflicted, resequencing", "sequence", msg.Sequence)
			continue
		}
		if err != nil {
			return writeResult{err: err}
		}
		n.published(msg, true)
		return writeResult{msg: msg}
	}
	return writeResult{err: store.ErrSequenceConflict}
}

func (n *Node) appendRemote(msg *feed.Message) writeResult {
	head, err := n.store.Head(msg.Author)
	if err != nil {
		return writeResult{err: err}
	}
	if msg.Sequence <= head.Sequence {
		stored, err := n.store.Get(msg.Author, msg.Sequence)
		if err != nil {
			return writeResult{err: err}
		}
		if stored.Hash() == msg.Hash() {
			return writeResult{msg: stored, duplicate: true}
		}
		return writeResult{err: feed.ErrInvalidSequence}
	}
	if err := n.validator.Validate(msg, head); err != nil {
		return writeResult{err: err}
	}
	if err := n.commit(msg); err != nil {
		if errors.Is(err, store.ErrSequenceConflict) {
			err = feed.ErrInvalidSequence
		}
		return writeResult{err: err}
	}
	n.published(msg, false)
	return writeResult{msg: msg}
}

// commit makes msg and its graph effect durable in one batch, then publishes
// the new graph before the new clock. Readers load the clock first, so they
// never see a committed sequence whose graph effect is missing.
func (n *Node) commit(msg *feed.Message) error {
	if err := n.store.Commit(msg, graph.Assertions(msg)); err != nil {
		return err
	}
	if n.settings.AfterCommit != nil {
		if err := n.settings.AfterCommit(msg); err != nil {
			slog.Error("fatal failure after commit, closing node", "author", msg.Author, "sequence", msg.Sequence, "error", err)
			n.cancel()
			return fmt.Errorf("%w: %w", ErrClosed, err)
		}
	}
	n.edges.Update(msg)
	clock := n.committed().With(msg.Author, msg.Sequence)
	n.clock.Store(&clock)
	return nil
}

// published runs the side effects of a committed message.
func (n *Node) published(msg *feed.Message, local bool) {
	n.events.emit(AppendEvent{Local: local, Message: msg})
	if contact, ok := msg.Contact(); ok && msg.Author == n.token && contact.Flagged != nil && *contact.Flagged {
		for _, s := range n.sessionsWith(contact.Contact) {
			s.logger.Info("closing session with blocked peer")
			s.close()
		}
	}
	n.notifySessions()
}

func (n *Node) rebuild() error {
	set := graph.NewEdgeSet()
	err := n.store.ForEach(func(msg *feed.Message) error {
		set = graph.ApplyContact(set, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not replay graph: %w", err)
	}
	n.edges.Reset(set)
	return nil
}
