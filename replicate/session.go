package replicate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/policy"
	"github.com/freehandle/ripple/socket"
	"github.com/freehandle/ripple/vclock"
)

type State int32

const (
	Handshaking State = iota
	Negotiating
	Streaming
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Handshaking:
		return "handshaking"
	case Negotiating:
		return "negotiating"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Session replicates with one remote peer over an authenticated connection.
//
// After the clocks are exchanged, two goroutines run until the connection
// ends: one streams the committed messages the remote lacks and is permitted
// to receive, waking up on every commit; the other hands inbound messages to
// the writer in the order they arrive. The round finishes when each side has
// sent its done frame and every message received before the remote done
// frame is committed.
type Session struct {
	id     ulid.ULID
	node   *Node
	conn   socket.Conn
	remote crypto.Token
	logger *slog.Logger
	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	once   sync.Once

	tracker *vclock.Tracker
	// feeds the remote asked for
	requested vclock.Clock
	// feeds accepted from the remote
	wanted mapset.Set[crypto.Token]

	mu           sync.Mutex
	sentDone     bool
	receivedDone bool
}

func newSession(n *Node, conn socket.Conn) *Session {
	id := ulid.Make()
	ctx, cancel := context.WithCancel(n.ctx)
	return &Session{
		id:      id,
		node:    n,
		conn:    conn,
		remote:  conn.Remote(),
		logger:  slog.With("connection", id.String(), "remote", conn.Remote().Short()),
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		tracker: vclock.NewTracker(),
	}
}

func (s *Session) ID() ulid.ULID {
	return s.id
}

func (s *Session) Remote() crypto.Token {
	return s.remote
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) Close() {
	s.close()
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	s.logger.Debug("session state", "state", state)
}

func (s *Session) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		s.setState(Closed)
		s.cancel()
		s.conn.Shutdown()
		s.node.removeSession(s)
		s.logger.Info("session closed")
	})
}

func (s *Session) run() {
	defer s.close()
	s.logger.Info("session established", "address", s.conn.RemoteAddr())
	s.setState(Negotiating)
	remote, err := s.negotiate()
	if err != nil {
		s.logger.Info("negotiation failed", "error", err)
		return
	}
	s.requested = remote
	s.tracker.Merge(remote)
	s.setState(Streaming)

	group, ctx := errgroup.WithContext(s.ctx)
	stop := context.AfterFunc(ctx, s.conn.Shutdown)
	defer stop()
	group.Go(func() error { return s.receive() })
	group.Go(func() error { return s.stream(ctx) })
	if err := group.Wait(); err != nil && s.ctx.Err() == nil {
		s.logger.Info("session terminated", "error", err)
	}
}

// negotiate sends the local clock over the wanted feeds while it reads the
// remote one.
func (s *Session) negotiate() (vclock.Clock, error) {
	s.wanted = s.node.Wanted()
	committed := s.node.committed()
	local := vclock.New()
	for token := range s.wanted.Iter() {
		local.Set(token, committed.Get(token))
	}
	data, err := encodeClock(local)
	if err != nil {
		return nil, err
	}
	timer := time.AfterFunc(s.node.settings.NegotiationTimeout, s.conn.Shutdown)
	defer timer.Stop()

	var remote vclock.Clock
	var group errgroup.Group
	group.Go(func() error {
		return s.conn.Send(data)
	})
	group.Go(func() error {
		data, err := s.conn.Read()
		if err != nil {
			return err
		}
		f, err := decodeFrame(data)
		if err != nil {
			return err
		}
		if f.Kind != clockFrame {
			return ErrUnexpectedFrame
		}
		remote = f.clock()
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return remote, nil
}

// stream pushes every permitted message the remote lacks, then waits for the
// next commit and does it again.
func (s *Session) stream(ctx context.Context) error {
	for {
		if err := s.push(); err != nil {
			return err
		}
		s.mu.Lock()
		first := !s.sentDone
		s.mu.Unlock()
		if first {
			data, err := encodeDone()
			if err != nil {
				return err
			}
			if err := s.conn.Send(data); err != nil {
				return err
			}
			s.mu.Lock()
			s.sentDone = true
			s.mu.Unlock()
			s.checkFinished()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

// push walks, in ascending order, the committed messages of every requested
// feed beyond what the remote holds. The walk of a feed stops at the first
// message the remote may not receive; a later pass tries again against the
// graph as it stands then.
func (s *Session) push() error {
	clock := s.node.committed()
	for token := range s.requested {
		progress := s.tracker.Progress(token)
		committed := clock.Get(token)
		if committed <= progress {
			continue
		}
		messages, err := s.node.store.Read(token, progress+1, committed)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if s.node.edges.Snapshot().IsBlocked(s.node.token, s.remote) {
				return ErrConnectionDenied
			}
			if !policy.MayRelay(s.node.edges.Snapshot(), s.node.token, msg, s.remote) {
				s.logger.Debug("relay withheld", "author", token.Short(), "sequence", msg.Sequence)
				break
			}
			s.tracker.Permit(token, msg.Sequence)
			data, err := encodeMessage(msg)
			if err != nil {
				return err
			}
			if err := s.conn.Send(data); err != nil {
				return err
			}
			if err := s.tracker.Advance(token, msg.Sequence); err != nil {
				return err
			}
		}
	}
	return nil
}

// receive processes inbound frames in order. Each message is committed
// before the next frame is read.
func (s *Session) receive() error {
	for {
		data, err := s.conn.Read()
		if err != nil {
			return err
		}
		f, err := decodeFrame(data)
		if err != nil {
			return err
		}
		switch f.Kind {
		case messageFrame:
			if err := s.receiveMessage(f.Message); err != nil {
				return err
			}
		case doneFrame:
			s.mu.Lock()
			s.receivedDone = true
			s.mu.Unlock()
			s.checkFinished()
		default:
			return ErrUnexpectedFrame
		}
	}
}

func (s *Session) receiveMessage(data []byte) error {
	msg := feed.ParseMessage(data)
	if msg == nil {
		s.reject(ErrMalformedMessage)
		return nil
	}
	if !s.wanted.Contains(msg.Author) {
		s.logger.Debug("ignoring unwanted feed", "author", msg.Author.Short(), "sequence", msg.Sequence)
		return nil
	}
	result := s.node.write(&writeRequest{remote: msg})
	if result.err != nil {
		if isValidationError(result.err) {
			s.reject(result.err)
			return nil
		}
		return result.err
	}
	// the remote holds what it sends, no need to echo it back
	if s.tracker.Tracks(msg.Author) {
		s.tracker.Merge(vclock.Clock{msg.Author: msg.Sequence})
	}
	return nil
}

func (s *Session) reject(reason error) {
	s.logger.Warn("inbound message rejected", "reason", reason)
	s.node.events.emit(RejectedEvent{Connection: s.id, Remote: s.remote, Reason: reason})
}

func (s *Session) checkFinished() {
	s.mu.Lock()
	finished := s.sentDone && s.receivedDone && s.State() == Streaming && s.tracker.Finished()
	if finished {
		s.setState(Draining)
	}
	s.mu.Unlock()
	if !finished {
		return
	}
	committed := s.node.committed()
	local := vclock.New()
	for token := range s.wanted.Iter() {
		local.Set(token, committed.Get(token))
	}
	clock := s.tracker.Snapshot()
	s.logger.Info("replication finished", "feeds", len(clock))
	s.node.events.emit(FinishEvent{Connection: s.id, Remote: s.remote, Clock: clock, Local: local})
}

func isValidationError(err error) bool {
	return errors.Is(err, feed.ErrInvalidSignature) ||
		errors.Is(err, feed.ErrInvalidSequence) ||
		errors.Is(err, feed.ErrInvalidLinkage) ||
		errors.Is(err, ErrMalformedMessage)
}
