// Package replicate runs the replication of feeds between nodes. A Node owns
// the log store, the social graph and the table of open sessions. All changes
// go through a single writer; sessions read committed state concurrently.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/oklog/ulid/v2"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/graph"
	"github.com/freehandle/ripple/policy"
	"github.com/freehandle/ripple/socket"
	"github.com/freehandle/ripple/store"
	"github.com/freehandle/ripple/vclock"
)

type Node struct {
	key       crypto.PrivateKey
	token     crypto.Token
	settings  Settings
	store     *store.Store
	edges     *graph.Index
	clock     atomic.Pointer[vclock.Clock]
	validator *feed.Validator
	requests  chan *writeRequest
	events    *hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu        sync.Mutex
	sessions  map[ulid.ULID]*Session
	listeners []io.Closer
}

// Open opens the store at path and starts a node over it.
func Open(path string, key crypto.PrivateKey, settings Settings) (*Node, error) {
	db, err := store.Open(path, store.Options{})
	if err != nil {
		return nil, err
	}
	node, err := New(key, db, settings)
	if err != nil {
		db.Close()
		return nil, err
	}
	return node, nil
}

// New starts a node over db. The graph and the committed clock are loaded
// from the store. The node takes ownership of db and closes it on Close.
func New(key crypto.PrivateKey, db *store.Store, settings Settings) (*Node, error) {
	records, err := db.Edges()
	if err != nil {
		return nil, fmt.Errorf("could not load edges: %w", err)
	}
	clock, err := db.Clock()
	if err != nil {
		return nil, fmt.Errorf("could not load clock: %w", err)
	}
	validator, err := feed.NewValidator(settings.ValidatorCache)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		key:       key,
		token:     key.PublicKey(),
		settings:  settings,
		store:     db,
		edges:     graph.NewIndex(graph.FromRecords(records)),
		validator: validator,
		requests:  make(chan *writeRequest, settings.WriterQueue),
		events:    newHub(settings.SubscriptionBuffer),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[ulid.ULID]*Session),
	}
	n.clock.Store(&clock)
	n.wg.Add(1)
	go n.writer()
	return n, nil
}

func (n *Node) Token() crypto.Token {
	return n.token
}

// committed returns the committed clock. It must not be modified.
func (n *Node) committed() vclock.Clock {
	return *n.clock.Load()
}

// Clock returns a copy of the committed clock of every stored feed.
func (n *Node) Clock() vclock.Clock {
	return n.committed().Clone()
}

// Graph returns the current snapshot of the social graph.
func (n *Node) Graph() graph.EdgeSet {
	return n.edges.Snapshot()
}

// Read returns the committed messages of feed between from and to, both
// inclusive.
func (n *Node) Read(token crypto.Token, from, to uint64) ([]*feed.Message, error) {
	if committed := n.committed().Get(token); to > committed {
		to = committed
	}
	return n.store.Read(token, from, to)
}

func (n *Node) Subscribe() *Subscription {
	return n.events.subscribe()
}

// Publish appends content to the local feed.
func (n *Node) Publish(content feed.Content) (*feed.Message, error) {
	result := n.write(&writeRequest{local: content})
	return result.msg, result.err
}

func (n *Node) Follow(token crypto.Token, following bool) (*feed.Message, error) {
	return n.Publish(feed.Follow(token, following))
}

// Block publishes a block contact. Open sessions with token are closed when
// flagged is true.
func (n *Node) Block(token crypto.Token, flagged bool) (*feed.Message, error) {
	return n.Publish(feed.Block(token, flagged))
}

// Rebuild replays the graph from the stored messages.
func (n *Node) Rebuild() error {
	return n.write(&writeRequest{rebuild: true}).err
}

// Wanted returns the feeds the node replicates: its own, and those within
// Hops follows not blocked by it.
func (n *Node) Wanted() mapset.Set[crypto.Token] {
	return n.edges.Snapshot().Reachable(n.token, n.settings.Hops)
}

// admit is the admission check of both ends of the handshake.
func (n *Node) admit(remote crypto.Token) error {
	if remote == n.token {
		return ErrSelfConnection
	}
	if err := policy.MayConnect(n.edges.Snapshot(), n.token, remote); err != nil {
		return err
	}
	if n.settings.Firewall != nil {
		return n.settings.Firewall.ValidateConnection(remote)
	}
	return nil
}

// Connect dials a peer and starts a session with it. Addresses starting with
// ws:// or wss:// are dialed as websockets, anything else as TCP. A zero
// token accepts whichever identity answers. The returned session is already
// past the handshake.
func (n *Node) Connect(ctx context.Context, peer socket.TokenAddr) (*Session, error) {
	if n.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if !peer.Token.IsZero() {
		if err := n.admit(peer.Token); err != nil {
			return nil, err
		}
	}
	validator := socket.ValidateFunc(n.admit)
	var conn *socket.SignedConnection
	var err error
	if strings.HasPrefix(peer.Addr, "ws://") || strings.HasPrefix(peer.Addr, "wss://") {
		conn, err = socket.DialWebsocket(ctx, peer.Addr, n.key, peer.Token, validator)
	} else {
		conn, err = socket.Dial(ctx, peer.Addr, n.key, peer.Token, validator)
	}
	if errors.Is(err, socket.ErrConnectionRejected) {
		return nil, fmt.Errorf("%w: %w", ErrConnectionDenied, err)
	}
	if err != nil {
		return nil, err
	}
	return n.start(conn)
}

// Listen accepts TCP sessions on address, until Close.
func (n *Node) Listen(address string) (net.Addr, error) {
	listener, err := socket.Listen(n.ctx, address, n.key, socket.ValidateFunc(n.admit), n.accept)
	if err != nil {
		return nil, err
	}
	n.addListener(listener)
	return listener.Addr(), nil
}

// ListenWebsocket serves websocket sessions at path on address, until Close.
func (n *Node) ListenWebsocket(address, path string) (net.Addr, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(path, socket.WebsocketHandler(n.key, socket.ValidateFunc(n.admit), n.accept))
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("websocket server stopped", "address", address, "error", err)
		}
	}()
	n.addListener(server)
	return listener.Addr(), nil
}

func (n *Node) addListener(listener io.Closer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, listener)
}

func (n *Node) accept(conn *socket.SignedConnection) {
	if _, err := n.start(conn); err != nil {
		slog.Info("could not start session", "remote", conn.Remote(), "error", err)
	}
}

// start registers a session for an authenticated connection and runs it.
func (n *Node) start(conn socket.Conn) (*Session, error) {
	s := newSession(n, conn)
	n.mu.Lock()
	if n.ctx.Err() != nil {
		n.mu.Unlock()
		conn.Shutdown()
		return nil, ErrClosed
	}
	n.sessions[s.id] = s
	n.wg.Add(1)
	n.mu.Unlock()
	// a block committed during the handshake finds no session to close
	if err := policy.MayConnect(n.edges.Snapshot(), n.token, conn.Remote()); err != nil {
		n.removeSession(s)
		n.wg.Done()
		conn.Shutdown()
		return nil, err
	}
	go func() {
		defer n.wg.Done()
		s.run()
	}()
	return s, nil
}

func (n *Node) removeSession(s *Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.sessions, s.id)
}

// Sessions lists the open sessions.
func (n *Node) Sessions() []*Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	sessions := make([]*Session, 0, len(n.sessions))
	for _, s := range n.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func (n *Node) sessionsWith(remote crypto.Token) []*Session {
	sessions := make([]*Session, 0)
	for _, s := range n.Sessions() {
		if s.remote == remote {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func (n *Node) notifySessions() {
	for _, s := range n.Sessions() {
		s.notify()
	}
}

// Done is closed once the node has been shut down, either by Close or by a
// fatal store failure.
func (n *Node) Done() <-chan struct{} {
	return n.ctx.Done()
}

// Close stops listeners, sessions and the writer, then closes the store.
// Committed messages are never rolled back.
func (n *Node) Close() error {
	var err error
	n.once.Do(func() {
		n.mu.Lock()
		n.cancel()
		listeners := n.listeners
		n.listeners = nil
		n.mu.Unlock()
		for _, listener := range listeners {
			listener.Close()
		}
		for _, s := range n.Sessions() {
			s.close()
		}
		n.wg.Wait()
		n.events.close()
		err = n.store.Close()
	})
	return err
}
