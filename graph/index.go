package graph

import (
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
)

// Index holds the current edge set. Updates are applied by a single writer and
// published atomically; readers never wait and see either the set before or
// after an update.
type Index struct {
	current atomic.Pointer[EdgeSet]
}

func NewIndex(set EdgeSet) *Index {
	index := &Index{}
	index.current.Store(&set)
	return index
}

func (i *Index) Snapshot() EdgeSet {
	return *i.current.Load()
}

// Update folds msg into the index. It must not be called concurrently.
func (i *Index) Update(msg *feed.Message) {
	next := ApplyContact(i.Snapshot(), msg)
	i.current.Store(&next)
}

// Reset replaces the indexed set, for instance after a replay.
func (i *Index) Reset(set EdgeSet) {
	i.current.Store(&set)
}

func (i *Index) Get(source, dest crypto.Token, kind Kind) (bool, bool) {
	return i.Snapshot().Get(source, dest, kind)
}

func (i *Index) IsBlocked(source, dest crypto.Token) bool {
	return i.Snapshot().IsBlocked(source, dest)
}

// Reachable returns root and every feed reachable from it through at most hops
// follow edges. Feeds blocked by root are never included, nor traversed.
func (s EdgeSet) Reachable(root crypto.Token, hops int) mapset.Set[crypto.Token] {
	reached := mapset.NewThreadUnsafeSet(root)
	frontier := []crypto.Token{root}
	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		next := make([]crypto.Token, 0)
		for _, source := range frontier {
			for _, dest := range s.Follows(source) {
				if reached.Contains(dest) || s.IsBlocked(root, dest) {
					continue
				}
				reached.Add(dest)
				next = append(next, dest)
			}
		}
		frontier = next
	}
	return reached
}
