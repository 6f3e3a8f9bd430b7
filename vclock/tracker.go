package vclock

import (
	"errors"
	"sync"

	"github.com/freehandle/ripple/crypto"
)

var ErrBeyondPermitted = errors.New("progress beyond permitted sequence")

// Tracker follows, for one connection, what the remote peer is believed to
// hold of each feed it asked for, and the highest sequence of each feed the
// remote is permitted to receive.
//
// Progress comes from two sources. Merge records what the remote claims to
// hold, from its clock or from messages it sent, and is not bounded by the
// ceiling. Advance records deliveries and never passes the ceiling.
//
// A feed is settled when the remote progress reached the permitted ceiling.
// The round is finished when every tracked feed is settled.
type Tracker struct {
	mu        sync.Mutex
	progress  Clock
	permitted Clock
}

func NewTracker() *Tracker {
	return &Tracker{
		progress:  New(),
		permitted: New(),
	}
}

// Merge incorporates a snapshot of the remote clock. Every feed of the
// snapshot becomes tracked. Progress never decreases, and may pass the
// permitted ceiling since nothing is delivered.
func (t *Tracker) Merge(remote Clock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for feed, sequence := range remote {
		if sequence > t.progress[feed] {
			t.progress[feed] = sequence
		} else if _, ok := t.progress[feed]; !ok {
			t.progress[feed] = sequence
		}
	}
}

// Tracks reports whether the remote asked for feed.
func (t *Tracker) Tracks(feed crypto.Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.progress[feed]
	return ok
}

func (t *Tracker) Progress(feed crypto.Token) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress[feed]
}

// Permit raises the permitted ceiling of feed to sequence.
func (t *Tracker) Permit(feed crypto.Token, sequence uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sequence > t.permitted[feed] {
		t.permitted[feed] = sequence
	}
}

// Advance records that the remote received feed up to sequence.
func (t *Tracker) Advance(feed crypto.Token, sequence uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sequence > t.permitted[feed] {
		return ErrBeyondPermitted
	}
	if sequence > t.progress[feed] {
		t.progress[feed] = sequence
	}
	return nil
}

// Finished is true when every tracked feed reached its permitted ceiling.
func (t *Tracker) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for feed, permitted := range t.permitted {
		if t.progress[feed] < permitted {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the remote progress.
func (t *Tracker) Snapshot() Clock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.Clone()
}
