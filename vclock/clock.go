// Package vclock tracks per feed progress as vector clocks.
package vclock

import (
	"github.com/freehandle/ripple/crypto"
)

// Clock maps a feed to the highest sequence known to some party. Feeds absent
// from the clock are at sequence zero.
type Clock map[crypto.Token]uint64

func New() Clock {
	return make(Clock)
}

func (c Clock) Get(feed crypto.Token) uint64 {
	return c[feed]
}

func (c Clock) Set(feed crypto.Token, sequence uint64) {
	c[feed] = sequence
}

// Merge raises every entry of c to at least the corresponding entry of other.
func (c Clock) Merge(other Clock) {
	for feed, sequence := range other {
		if sequence > c[feed] {
			c[feed] = sequence
		}
	}
}

func (c Clock) Clone() Clock {
	clone := make(Clock, len(c))
	for feed, sequence := range c {
		clone[feed] = sequence
	}
	return clone
}

// With returns a copy of c with feed set to sequence.
func (c Clock) With(feed crypto.Token, sequence uint64) Clock {
	clone := c.Clone()
	clone[feed] = sequence
	return clone
}
