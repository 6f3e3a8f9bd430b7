package feed

import (
	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/util"
)

const (
	ContactKind byte = iota + 1
	OtherKind
)

// Content is the tagged payload of a message. Only Contact has meaning for
// replication; any other payload just occupies a sequence slot.
type Content interface {
	Kind() byte
	serialize(data *[]byte)
}

// Contact is the assertion of an author about another feed. Nil fields are
// not asserted and leave the corresponding edge untouched.
type Contact struct {
	Contact   crypto.Token
	Following *bool
	Flagged   *bool
}

func (c Contact) Kind() byte {
	return ContactKind
}

const (
	followingSet byte = 1 << iota
	followingTrue
	flaggedSet
	flaggedTrue
)

func (c Contact) serialize(data *[]byte) {
	util.PutToken(c.Contact, data)
	var flags byte
	if c.Following != nil {
		flags |= followingSet
		if *c.Following {
			flags |= followingTrue
		}
	}
	if c.Flagged != nil {
		flags |= flaggedSet
		if *c.Flagged {
			flags |= flaggedTrue
		}
	}
	util.PutByte(flags, data)
}

func parseContact(data []byte, position int) (Contact, int) {
	var contact Contact
	contact.Contact, position = util.ParseToken(data, position)
	var flags byte
	flags, position = util.ParseByte(data, position)
	if flags&followingSet != 0 {
		following := flags&followingTrue != 0
		contact.Following = &following
	}
	if flags&flaggedSet != 0 {
		flagged := flags&flaggedTrue != 0
		contact.Flagged = &flagged
	}
	return contact, position
}

// Other is an opaque payload.
type Other struct {
	Type string
	Data []byte
}

func (o Other) Kind() byte {
	return OtherKind
}

func (o Other) serialize(data *[]byte) {
	util.PutString(o.Type, data)
	util.PutLongByteArray(o.Data, data)
}

func parseOther(data []byte, position int) (Other, int) {
	var other Other
	other.Type, position = util.ParseString(data, position)
	other.Data, position = util.ParseLongByteArray(data, position)
	return other, position
}

// Follow returns a contact asserting the following edge.
func Follow(token crypto.Token, following bool) Contact {
	return Contact{Contact: token, Following: &following}
}

// Block returns a contact asserting the flagged edge.
func Block(token crypto.Token, flagged bool) Contact {
	return Contact{Contact: token, Flagged: &flagged}
}
