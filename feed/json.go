package feed

import (
	"github.com/freehandle/ripple/util"
)

// JSON renders the message for display. It is not the signed encoding.
func (m *Message) JSON() string {
	bulk := &util.JSONBuilder{}
	bulk.PutHex("author", m.Author[:])
	bulk.PutUint64("sequence", m.Sequence)
	bulk.PutHex("previous", m.Previous[:])
	bulk.PutTime("timestamp", m.Timestamp)
	content := &util.JSONBuilder{}
	switch c := m.Content.(type) {
	case Contact:
		content.PutString("type", "contact")
		content.PutHex("contact", c.Contact[:])
		if c.Following != nil {
			content.PutBool("following", *c.Following)
		}
		if c.Flagged != nil {
			content.PutBool("flagged", *c.Flagged)
		}
	case Other:
		content.PutString("type", c.Type)
		content.PutBase64("data", c.Data)
	}
	bulk.PutJSON("content", content.ToString())
	bulk.PutHex("signature", m.Signature[:])
	return bulk.ToString()
}
