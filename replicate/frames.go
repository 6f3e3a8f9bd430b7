package replicate

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/vclock"
)

const (
	clockFrame byte = iota + 1
	messageFrame
	doneFrame
)

type clockEntry struct {
	Feed     crypto.Token `msgpack:"f"`
	Sequence uint64       `msgpack:"s"`
}

// frame is the unit exchanged by sessions. Messages travel in their canonical
// signed encoding.
type frame struct {
	Kind    byte         `msgpack:"k"`
	Clock   []clockEntry `msgpack:"c,omitempty"`
	Message []byte       `msgpack:"m,omitempty"`
}

func encodeClock(clock vclock.Clock) ([]byte, error) {
	entries := make([]clockEntry, 0, len(clock))
	for token, sequence := range clock {
		entries = append(entries, clockEntry{Feed: token, Sequence: sequence})
	}
	return msgpack.Marshal(frame{Kind: clockFrame, Clock: entries})
}

func encodeMessage(msg *feed.Message) ([]byte, error) {
	return msgpack.Marshal(frame{Kind: messageFrame, Message: msg.Serialize()})
}

func encodeDone() ([]byte, error) {
	return msgpack.Marshal(frame{Kind: doneFrame})
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return frame{}, err
	}
	if f.Kind < clockFrame || f.Kind > doneFrame {
		return frame{}, ErrUnexpectedFrame
	}
	return f, nil
}

func (f frame) clock() vclock.Clock {
	clock := vclock.New()
	for _, entry := range f.Clock {
		clock.Set(entry.Feed, entry.Sequence)
	}
	return clock
}
