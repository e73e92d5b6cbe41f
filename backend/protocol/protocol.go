package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

type Kind string

const (
	KindGetContent  Kind = "get_content"
	KindContent     Kind = "content"
	KindUpdate      Kind = "update"
	KindCursor      Kind = "cursor"
	KindViewerCount Kind = "viewer_count"
)

// CloseReplaced is the websocket close code the relay uses when a newer author
// took over the document. Clients closed with it do not reconnect.
const CloseReplaced = 4001

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownKind    = errors.New("unknown message kind")
)

// Message is a decoded frame. Only the fields relevant to Kind are meaningful.
type Message struct {
	Kind     Kind
	Content  string
	Position *int // nil means "no cursor"
	Count    int
}

type (
	envelope struct {
		Type Kind `json:"type"`
	}
	contentFrame struct {
		Type    Kind   `json:"type"`
		Content string `json:"content"`
	}
	cursorFrame struct {
		Type     Kind `json:"type"`
		Position *int `json:"position"`
	}
	countFrame struct {
		Type  Kind `json:"type"`
		Count int  `json:"count"`
	}
)

func GetContent() Message { return Message{Kind: KindGetContent} }

func Content(content string) Message { return Message{Kind: KindContent, Content: content} }

func Update(content string) Message { return Message{Kind: KindUpdate, Content: content} }

func Cursor(position int) Message { return Message{Kind: KindCursor, Position: &position} }

func NoCursor() Message { return Message{Kind: KindCursor} }

func ViewerCount(count int) Message { return Message{Kind: KindViewerCount, Count: count} }

// Known reports whether the message kind is part of the protocol.
// Receivers ignore unknown kinds.
func (m Message) Known() bool {
	switch m.Kind {
	case KindGetContent, KindContent, KindUpdate, KindCursor, KindViewerCount:
		return true
	}
	return false
}

func Encode(m Message) ([]byte, error) {
	var v any
	switch m.Kind {
	case KindGetContent:
		v = envelope{Type: m.Kind}
	case KindContent, KindUpdate:
		v = contentFrame{Type: m.Kind, Content: m.Content}
	case KindCursor:
		v = cursorFrame{Type: m.Kind, Position: m.Position}
	case KindViewerCount:
		v = countFrame{Type: m.Kind, Count: m.Count}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return json.Marshal(v)
}

// Decode parses a frame. Frames that are not JSON objects, lack a string type,
// or carry a payload of the wrong shape yield ErrMalformedFrame. Unknown kinds
// are returned as is, without error.
func Decode(frame []byte) (Message, error) {
	if !gjson.ValidBytes(frame) {
		return Message{}, fmt.Errorf("%w: invalid json", ErrMalformedFrame)
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return Message{}, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}
	kind := root.Get("type")
	if kind.Type != gjson.String {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	msg := Message{Kind: Kind(kind.Str)}
	switch msg.Kind {
	case KindContent, KindUpdate:
		var f contentFrame
		if err := json.Unmarshal(frame, &f); err != nil {
			return Message{}, errors.Join(ErrMalformedFrame, err)
		}
		msg.Content = f.Content
	case KindCursor:
		var f cursorFrame
		if err := json.Unmarshal(frame, &f); err != nil {
			return Message{}, errors.Join(ErrMalformedFrame, err)
		}
		msg.Position = f.Position
	case KindViewerCount:
		var f countFrame
		if err := json.Unmarshal(frame, &f); err != nil {
			return Message{}, errors.Join(ErrMalformedFrame, err)
		}
		if f.Count < 0 {
			return Message{}, fmt.Errorf("%w: negative viewer count", ErrMalformedFrame)
		}
		msg.Count = f.Count
	}
	return msg, nil
}

// FormatViewerCount renders the live viewer tally. Zero viewers render as an
// empty label.
func FormatViewerCount(count int) string {
	if count <= 0 {
		return ""
	}
	return strconv.Itoa(count) + " watching"
}
