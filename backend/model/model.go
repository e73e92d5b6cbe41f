package model

import (
	"errors"
	"fmt"

	"github.com/adwski/livepost/backend/protocol"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is decided once per session. There is exactly one author per document;
// everybody else views.
type Role int

const (
	RoleViewer Role = iota
	RoleAuthor
)

func ParseRole(s string) (Role, error) {
	switch s {
	case "viewer":
		return RoleViewer, nil
	case "author":
		return RoleAuthor, nil
	}
	return RoleViewer, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string {
	if r == RoleAuthor {
		return "author"
	}
	return "viewer"
}

// Decode implements envconfig.Decoder.
func (r *Role) Decode(value string) error {
	role, err := ParseRole(value)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Set implements pflag.Value.
func (r *Role) Set(value string) error {
	return r.Decode(value)
}

func (r *Role) Type() string {
	return "role"
}

// Subscriber is one relay connection to a document.
type Subscriber struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

const defaultWireTXSize = 16

// Wire connects a websocket session to the relay: RX carries what the client
// sent, TX what should be written to it. Evicted is closed when a newer author
// took over the document.
type Wire struct {
	RX      chan protocol.Message
	TX      chan protocol.Message
	Evicted chan struct{}
}

func NewWire() Wire {
	return Wire{
		RX:      make(chan protocol.Message),
		TX:      make(chan protocol.Message, defaultWireTXSize),
		Evicted: make(chan struct{}),
	}
}

// Snapshot is what the relay knows about a document right now.
type Snapshot struct {
	Content string `json:"content"`
	Viewers int    `json:"viewers"`
}
