package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/adwski/livepost/backend/model"
	"github.com/adwski/livepost/backend/protocol"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	defaultFwdTimout = time.Second
)

type (
	endpoint struct {
		sub  model.Subscriber
		wire model.Wire
	}

	// board holds everybody connected to one document.
	board struct {
		author  *endpoint
		viewers map[string]endpoint
	}

	Switch struct {
		logger zerolog.Logger
		mx     *sync.RWMutex
		fwd    map[string]*board
	}
)

func NewSwitch(logger *zerolog.Logger) *Switch {
	return &Switch{
		logger: logger.With().Str("component", "switch").Logger(),
		mx:     &sync.RWMutex{},
		fwd:    make(map[string]*board),
	}
}

// Connect attaches a subscriber to the document. An author replaces the
// current author, whose wire is evicted.
func (sw *Switch) Connect(docID string, sub model.Subscriber, wire model.Wire) {
	sw.mx.Lock()
	defer sw.mx.Unlock()

	b, ok := sw.fwd[docID]
	if !ok {
		b = &board{viewers: make(map[string]endpoint)}
		sw.fwd[docID] = b
	}

	logger := sw.logger.With().
		Str("docID", docID).
		Str("endpoint", sub.ID).
		Str("role", sub.Role.String()).
		Logger()

	if sub.Role == model.RoleAuthor {
		if b.author != nil {
			close(b.author.wire.Evicted)
			logger.Info().Str("evicted", b.author.sub.ID).Msg("author replaced")
		}
		b.author = &endpoint{sub: sub, wire: wire}
	} else {
		b.viewers[sub.ID] = endpoint{sub: sub, wire: wire}
	}
	logger.Debug().Msg("endpoint connected")
}

func (sw *Switch) Disconnect(docID, subID string) {
	sw.mx.Lock()
	defer func() {
		sw.mx.Unlock()
		sw.logger.Debug().
			Str("docID", docID).
			Str("endpoint", subID).
			Msg("endpoint disconnected")
	}()

	b, ok := sw.fwd[docID]
	if !ok {
		return
	}
	if b.author != nil && b.author.sub.ID == subID {
		b.author = nil
	}
	delete(b.viewers, subID)
	if b.author == nil && len(b.viewers) == 0 {
		delete(sw.fwd, docID)
	}
}

// IsAuthor reports whether subID is the document's current author.
func (sw *Switch) IsAuthor(docID, subID string) bool {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	b, ok := sw.fwd[docID]
	return ok && b.author != nil && b.author.sub.ID == subID
}

// Viewers counts connected viewers, the author is not one of them.
func (sw *Switch) Viewers(docID string) int {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	if b, ok := sw.fwd[docID]; ok {
		return len(b.viewers)
	}
	return 0
}

// Send delivers msg to a single subscriber.
func (sw *Switch) Send(ctx context.Context, docID, subID string, msg protocol.Message) bool {
	targets := sw.targets(docID, func(ep endpoint) bool { return ep.sub.ID == subID })
	return sw.forward(ctx, docID, msg, targets)
}

// ToViewers delivers msg to every viewer of the document.
func (sw *Switch) ToViewers(ctx context.Context, docID string, msg protocol.Message) bool {
	targets := sw.targets(docID, func(ep endpoint) bool { return ep.sub.Role == model.RoleViewer })
	return sw.forward(ctx, docID, msg, targets)
}

// Broadcast delivers msg to the author and every viewer.
func (sw *Switch) Broadcast(ctx context.Context, docID string, msg protocol.Message) bool {
	targets := sw.targets(docID, func(endpoint) bool { return true })
	return sw.forward(ctx, docID, msg, targets)
}

func (sw *Switch) targets(docID string, match func(endpoint) bool) []endpoint {
	sw.mx.RLock()
	defer sw.mx.RUnlock()

	b, ok := sw.fwd[docID]
	if !ok {
		return nil
	}
	all := lo.Values(b.viewers)
	if b.author != nil {
		all = append(all, *b.author)
	}
	return lo.Filter(all, func(ep endpoint, _ int) bool { return match(ep) })
}

func (sw *Switch) forward(ctx context.Context, docID string, msg protocol.Message, targets []endpoint) bool {
	var (
		sent   bool
		logger = sw.logger.With().
			Str("docID", docID).
			Str("type", string(msg.Kind)).
			Logger()
	)
	for _, ep := range targets {
		epSent, canceled := send(ctx, msg, ep, &logger)
		if canceled {
			break
		}
		if epSent {
			sent = true
		}
	}
	if !sent {
		logger.Debug().Msg("message did not reach anyone")
	}
	return sent
}

func send(ctx context.Context, msg protocol.Message, ep endpoint, logger *zerolog.Logger) (bool, bool) {
	var sent, canceled bool
	tCh := time.NewTimer(defaultFwdTimout)
	select {
	case <-ctx.Done():
		canceled = true
	case <-ep.wire.Evicted:
	case <-tCh.C:
		logger.Error().Str("dst", ep.sub.ID).Msg("dead endpoint")
	case ep.wire.TX <- msg:
		logger.Trace().Str("dst", ep.sub.ID).Msg("message is forwarded")
		sent = true
	}
	tCh.Stop()
	return sent, canceled
}
