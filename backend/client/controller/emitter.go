package controller

import (
	"time"

	"github.com/adwski/livepost/backend/client/debounce"
	"github.com/adwski/livepost/backend/protocol"
	"github.com/rs/zerolog"
)

const (
	DefaultContentQuiet = 100 * time.Millisecond
	DefaultCursorQuiet  = 50 * time.Millisecond

	categoryContent = "content"
	categoryCursor  = "cursor"
)

// Emitter turns bursts of local edits and caret moves into at most one
// outbound message per quiet period. Only the state at fire time is sent;
// intermediate states are dropped.
type Emitter struct {
	scheduler *debounce.Scheduler
	transport Transport
	document  Document

	contentQuiet  time.Duration
	cursorQuiet   time.Duration
	cursorEnabled bool

	logger zerolog.Logger
}

func (e *Emitter) ContentChanged() {
	e.scheduler.Schedule(categoryContent, e.contentQuiet, e.sendUpdate)
}

func (e *Emitter) CursorMoved() {
	if !e.cursorEnabled {
		return
	}
	e.scheduler.Schedule(categoryCursor, e.cursorQuiet, e.sendCursor)
}

func (e *Emitter) Stop() {
	e.scheduler.Stop()
}

func (e *Emitter) sendUpdate() {
	if e.transport.Send(protocol.Update(e.document.Text())) {
		e.logger.Trace().Msg("update sent")
	}
}

func (e *Emitter) sendCursor() {
	pos, ok := e.document.Caret()
	if !ok {
		return
	}
	if e.transport.Send(protocol.Cursor(pos)) {
		e.logger.Trace().Int("position", pos).Msg("cursor sent")
	}
}
