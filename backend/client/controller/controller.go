package controller

import (
	"context"
	"errors"
	"time"

	"github.com/adwski/livepost/backend/client/debounce"
	"github.com/adwski/livepost/backend/config"
	"github.com/adwski/livepost/backend/model"
	"github.com/adwski/livepost/backend/protocol"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

const defaultEventQueueSize = 256

type (
	Transport interface {
		Run(ctx context.Context) error
		Send(msg protocol.Message) bool
		Messages() <-chan protocol.Message
	}

	View interface {
		SetText(text string)
		SetViewerCount(label string)
	}

	Projector interface {
		Project(offset *int)
	}

	// Document is the author's local document.
	Document interface {
		Text() string
		// Caret returns the caret offset, ok is false when there is no caret
		// inside the document.
		Caret() (offset int, ok bool)
	}

	Config struct {
		Logger    *zerolog.Logger
		Session   config.Session
		Transport Transport
		View      View

		// Projector is used by viewers, it may be nil.
		Projector Projector
		// Document is required for authors.
		Document Document

		// Quiet periods default to DefaultContentQuiet and DefaultCursorQuiet.
		ContentQuiet time.Duration
		CursorQuiet  time.Duration
	}

	// Session is everything one client session owns.
	Session struct {
		config.Session

		transport Transport
		view      View
		projector Projector
		document  Document
	}

	handler func(msg protocol.Message)

	Controller struct {
		session  *Session
		emitter  *Emitter
		handlers map[protocol.Kind]handler
		events   chan func()
		done     chan struct{}

		lastCursor *int

		logger zerolog.Logger
	}
)

func New(cfg Config) *Controller {
	c := &Controller{
		session: &Session{
			Session:   cfg.Session,
			transport: cfg.Transport,
			view:      cfg.View,
			projector: cfg.Projector,
			document:  cfg.Document,
		},
		events: make(chan func(), defaultEventQueueSize),
		done:   make(chan struct{}),
		logger: cfg.Logger.With().
			Str("component", "controller").
			Str("role", cfg.Session.Role.String()).
			Logger(),
	}

	if c.session.Role == model.RoleAuthor {
		c.handlers = c.authorHandlers()
		c.emitter = &Emitter{
			scheduler:     debounce.NewScheduler(c.Post),
			transport:     cfg.Transport,
			document:      cfg.Document,
			contentQuiet:  orDefault(cfg.ContentQuiet, DefaultContentQuiet),
			cursorQuiet:   orDefault(cfg.CursorQuiet, DefaultCursorQuiet),
			cursorEnabled: cfg.Session.Cursor,
			logger:        c.logger,
		}
	} else {
		c.handlers = c.viewerHandlers()
	}
	return c
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// The author's document is the source of truth, so content, update and
// cursor messages are never applied to it.
func (c *Controller) authorHandlers() map[protocol.Kind]handler {
	return map[protocol.Kind]handler{
		protocol.KindViewerCount: c.showViewerCount,
	}
}

func (c *Controller) viewerHandlers() map[protocol.Kind]handler {
	handlers := map[protocol.Kind]handler{
		protocol.KindContent:     c.render,
		protocol.KindUpdate:      c.render,
		protocol.KindViewerCount: c.showViewerCount,
	}
	if c.session.Cursor && c.session.projector != nil {
		handlers[protocol.KindCursor] = c.project
	}
	return handlers
}

// Run processes inbound messages, debounce firings and posted local events
// until ctx is done or the transport gives up. The transport is only started
// for live sessions.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	if c.emitter != nil {
		defer c.emitter.Stop()
	}

	var (
		messages <-chan protocol.Message
		errc     chan error
		err      error
	)
	if c.session.Live {
		messages = c.session.transport.Messages()
		errc = make(chan error, 1)
		go func() {
			errc <- c.session.transport.Run(ctx)
		}()
		c.logger.Info().Msg("live session started")
	} else {
		c.logger.Info().Msg("live updates disabled, static view")
	}

EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case err = <-errc:
			errc = nil
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("transport stopped")
			}
			break EventLoop
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			c.Dispatch(msg)
		case fn := <-c.events:
			fn()
		}
	}

	if errc != nil {
		err = <-errc
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Post schedules fn on the event loop. It never blocks once Run returned.
func (c *Controller) Post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// Dispatch handles one inbound message. Kinds without a handler for the
// session's role are ignored.
func (c *Controller) Dispatch(msg protocol.Message) {
	if e := c.logger.Trace(); e.Enabled() {
		e.Str("message", spew.Sdump(msg)).Msg("inbound message")
	}

	h, ok := c.handlers[msg.Kind]
	if !ok {
		c.logger.Debug().Str("type", string(msg.Kind)).Msg("message ignored")
		return
	}
	h(msg)
}

// ContentChanged records a local edit by the author.
func (c *Controller) ContentChanged() {
	if c.emitter == nil || !c.session.Live {
		return
	}
	c.emitter.ContentChanged()
}

// CaretMoved records a local caret move by the author.
func (c *Controller) CaretMoved() {
	if c.emitter == nil || !c.session.Live {
		return
	}
	c.emitter.CursorMoved()
}

// Reproject places the cursor indicator again after the layout changed.
func (c *Controller) Reproject() {
	if c.lastCursor == nil || c.session.projector == nil {
		return
	}
	c.session.projector.Project(c.lastCursor)
}

func (c *Controller) render(msg protocol.Message) {
	c.session.view.SetText(msg.Content)
	c.Reproject()
}

func (c *Controller) project(msg protocol.Message) {
	c.lastCursor = msg.Position
	c.session.projector.Project(msg.Position)
}

func (c *Controller) showViewerCount(msg protocol.Message) {
	c.session.view.SetViewerCount(protocol.FormatViewerCount(msg.Count))
}
