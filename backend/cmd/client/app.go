package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/adwski/livepost/backend/client/conn"
	"github.com/adwski/livepost/backend/client/controller"
	"github.com/adwski/livepost/backend/client/cursor"
	"github.com/adwski/livepost/backend/client/headless"
	"github.com/adwski/livepost/backend/client/snapshot"
	"github.com/adwski/livepost/backend/client/terminal"
	"github.com/adwski/livepost/backend/config"
	"github.com/adwski/livepost/backend/model"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const logFileMode = 0o644

var errNoFile = errors.New("headless author needs --file")

type snapshotFetcher interface {
	Fetch(ctx context.Context, url string) (model.Snapshot, error)
}

func newFetcher(logger *zerolog.Logger) *snapshot.Fetcher {
	return snapshot.NewFetcher(snapshot.Config{Logger: logger})
}

// initialText is the document the view starts from. A live author must not
// start from an empty document when the relay holds one, its first edit would
// replace the published text, so a failed fetch ends the author session.
func initialText(ctx context.Context, logger *zerolog.Logger, sess *config.Session, f snapshotFetcher) (string, error) {
	url := sess.SnapshotURL()
	if url == "" {
		return "", nil
	}
	snap, err := f.Fetch(ctx, url)
	if err == nil {
		return snap.Content, nil
	}
	if sess.Live && sess.Role == model.RoleAuthor {
		return "", err
	}
	logger.Warn().Err(err).Msg("document snapshot is not available, starting empty")
	return "", nil
}

type options struct {
	headless bool
	file     string
	out      string
	title    string
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	sess, err := config.SessionFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read environment")
	}

	fs := pflag.NewFlagSet("livepost", pflag.ContinueOnError)
	fs.Var(&sess.Role, "role", "session role, author or viewer")
	fs.BoolVar(&sess.Live, "live", sess.Live, "follow the document live")
	fs.StringVarP(&sess.TransportURL, "url", "u", sess.TransportURL, "relay websocket url of the document")
	fs.StringVarP(&sess.Token, "token", "t", sess.Token, "author token")
	fs.BoolVar(&sess.Cursor, "cursor", sess.Cursor, "share the author's cursor")
	fs.StringVar(&sess.APIURL, "api-url", sess.APIURL, "relay http api, the document snapshot is read from it")

	var (
		opts     options
		logFile  = fs.String("log-file", "livepost.log", "log file used while the terminal is in use")
		logLevel = fs.StringP("log-level", "l", "info", "log level")
	)
	fs.BoolVar(&opts.headless, "headless", false, "run without the terminal ui")
	fs.StringVarP(&opts.file, "file", "f", "", "headless author: publish this file whenever it changes")
	fs.StringVarP(&opts.out, "out", "o", "", "headless viewer: mirror the document to this file")
	fs.StringVar(&opts.title, "title", "livepost", "status line title")
	if err = fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}
	if err = sess.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid session")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	transport := conn.NewManager(conn.Config{
		Logger: &logger,
		URL:    sess.DialURL(),
	})

	if opts.headless || opts.file != "" {
		err = runHeadless(ctx, &logger, sess, transport, opts)
	} else {
		err = runTerminal(ctx, logger, sess, transport, opts, *logFile)
	}
	switch {
	case errors.Is(err, conn.ErrReplaced):
		logger.Warn().Msg("another author session took over the document")
	case err != nil:
		logger.Fatal().Err(err).Msg("session failed")
	}
}

func runHeadless(
	ctx context.Context,
	logger *zerolog.Logger,
	sess *config.Session,
	transport *conn.Manager,
	opts options,
) error {
	view := headless.NewView(headless.ViewConfig{Logger: logger, MirrorPath: opts.out})
	cfg := controller.Config{
		Logger:    logger,
		Session:   *sess,
		Transport: transport,
		View:      view,
	}
	if sess.Role != model.RoleAuthor {
		text, err := initialText(ctx, logger, sess, newFetcher(logger))
		if err != nil {
			return err
		}
		view.SetText(text)
		return controller.New(cfg).Run(ctx)
	}

	// the file is the author's document, the relay copy is replaced by it
	if opts.file == "" {
		return errNoFile
	}
	doc, err := headless.NewFileDocument(headless.DocumentConfig{Logger: logger, Path: opts.file})
	if err != nil {
		return err
	}
	cfg.Document = doc
	ctrl := controller.New(cfg)

	go func() {
		if errW := doc.Watch(ctx, func() { ctrl.Post(ctrl.ContentChanged) }); errW != nil {
			logger.Error().Err(errW).Msg("document is not watched")
		}
	}()
	return ctrl.Run(ctx)
}

func runTerminal(
	ctx context.Context,
	logger zerolog.Logger,
	sess *config.Session,
	transport *conn.Manager,
	opts options,
	logFile string,
) error {
	text, err := initialText(ctx, &logger, sess, newFetcher(&logger))
	if err != nil {
		return err
	}

	// the tty belongs to tcell from now on
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	logger = logger.Output(f)

	tscreen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	screen := terminal.NewScreen(terminal.Config{
		Logger: &logger,
		Screen: tscreen,
		Title:  opts.title,
	})
	if err = screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	cfg := controller.Config{
		Logger:    &logger,
		Session:   *sess,
		Transport: transport,
		View:      screen,
	}
	var editor *terminal.Editor
	if sess.Role == model.RoleAuthor {
		editor = terminal.NewEditor(screen, &logger, text)
		cfg.Document = editor
	} else {
		screen.SetText(text)
		cfg.Projector = cursor.NewProjector(cursor.Config{
			Logger:    &logger,
			Document:  screen,
			Indicator: screen,
		})
	}
	ctrl := controller.New(cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handlers := terminal.Handlers{
		Post:    ctrl.Post,
		Resized: ctrl.Reproject,
		Quit:    cancel,
	}
	if editor != nil {
		handlers.Resized = editor.Reproject
		handlers.Key = func(ev *tcell.EventKey) {
			changed, moved := editor.HandleKey(ev)
			if changed {
				ctrl.ContentChanged()
			}
			if changed || moved {
				ctrl.CaretMoved()
			}
		}
	}
	go screen.Pump(handlers)

	return ctrl.Run(ctx)
}
