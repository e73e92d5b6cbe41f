package headless

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

var ErrWatch = errors.New("cannot watch document")

type DocumentConfig struct {
	Logger *zerolog.Logger
	Path   string
}

// FileDocument is an author document backed by a file. It has no caret.
type FileDocument struct {
	mx   sync.RWMutex
	path string
	text string

	logger zerolog.Logger
}

// NewFileDocument reads the initial content. A missing file is an empty
// document.
func NewFileDocument(cfg DocumentConfig) (*FileDocument, error) {
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, err
	}
	d := &FileDocument{
		path: path,
		logger: cfg.Logger.With().
			Str("component", "file-document").
			Str("path", path).
			Logger(),
	}
	if _, err = d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDocument) Text() string {
	d.mx.RLock()
	defer d.mx.RUnlock()
	return d.text
}

func (d *FileDocument) Caret() (int, bool) {
	return 0, false
}

// Watch calls onChange after every write that changed the content, until
// ctx is done. The parent directory is watched so editors that replace the
// file by renaming are followed.
func (d *FileDocument) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatch, err)
	}
	defer func() {
		if errC := w.Close(); errC != nil {
			d.logger.Error().Err(errC).Msg("cannot close watcher")
		}
	}()
	if err = w.Add(filepath.Dir(d.path)); err != nil {
		return errors.Join(ErrWatch, err)
	}
	d.logger.Debug().Msg("watching document")

WatchLoop:
	for {
		select {
		case <-ctx.Done():
			break WatchLoop
		case ev, ok := <-w.Events:
			if !ok {
				break WatchLoop
			}
			if filepath.Clean(ev.Name) != d.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			changed, errR := d.reload()
			if errR != nil {
				d.logger.Error().Err(errR).Msg("cannot read document")
				continue
			}
			if changed {
				onChange()
			}
		case errW, ok := <-w.Errors:
			if !ok {
				break WatchLoop
			}
			d.logger.Error().Err(errW).Msg("watcher error")
		}
	}
	return nil
}

func (d *FileDocument) reload() (bool, error) {
	b, err := os.ReadFile(d.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", d.path, err)
	}

	d.mx.Lock()
	defer d.mx.Unlock()
	text := string(b)
	if text == d.text {
		return false, nil
	}
	d.text = text
	return true, nil
}
