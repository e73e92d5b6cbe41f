package headless

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

const mirrorFileMode = 0o644

type ViewConfig struct {
	Logger *zerolog.Logger
	// MirrorPath receives the document on every change. Empty disables
	// mirroring.
	MirrorPath string
}

type View struct {
	mx     sync.Mutex
	mirror string
	text   string
	label  string

	logger zerolog.Logger
}

func NewView(cfg ViewConfig) *View {
	return &View{
		mirror: cfg.MirrorPath,
		logger: cfg.Logger.With().Str("component", "headless-view").Logger(),
	}
}

func (v *View) SetText(text string) {
	v.mx.Lock()
	defer v.mx.Unlock()

	v.text = text
	v.logger.Debug().Int("runes", len([]rune(text))).Msg("document updated")
	if v.mirror == "" {
		return
	}
	if err := os.WriteFile(v.mirror, []byte(text), mirrorFileMode); err != nil {
		v.logger.Error().Err(err).Str("path", v.mirror).Msg("cannot mirror document")
	}
}

func (v *View) SetViewerCount(label string) {
	v.mx.Lock()
	defer v.mx.Unlock()

	if label == v.label {
		return
	}
	v.label = label
	if label == "" {
		v.logger.Info().Msg("nobody watching")
		return
	}
	v.logger.Info().Str("viewers", label).Msg("viewer count changed")
}

func (v *View) Text() string {
	v.mx.Lock()
	defer v.mx.Unlock()
	return v.text
}

func (v *View) Label() string {
	v.mx.Lock()
	defer v.mx.Unlock()
	return v.label
}
