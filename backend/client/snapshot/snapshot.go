package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adwski/livepost/backend/model"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxBodySize = 8 << 20
)

var (
	ErrUnexpectedStatus   = errors.New("unexpected status")
	ErrMalformedResponse  = errors.New("malformed snapshot response")
	ErrSnapshotNotFetched = errors.New("unable to fetch snapshot")
)

type (
	Config struct {
		Logger *zerolog.Logger
		// Client defaults to an http.Client with a short timeout.
		Client *http.Client
	}

	// Fetcher reads the relay's current copy of a document over its HTTP API.
	Fetcher struct {
		client *http.Client
		logger zerolog.Logger
	}
)

func NewFetcher(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Fetcher{
		client: client,
		logger: cfg.Logger.With().Str("component", "snapshot").Logger(),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (model.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Snapshot{}, errors.Join(ErrSnapshotNotFetched, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return model.Snapshot{}, errors.Join(ErrSnapshotNotFetched, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return model.Snapshot{}, fmt.Errorf("%w: %w: %s", ErrSnapshotNotFetched, ErrUnexpectedStatus, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return model.Snapshot{}, errors.Join(ErrSnapshotNotFetched, err)
	}

	content := gjson.GetBytes(body, "data.content")
	if !gjson.ValidBytes(body) || content.Type != gjson.String {
		return model.Snapshot{}, ErrMalformedResponse
	}
	snap := model.Snapshot{
		Content: content.String(),
		Viewers: int(gjson.GetBytes(body, "data.viewers").Int()),
	}
	f.logger.Debug().
		Str("url", url).
		Int("runes", len([]rune(snap.Content))).
		Msg("snapshot fetched")
	return snap, nil
}
