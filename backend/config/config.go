package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/adwski/livepost/backend/model"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "LIVEPOST"

var ErrInvalidConfig = errors.New("invalid configuration")

// Session is created once at startup and never changes afterwards.
type Session struct {
	Role model.Role `envconfig:"ROLE" default:"viewer"`
	Live bool       `envconfig:"LIVE" default:"true"`

	// TransportURL is the relay's websocket endpoint for the document.
	TransportURL string `envconfig:"URL" default:"ws://localhost:8888/ws/default"`

	// APIURL is the relay's HTTP API. The document snapshot is read from it
	// before the view starts. Empty skips the snapshot.
	APIURL string `envconfig:"API_URL" default:"http://localhost:8080"`

	// Token proves authorship to the relay. Viewers leave it empty.
	Token string `envconfig:"TOKEN"`

	// Cursor enables the cursor capability; relays that never send cursor
	// messages work either way.
	Cursor bool `envconfig:"CURSOR" default:"true"`
}

type Relay struct {
	APIListenAddr string `envconfig:"API_LISTEN_ADDR" default:":8080"`
	WSListenAddr  string `envconfig:"WS_LISTEN_ADDR" default:":8888"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	AdminUsername string `envconfig:"ADMIN_USERNAME"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	SecretKey     string `envconfig:"SECRET_KEY"`
}

func LoadSession() (*Session, error) {
	cfg, err := SessionFromEnv()
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionFromEnv reads the session without validating it, so command line
// flags can be applied on top.
func SessionFromEnv() (*Session, error) {
	_ = godotenv.Load()

	var cfg Session
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Validate checks the session after flags were applied on top of the
// environment.
func (s *Session) Validate() error {
	if s.APIURL != "" {
		u, err := url.Parse(s.APIURL)
		if err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: api url must be http:// or https://, got %q", ErrInvalidConfig, s.APIURL)
		}
	}
	if !s.Live {
		return nil
	}
	u, err := url.Parse(s.TransportURL)
	if err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: transport url must be ws:// or wss://, got %q", ErrInvalidConfig, s.TransportURL)
	}
	if s.Role == model.RoleAuthor && s.Token == "" {
		return fmt.Errorf("%w: author sessions need a token", ErrInvalidConfig)
	}
	return nil
}

// DialURL is the transport URL with the author token attached.
func (s *Session) DialURL() string {
	if s.Token == "" {
		return s.TransportURL
	}
	u, err := url.Parse(s.TransportURL)
	if err != nil {
		return s.TransportURL
	}
	q := u.Query()
	q.Set("token", s.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SnapshotURL is where the current document content is served. The document
// is the last path element of the transport URL. It is empty when either URL
// is missing.
func (s *Session) SnapshotURL() string {
	if s.APIURL == "" {
		return ""
	}
	u, err := url.Parse(s.TransportURL)
	if err != nil {
		return ""
	}
	docID := path.Base(u.Path)
	if docID == "." || docID == "/" {
		return ""
	}
	return strings.TrimSuffix(s.APIURL, "/") + "/api/docs/" + url.PathEscape(docID)
}

func LoadRelay() (*Relay, error) {
	_ = godotenv.Load()

	var cfg Relay
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if cfg.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("cannot generate secret key: %w", err)
		}
		cfg.SecretKey = hex.EncodeToString(key)
	}
	return &cfg, nil
}
