package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/adwski/livepost/backend/model"
	"github.com/adwski/livepost/backend/protocol"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIssueToken         = errors.New("unable to issue token")
	ErrEmptyDocument      = errors.New("document id is empty")
)

type (
	DocumentStore interface {
		GetContent(docID string) string
		SetContent(docID, content string)
	}

	Switch interface {
		Connect(docID string, sub model.Subscriber, wire model.Wire)
		Disconnect(docID, subID string)
		IsAuthor(docID, subID string) bool
		Viewers(docID string) int
		Send(ctx context.Context, docID, subID string, msg protocol.Message) bool
		ToViewers(ctx context.Context, docID string, msg protocol.Message) bool
		Broadcast(ctx context.Context, docID string, msg protocol.Message) bool
	}

	TokenSigner interface {
		Issue(username string) (string, error)
		Verify(token string) (string, error)
	}

	Service struct {
		store  DocumentStore
		sw     Switch
		signer TokenSigner

		adminUsername string
		adminPassword string

		logger zerolog.Logger
	}

	Config struct {
		Store  DocumentStore
		Switch Switch
		Signer TokenSigner
		Logger *zerolog.Logger

		// Without an admin username nobody can author.
		AdminUsername string
		AdminPassword string
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:         cfg.Store,
		sw:            cfg.Switch,
		signer:        cfg.Signer,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		logger:        cfg.Logger.With().Str("component", "service").Logger(),
	}
}

// Login returns an author token for the admin credentials.
func (svc *Service) Login(username, password string) (string, error) {
	if svc.adminUsername == "" ||
		subtle.ConstantTimeCompare([]byte(username), []byte(svc.adminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(password), []byte(svc.adminPassword)) != 1 {
		svc.logger.Warn().Str("username", username).Msg("login rejected")
		return "", ErrInvalidCredentials
	}
	token, err := svc.signer.Issue(username)
	if err != nil {
		return "", errors.Join(ErrIssueToken, err)
	}
	svc.logger.Info().Str("username", username).Msg("author logged in")
	return token, nil
}

// Authorize decides the role of a connecting client. Missing or invalid
// tokens make a viewer.
func (svc *Service) Authorize(token string) model.Role {
	if token == "" || svc.adminUsername == "" {
		return model.RoleViewer
	}
	username, err := svc.signer.Verify(token)
	if err != nil {
		svc.logger.Debug().Err(err).Msg("token rejected")
		return model.RoleViewer
	}
	if username != svc.adminUsername {
		return model.RoleViewer
	}
	return model.RoleAuthor
}

func (svc *Service) Snapshot(docID string) model.Snapshot {
	return model.Snapshot{
		Content: svc.store.GetContent(docID),
		Viewers: svc.sw.Viewers(docID),
	}
}

// CreateSession attaches the subscriber to the document and serves its wire
// until ctx is done. The subscriber first gets the current content, then
// everybody gets the new viewer count.
func (svc *Service) CreateSession(ctx context.Context, docID string, sub model.Subscriber, wire model.Wire) error {
	if docID == "" {
		return ErrEmptyDocument
	}
	svc.sw.Connect(docID, sub, wire)
	svc.logger.Debug().
		Str("docID", docID).
		Str("subID", sub.ID).
		Str("role", sub.Role.String()).
		Msg("session created")

	go svc.serve(ctx, docID, sub, wire.RX)
	return nil
}

func (svc *Service) DeleteSession(ctx context.Context, docID, subID string) error {
	svc.sw.Disconnect(docID, subID)
	svc.logger.Debug().
		Str("docID", docID).
		Str("subID", subID).
		Msg("session deleted")

	svc.sw.Broadcast(ctx, docID, protocol.ViewerCount(svc.sw.Viewers(docID)))
	return nil
}

func (svc *Service) serve(ctx context.Context, docID string, sub model.Subscriber, rx <-chan protocol.Message) {
	svc.sw.Send(ctx, docID, sub.ID, protocol.Content(svc.store.GetContent(docID)))
	svc.sw.Broadcast(ctx, docID, protocol.ViewerCount(svc.sw.Viewers(docID)))

ServeLoop:
	for {
		select {
		case <-ctx.Done():
			break ServeLoop
		case msg := <-rx:
			svc.HandleMessage(ctx, docID, sub, msg)
		}
	}
}

// HandleMessage applies one inbound message. Only the current author may
// change the document or move the cursor, anything else from other
// subscribers is ignored.
func (svc *Service) HandleMessage(ctx context.Context, docID string, sub model.Subscriber, msg protocol.Message) {
	logger := svc.logger.With().
		Str("docID", docID).
		Str("subID", sub.ID).
		Str("type", string(msg.Kind)).
		Logger()

	if msg.Kind == protocol.KindGetContent {
		svc.sw.Send(ctx, docID, sub.ID, protocol.Content(svc.store.GetContent(docID)))
		return
	}
	if sub.Role != model.RoleAuthor || !svc.sw.IsAuthor(docID, sub.ID) {
		logger.Debug().Msg("message from non-author ignored")
		return
	}

	switch msg.Kind {
	case protocol.KindUpdate:
		svc.store.SetContent(docID, msg.Content)
		svc.sw.ToViewers(ctx, docID, protocol.Update(msg.Content))
	case protocol.KindCursor:
		svc.sw.ToViewers(ctx, docID, msg)
	default:
		logger.Debug().Msg("message ignored")
	}
}
