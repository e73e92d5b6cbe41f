package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

const separator = "."

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("bad signature")
)

type (
	Signer struct {
		key []byte
	}

	claims struct {
		Username string `json:"username"`
	}
)

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

func (s *Signer) Issue(username string) (string, error) {
	payload, err := json.Marshal(&claims{Username: username})
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + separator + enc.EncodeToString(s.sign(payload)), nil
}

// Verify returns the username the token was issued for.
func (s *Signer) Verify(token string) (string, error) {
	encPayload, encSig, ok := strings.Cut(token, separator)
	if !ok {
		return "", ErrMalformedToken
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(encPayload)
	if err != nil {
		return "", errors.Join(ErrMalformedToken, err)
	}
	sig, err := enc.DecodeString(encSig)
	if err != nil {
		return "", errors.Join(ErrMalformedToken, err)
	}
	if !hmac.Equal(sig, s.sign(payload)) {
		return "", ErrBadSignature
	}
	username := gjson.GetBytes(payload, "username")
	if username.Type != gjson.String {
		return "", ErrMalformedToken
	}
	return username.String(), nil
}

func (s *Signer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
