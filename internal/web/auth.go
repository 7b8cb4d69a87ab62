package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Session tokens are HMAC-signed blobs minted out-of-band (or via the dev
// `token` command). Credential issuance proper lives outside this server;
// we only verify.
type signedPayload struct {
	Exp int64  `json:"exp"`
	Sub string `json:"sub"` // user id
	N   string `json:"n,omitempty"`
}

// LoadOrInitSecretKey reads the signing secret, creating one on first use.
func LoadOrInitSecretKey(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("auth: missing secret key path")
	}
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(enc+"\n"), 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func signToken(secret []byte, payload signedPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(p))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return p + "." + sig, nil
}

func verifyToken(secret []byte, token string) (signedPayload, error) {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return signedPayload{}, errors.New("invalid token format")
	}
	p, sig := parts[0], parts[1]

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(p))
	want := mac.Sum(nil)
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(want, got) {
		return signedPayload{}, errors.New("invalid token signature")
	}

	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return signedPayload{}, errors.New("invalid token payload")
	}
	var sp signedPayload
	if err := json.Unmarshal(raw, &sp); err != nil {
		return signedPayload{}, errors.New("invalid token payload")
	}
	if sp.Exp == 0 || time.Now().Unix() > sp.Exp {
		return signedPayload{}, errors.New("token expired")
	}
	if strings.TrimSpace(sp.Sub) == "" {
		return signedPayload{}, errors.New("token missing sub")
	}
	return sp, nil
}

// NewSessionToken mints a signed session token for userID.
func NewSessionToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("auth: missing user id")
	}
	n := make([]byte, 16)
	if _, err := rand.Read(n); err != nil {
		return "", err
	}
	return signToken(secret, signedPayload{
		Sub: userID,
		N:   base64.RawURLEncoding.EncodeToString(n),
		Exp: time.Now().Add(ttl).Unix(),
	})
}

// userForRequest resolves the authenticated user id for a request, accepting
// a bearer header or (for websocket dials, which can't set headers from
// browsers) a token query parameter.
func (s *Server) userForRequest(r *http.Request) (string, error) {
	if s.cfg.AuthMode == AuthModeNone {
		id := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get("user"))
		}
		if id == "" {
			return "", errors.New("missing X-User-Id")
		}
		return id, nil
	}

	token := ""
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			token = strings.TrimSpace(rest)
		}
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return "", errors.New("access token required")
	}
	sp, err := verifyToken(s.secret, token)
	if err != nil {
		return "", err
	}
	return sp.Sub, nil
}
