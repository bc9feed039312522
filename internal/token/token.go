// Package token issues and verifies short-lived session attachment tokens.
//
// A token is base64url(payload) + "." + base64url(hmac-sha256(payload)),
// where payload is a small JSON document binding a session id to an expiry.
// Tokens are bearer credentials for exactly one session and are minted fresh
// on every listing; nothing about them is persisted.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"
	"time"
)

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = time.Hour

// Claims is the payload bound into a token.
type Claims struct {
	SessionID string `json:"sid"`
	ExpiresAt int64  `json:"exp"`
}

// Codec signs and verifies attachment tokens with a process-wide secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec builds a Codec. The secret comes from AGENTDECK_TOKEN_SECRET when
// set, otherwise a random one is generated; randomly keyed tokens do not
// survive a restart, which is fine because sessions do not either.
func NewCodec(ttl time.Duration) (*Codec, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var secret []byte
	if env := os.Getenv("AGENTDECK_TOKEN_SECRET"); env != "" {
		secret = []byte(env)
	} else {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}

	return &Codec{secret: secret, ttl: ttl, now: time.Now}, nil
}

// NewCodecWithSecret builds a Codec with an explicit secret and clock,
// for tests.
func NewCodecWithSecret(secret []byte, ttl time.Duration, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: secret, ttl: ttl, now: now}
}

// Issue mints a token for sessionID expiring after the codec's TTL.
func (c *Codec) Issue(sessionID string) string {
	claims := Claims{
		SessionID: sessionID,
		ExpiresAt: c.now().Add(c.ttl).Unix(),
	}
	payload, _ := json.Marshal(claims)

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded)
}

// Verify checks a token's signature and expiry. It never panics or returns
// an error: any malformed, tampered, or expired token yields ok == false so
// callers can reject uniformly.
func (c *Codec) Verify(token string) (Claims, bool) {
	encoded, sig, found := strings.Cut(token, ".")
	if !found || encoded == "" || sig == "" {
		return Claims{}, false
	}

	expected := c.sign(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return Claims{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, false
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, false
	}
	if claims.SessionID == "" {
		return Claims{}, false
	}
	if c.now().Unix() >= claims.ExpiresAt {
		return Claims{}, false
	}

	return claims, true
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
