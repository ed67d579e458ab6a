// Package auth computes the api-key/api-expires/api-signature headers that
// authenticate a BitMEX REST request.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// Header names attached to every authenticated request.
const (
	HeaderExpires   = "api-expires"
	HeaderKey       = "api-key"
	HeaderSignature = "api-signature"
)

// DefaultGrace is added to the current time to produce the expires value.
const DefaultGrace = 5 * time.Second

// Headers holds the authentication values for a single request.
type Headers struct {
	// Expires is the unix timestamp (seconds) after which the server rejects the request.
	Expires int64
	// APIKey is the public key identifier.
	APIKey string
	// Signature is the lowercase hex HMAC-SHA256 of the request.
	Signature string
}

// Sign returns hex(HMAC_SHA256(secret, verb + pathWithQuery + expires + body)).
//
// verb must be uppercase and pathWithQuery must be the path exactly as sent,
// including "?" and the raw query string when present. body must be the exact
// payload bytes, or empty.
func Sign(secret, verb, pathWithQuery string, expires int64, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(verb))
	h.Write([]byte(pathWithQuery))
	h.Write(strconv.AppendInt(nil, expires, 10))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Expires rounds now to the nearest second and adds grace.
func Expires(now time.Time, grace time.Duration) int64 {
	return now.Round(time.Second).Add(grace).Unix()
}

// NewHeaders signs a request with the given key pair.
func NewHeaders(apiKey, apiSecret, verb, pathWithQuery string, expires int64, body []byte) Headers {
	return Headers{
		Expires:   expires,
		APIKey:    apiKey,
		Signature: Sign(apiSecret, verb, pathWithQuery, expires, body),
	}
}

// Map returns the headers keyed by their wire names.
func (h Headers) Map() map[string]string {
	return map[string]string{
		HeaderExpires:   strconv.FormatInt(h.Expires, 10),
		HeaderKey:       h.APIKey,
		HeaderSignature: h.Signature,
	}
}

// SigningPath reduces an absolute or relative URI to the path and raw query the
// server reconstructs when it verifies the signature. Unparseable input is
// returned unchanged.
func SigningPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
