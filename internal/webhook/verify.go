package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix_seconds>,v0=<hex_hmac>" tokens.
const SignatureHeader = "elevenlabs-signature"

// Tolerance is one-sided: only stale timestamps are rejected. Future-dated
// timestamps pass, matching the provider's documented behavior.
const signatureTolerance = 30 * time.Minute

var (
	ErrMissingSignature   = errors.New("missing signature header")
	ErrMalformedSignature = errors.New("invalid signature format")
	ErrExpiredRequest     = errors.New("request expired")
	ErrMissingSecret      = errors.New("webhook secret not configured")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrMalformedPayload   = errors.New("malformed webhook payload")
)

// ConstructEvent verifies a signed webhook delivery and parses the payload.
// It must be fed the exact bytes as received: the signature covers the raw
// body, so any parse/re-serialize step upstream breaks verification.
//
// Pure function; either a verified Event or a typed rejection, never both.
func ConstructEvent(body []byte, signatureHeader, secret string, now time.Time) (Event, error) {
	if signatureHeader == "" {
		return Event{}, ErrMissingSignature
	}

	var timestamp, signature string
	for _, tok := range strings.Split(signatureHeader, ",") {
		tok = strings.TrimSpace(tok)
		switch {
		case strings.HasPrefix(tok, "t="):
			timestamp = strings.TrimPrefix(tok, "t=")
		case strings.HasPrefix(tok, "v0="):
			signature = tok
		}
	}
	if timestamp == "" || signature == "" {
		return Event{}, ErrMalformedSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return Event{}, ErrMalformedSignature
	}

	if now.UnixMilli()-ts*1000 > signatureTolerance.Milliseconds() {
		return Event{}, ErrExpiredRequest
	}

	if secret == "" {
		return Event{}, ErrMissingSecret
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	digest := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if signature != digest {
		return Event{}, ErrInvalidSignature
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, ErrMalformedPayload
	}
	return ev, nil
}
