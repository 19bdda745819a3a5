package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	DefaultMaxSkew = 30 * time.Second
	nonceBytes     = 16
)

// Reason classifies a failed handshake.
type Reason string

const (
	ReasonMissingNonce   Reason = "missing_nonce"
	ReasonBadTimestamp   Reason = "bad_timestamp"
	ReasonStaleTimestamp Reason = "stale_timestamp"
	ReasonBadHMAC        Reason = "bad_hmac"
)

// Error is returned for every rejected join proof. The connection that sent
// the proof is always closed.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("handshake rejected: %s", e.Reason)
	}
	return fmt.Sprintf("handshake rejected: %s: %s", e.Reason, e.Detail)
}

// NewNonce returns 128 random bits as lowercase hex.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Sign computes the proof a client must present: lowercase hex
// HMAC-SHA256(secret, nonce || preferredID || ts).
func Sign(secret []byte, nonce, preferredID string, ts int64) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(nonce))
	mac.Write([]byte(preferredID))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Proof is the client-supplied part of a join.
type Proof struct {
	PreferredID string
	TS          json.RawMessage
	HMAC        string
}

// Verifier checks join proofs against a shared secret.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

type VerifierOpt func(*Verifier)

// WithMaxSkew sets the allowed distance between client and server clocks.
func WithMaxSkew(d time.Duration) VerifierOpt {
	return func(v *Verifier) {
		v.maxSkew = d
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) VerifierOpt {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(secret []byte, opts ...VerifierOpt) *Verifier {
	v := &Verifier{
		secret:  secret,
		maxSkew: DefaultMaxSkew,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the checks in order: nonce issued, integer timestamp, clock
// skew, then a constant-time HMAC comparison. An empty nonce means none was
// issued or it was already consumed.
func (v *Verifier) Verify(nonce string, p Proof) error {
	if nonce == "" {
		return &Error{Reason: ReasonMissingNonce}
	}

	ts, err := ParseTimestamp(p.TS)
	if err != nil {
		return &Error{Reason: ReasonBadTimestamp, Detail: err.Error()}
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(v.maxSkew/time.Second) {
		return &Error{Reason: ReasonStaleTimestamp, Detail: fmt.Sprintf("skew %ds", skew)}
	}

	expected := Sign(v.secret, nonce, p.PreferredID, ts)
	if !hmac.Equal([]byte(expected), bytes.ToLower([]byte(p.HMAC))) {
		return &Error{Reason: ReasonBadHMAC}
	}

	return nil
}

// ParseTimestamp accepts a JSON integer or a string holding one.
func ParseTimestamp(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("timestamp missing")
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("timestamp %s: %w", raw, err)
		}
	}

	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is not an integer", s)
	}
	return ts, nil
}
