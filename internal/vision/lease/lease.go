// Package lease implements the offline-operation token described in
// spec.md §4.4: a signed window during which a station may emit events
// without central contact, plus an enforcer that gates events against it
// and reconciles a buffer on reconnect.
package lease

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidLease is returned when duration_hours is out of [1, 100] or
// another signer-input problem is detected.
var ErrInvalidLease = errors.New("lease: invalid lease")

const (
	minDurationHours = 1
	maxDurationHours = 100
)

// Lease is an immutable, signed permission to emit events offline for a
// bounded window.
type Lease struct {
	LeaseID       string
	IssuedAt      time.Time
	DurationHours int
	Token         string
}

// ExpiresAt returns issued_at + duration_hours.
func (l Lease) ExpiresAt() time.Time {
	return l.IssuedAt.Add(time.Duration(l.DurationHours) * time.Hour)
}

// IsValidAt reports whether ts falls at or before the lease's expiry.
func (l Lease) IsValidAt(ts time.Time) bool {
	return !ts.After(l.ExpiresAt())
}

// canonicalPayload is the sorted-key JSON payload signed by the HMAC, per
// spec.md §4.4.
type canonicalPayload struct {
	DurationHours int    `json:"duration_hours"`
	IssuedAt      string `json:"issued_at"`
	LeaseID       string `json:"lease_id"`
}

func payloadBytes(leaseID string, issuedAt time.Time, durationHours int) ([]byte, error) {
	p := canonicalPayload{
		DurationHours: durationHours,
		IssuedAt:      issuedAt.UTC().Format(time.RFC3339Nano),
		LeaseID:       leaseID,
	}
	return json.Marshal(p)
}

// Signer holds a secret byte string used to sign and verify Leases. The
// secret is held by value and never exposed.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from a secret string.
func NewSigner(secret string) Signer {
	return Signer{secret: []byte(secret)}
}

// Sign produces a Lease for the given fields, computing an HMAC-SHA256
// digest over the canonical JSON payload.
func (s Signer) Sign(leaseID string, issuedAt time.Time, durationHours int) (Lease, error) {
	if durationHours < minDurationHours || durationHours > maxDurationHours {
		return Lease{}, fmt.Errorf("%w: duration_hours must be in [%d, %d], got %d",
			ErrInvalidLease, minDurationHours, maxDurationHours, durationHours)
	}
	payload, err := payloadBytes(leaseID, issuedAt, durationHours)
	if err != nil {
		return Lease{}, fmt.Errorf("%w: %v", ErrInvalidLease, err)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	token := hex.EncodeToString(mac.Sum(nil))
	return Lease{
		LeaseID:       leaseID,
		IssuedAt:      issuedAt.UTC(),
		DurationHours: durationHours,
		Token:         token,
	}, nil
}

// Verify recomputes the expected digest for lease's declared fields and
// compares it against lease.Token using a constant-time equality check.
func (s Signer) Verify(l Lease) bool {
	expected, err := s.Sign(l.LeaseID, l.IssuedAt, l.DurationHours)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected.Token), []byte(l.Token))
}
