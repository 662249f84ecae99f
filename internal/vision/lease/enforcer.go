package lease

import (
	"time"

	"github.com/rebar-platform/edgevision/internal/vision/event"
)

// Enforcer gates candidate events against a single active Lease and
// buffers any events produced while offline, for later reconciliation
// against an authoritative online timestamp (spec.md §4.4).
type Enforcer struct {
	signer   Signer
	lease    Lease
	hasLease bool
	buffered []event.Event
}

// NewEnforcer constructs an Enforcer bound to the signer used to verify
// leases it is handed via SetLease.
func NewEnforcer(signer Signer) *Enforcer {
	return &Enforcer{signer: signer}
}

// SetLease installs the active lease, replacing any previous one.
func (en *Enforcer) SetLease(l Lease) {
	en.lease = l
	en.hasLease = true
}

// AcceptEvent reports whether e may be emitted under the currently
// installed lease: the lease must verify and e's timestamp must fall at
// or before the lease's expiry. Accepted events while offline should be
// buffered by the caller via Buffer.
func (en *Enforcer) AcceptEvent(e event.Event) bool {
	if !en.hasLease {
		return false
	}
	if !en.signer.Verify(en.lease) {
		return false
	}
	return en.lease.IsValidAt(e.Timestamp())
}

// Buffer appends an accepted event to the offline buffer, to be replayed
// through ReconcileBufferedEvents once connectivity returns.
func (en *Enforcer) Buffer(e event.Event) {
	en.buffered = append(en.buffered, e)
}

// Buffered returns the current buffer contents without clearing it.
func (en *Enforcer) Buffered() []event.Event {
	return en.buffered
}

// ReconcileBufferedEvents partitions the buffer against the installed
// lease: an event is accepted if the lease verifies and the event's own
// timestamp fell within it, regardless of the lease's state now.
// onlineTimestamp is the authoritative clock reading obtained on
// reconnect; it is recorded for logging and future policy but never
// enters the accept/reject decision. The buffer is cleared
// unconditionally.
func (en *Enforcer) ReconcileBufferedEvents(onlineTimestamp time.Time) (accepted, rejected []event.Event) {
	leaseOK := en.hasLease && en.signer.Verify(en.lease)
	for _, e := range en.buffered {
		if leaseOK && en.lease.IsValidAt(e.Timestamp()) {
			accepted = append(accepted, e)
		} else {
			rejected = append(rejected, e)
		}
	}
	en.buffered = nil
	return accepted, rejected
}
