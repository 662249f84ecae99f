// Package event defines the immutable event record emitted by the vision
// pipeline: identity, timestamp, station, kind, and confidence, with
// construction-time validation and a stable line-delimited serialization
// form.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the kind of physical action an Event describes.
type Type string

const (
	// CUT is emitted by the cut sensor in this repository.
	CUT Type = "CUT"
	// BEND is reserved for a future bending-station sensor; no sensor in
	// scope constructs one.
	BEND Type = "BEND"
)

// ErrInvalidEvent is returned when a field invariant is violated at
// construction or deserialization time.
var ErrInvalidEvent = errors.New("event: invalid event")

// Event is an immutable record of a single completed cut or bend action.
// Once constructed, no field is mutated; callers share it by value.
type Event struct {
	eventID    string
	timestamp  time.Time
	stationID  string
	eventType  Type
	confidence float64
}

// New constructs an Event, validating station_id, event_type, and
// confidence. timestamp is stored truncated to millisecond resolution, the
// floor required by the wire format.
func New(eventID string, timestamp time.Time, stationID string, eventType Type, confidence float64) (Event, error) {
	if stationID == "" {
		return Event{}, fmt.Errorf("%w: station_id must be non-empty", ErrInvalidEvent)
	}
	if eventType != CUT && eventType != BEND {
		return Event{}, fmt.Errorf("%w: event_type %q is not permitted", ErrInvalidEvent, eventType)
	}
	if confidence < 0 || confidence > 1 {
		return Event{}, fmt.Errorf("%w: confidence %v out of [0,1]", ErrInvalidEvent, confidence)
	}
	if eventID == "" {
		return Event{}, fmt.Errorf("%w: event_id must be non-empty", ErrInvalidEvent)
	}
	return Event{
		eventID:    eventID,
		timestamp:  timestamp.UTC().Truncate(time.Millisecond),
		stationID:  stationID,
		eventType:  eventType,
		confidence: confidence,
	}, nil
}

// NewCutEvent constructs a CUT event with a freshly generated event_id.
func NewCutEvent(stationID string, confidence float64, timestamp time.Time) (Event, error) {
	return New(uuid.New().String(), timestamp, stationID, CUT, confidence)
}

// NewBendEvent constructs a BEND event with a freshly generated event_id.
// Stub constructor: no sensor in this repository calls it.
func NewBendEvent(stationID string, confidence float64, timestamp time.Time) (Event, error) {
	return New(uuid.New().String(), timestamp, stationID, BEND, confidence)
}

func (e Event) EventID() string      { return e.eventID }
func (e Event) Timestamp() time.Time { return e.timestamp }
func (e Event) StationID() string    { return e.stationID }
func (e Event) EventType() Type      { return e.eventType }
func (e Event) Confidence() float64  { return e.confidence }

// Record is the stable, full, on-wire serialization of an Event. No hidden
// fields: this struct is the complete contract.
type Record struct {
	EventID    string  `json:"event_id"`
	Timestamp  string  `json:"timestamp"`
	StationID  string  `json:"station_id"`
	EventType  string  `json:"event_type"`
	Confidence float64 `json:"confidence"`
}

// ToRecord produces the stable serialization form, with an ISO-8601
// (RFC3339, millisecond-resolution) timestamp.
func (e Event) ToRecord() Record {
	return Record{
		EventID:    e.eventID,
		Timestamp:  e.timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		StationID:  e.stationID,
		EventType:  string(e.eventType),
		Confidence: e.confidence,
	}
}

// FromRecord reconstructs an Event from its serialization form, applying
// the same validation rules as New.
func FromRecord(r Record) (Event, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrInvalidEvent, r.Timestamp, err)
	}
	return New(r.EventID, ts, r.StationID, Type(r.EventType), r.Confidence)
}

// MarshalLine serializes the Event as a single compact JSON line, without a
// trailing newline.
func (e Event) MarshalLine() ([]byte, error) {
	return json.Marshal(e.ToRecord())
}

// UnmarshalLine reconstructs an Event from a single JSON line.
func UnmarshalLine(line []byte) (Event, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return FromRecord(r)
}
