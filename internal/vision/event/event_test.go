package event

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesStationID(t *testing.T) {
	_, err := New("id-1", time.Now(), "", CUT, 0.5)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNewValidatesEventType(t *testing.T) {
	_, err := New("id-1", time.Now(), "station-a", Type("SHEAR"), 0.5)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNewValidatesConfidenceRange(t *testing.T) {
	_, err := New("id-1", time.Now(), "station-a", CUT, 1.5)
	require.ErrorIs(t, err, ErrInvalidEvent)

	_, err = New("id-1", time.Now(), "station-a", CUT, -0.1)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestNewCutEventHasUniqueID(t *testing.T) {
	e1, err := NewCutEvent("station-a", 0.9, time.Now())
	require.NoError(t, err)
	e2, err := NewCutEvent("station-a", 0.9, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, e1.EventID(), e2.EventID())
	assert.Equal(t, CUT, e1.EventType())
}

func TestRoundTripRecord(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 123000000, time.UTC)
	e, err := New("fixed-id", ts, "station-a", CUT, 0.75)
	require.NoError(t, err)

	rec := e.ToRecord()
	got, err := FromRecord(rec)
	require.NoError(t, err)

	if diff := cmp.Diff(e, got, cmp.AllowUnexported(Event{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalUnmarshalLine(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	e, err := New("fixed-id", ts, "station-a", CUT, 0.5)
	require.NoError(t, err)

	line, err := e.MarshalLine()
	require.NoError(t, err)

	got, err := UnmarshalLine(line)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestFromRecordRejectsBadTimestamp(t *testing.T) {
	_, err := FromRecord(Record{
		EventID:    "id",
		Timestamp:  "not-a-time",
		StationID:  "station-a",
		EventType:  "CUT",
		Confidence: 0.5,
	})
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestTimestampTruncatedToMillisecond(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC)
	e, err := New("id", ts, "station-a", CUT, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(e.Timestamp().Nanosecond()))
}
