package triggerinput

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesFedLines(t *testing.T) {
	port := NewMockPort()
	port.EnableBlockingReads()
	mux := New[*MockPort](port)

	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	port.Feed("TRIGGER")

	select {
	case line := <-ch:
		assert.Equal(t, "TRIGGER", line)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trigger line")
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	port := NewMockPort()
	port.EnableBlockingReads()
	mux := New[*MockPort](port)

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	port.Feed("PULSE")

	for _, ch := range []chan string{ch1, ch2} {
		select {
		case line := <-ch:
			assert.Equal(t, "PULSE", line)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for pulse on a subscriber")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	port := NewMockPort()
	port.EnableBlockingReads()
	mux := New[*MockPort](port)

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	_, stillOpen := <-ch
	assert.False(t, stillOpen, "channel must be closed on unsubscribe")
}

func TestSendCommandAppendsNewline(t *testing.T) {
	port := NewMockPort()
	mux := New[*MockPort](port)

	require.NoError(t, mux.SendCommand("ARM"))
	assert.Equal(t, "ARM\n", string(port.Written()))
}

func TestCloseClosesSubscriberChannelsAndPort(t *testing.T) {
	port := NewMockPort()
	port.EnableBlockingReads()
	mux := New[*MockPort](port)

	_, ch := mux.Subscribe()
	require.NoError(t, mux.Close())

	_, stillOpen := <-ch
	assert.False(t, stillOpen)

	_, err := port.Read(make([]byte, 1))
	require.Error(t, err)
}
