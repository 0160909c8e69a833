package pubsub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	r := NewRegistry()
	mb := make(Mailbox, 4)

	require.Equal(t, 1, r.Subscribe("news", mb))
	require.Equal(t, 1, r.Publish("news", []byte("hello")))
	require.Equal(t, []byte("hello"), <-mb)

	require.Equal(t, 0, r.Unsubscribe("news", mb))
	require.Equal(t, 0, r.Publish("news", []byte("gone")))
}

func TestPublishNoSubscribers(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 0, r.Publish("void", []byte("x")))
}

func TestPublishSkipsFullMailboxWithoutBlocking(t *testing.T) {
	r := NewRegistry()
	mb := make(Mailbox, 1)
	mb <- []byte("already-full")
	r.Subscribe("news", mb)

	done := make(chan struct{})
	go func() {
		r.Publish("news", []byte("dropped"))
		close(done)
	}()
	<-done // Publish must return even though mb has no room
}

func TestUnsubscribeAllRemovesFromEveryChannel(t *testing.T) {
	r := NewRegistry()
	mb := make(Mailbox, 1)
	r.Subscribe("a", mb)
	r.Subscribe("b", mb)
	r.UnsubscribeAll(mb)

	require.Equal(t, 0, r.Publish("a", []byte("x")))
	require.Equal(t, 0, r.Publish("b", []byte("x")))
}
