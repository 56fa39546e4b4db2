package notifybus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDispatchesToKindSubscriber(t *testing.T) {
	b := New()
	var got []Notification
	b.Subscribe(SessionDidStart, func(n Notification) { got = append(got, n) })
	b.Subscribe(SessionWillEnd, func(n Notification) { got = append(got, n) })

	b.Publish(Notification{Kind: SessionDidStart, Data: "payload"})

	require := assert.New(t)
	require.Len(got, 1)
	require.Equal(SessionDidStart, got[0].Kind)
	require.Equal("payload", got[0].Data)
	require.False(got[0].Timestamp.IsZero())
}

func TestPublishDispatchesToSubscribeAllInPublishOrder(t *testing.T) {
	b := New()
	var order []string
	b.SubscribeAll(func(n Notification) { order = append(order, "all:"+string(n.Kind)) })
	b.Subscribe(SessionDidStart, func(n Notification) { order = append(order, "kind:"+string(n.Kind)) })

	b.Publish(Notification{Kind: SessionDidStart})
	b.Publish(Notification{Kind: SessionWillEnd})

	assert.Equal(t, []string{"kind:SessionDidStart", "all:SessionDidStart", "all:SessionWillEnd"}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(SessionDidStart, func(n Notification) { calls++ })

	b.Publish(Notification{Kind: SessionDidStart})
	unsub()
	b.Publish(Notification{Kind: SessionDidStart})

	assert.Equal(t, 1, calls)
}

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Publish(Notification{Kind: SessionDidEnd})
	})
}
