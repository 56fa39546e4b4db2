// Package notifybus implements the typed event multicast used by
// session and sessionmanager to publish session lifecycle facts (§2 C5,
// §6 of SPEC_FULL.md).
//
// It plays the role application.notification.NotificationCenter plays in
// the original sipsimple source: a single process-wide dispatcher that
// fans a named fact out to every interested subscriber. Go has no
// runtime method lookup by string, so subscribers register a plain
// func(Notification) per Kind instead of the original's
// getattr(self, "_handle_"+name) pattern, following the callback-slice
// style pkg/ua_media.uaMediaSession.notifyEvent uses for its own event
// fan-out.
package notifybus

import (
	"sync"
	"time"
)

// Kind identifies a notification type. Names are contractual per §6 of
// spec.md.
type Kind string

const (
	SessionNewIncoming            Kind = "SessionNewIncoming"
	SessionNewOutgoing            Kind = "SessionNewOutgoing"
	SessionGotRingIndication      Kind = "SessionGotRingIndication"
	SessionWillStart              Kind = "SessionWillStart"
	SessionDidStart               Kind = "SessionDidStart"
	SessionChangedState           Kind = "SessionChangedState"
	SessionGotStreamProposal      Kind = "SessionGotStreamProposal"
	SessionAcceptedStreamProposal Kind = "SessionAcceptedStreamProposal"
	SessionRejectedStreamProposal Kind = "SessionRejectedStreamProposal"
	SessionGotHoldRequest         Kind = "SessionGotHoldRequest"
	SessionGotUnholdRequest       Kind = "SessionGotUnholdRequest"
	SessionGotDTMF                Kind = "SessionGotDTMF"
	SessionWillEnd                Kind = "SessionWillEnd"
	SessionDidFail                Kind = "SessionDidFail"
	SessionDidEnd                 Kind = "SessionDidEnd"
)

// Notification is a single published fact. Sender is the *session.Session
// that emitted it (typed as interface{} here to avoid an import cycle
// with the session package); Data carries the kind-specific payload.
type Notification struct {
	Kind      Kind
	Sender    interface{}
	Timestamp time.Time
	Data      interface{}
}

// Handler receives notifications. Per §5 of spec.md, handlers are
// invoked while the emitting session's lock may still be held and MUST
// NOT block.
type Handler func(Notification)

// Bus is a typed multicast. The zero value is not usable; use New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h for notifications of the given kind. It returns
// an unsubscribe function.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
	idx := len(b.handlers[kind]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[kind]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// SubscribeAll registers h for every notification kind published on
// this bus, in publish order.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish fans out n to every subscriber of n.Kind plus every
// catch-all subscriber. Publish is synchronous: it returns only after
// every handler has run, so handlers must be non-blocking (§5).
func (b *Bus) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	b.mu.RLock()
	kindHandlers := append([]Handler(nil), b.handlers[n.Kind]...)
	allHandlers := append([]Handler(nil), b.all...)
	b.mu.RUnlock()

	for _, h := range kindHandlers {
		if h != nil {
			h(n)
		}
	}
	for _, h := range allHandlers {
		if h != nil {
			h(n)
		}
	}
}
