// Package pubsub implements the channel registry used by SUBSCRIBE,
// UNSUBSCRIBE and PUBLISH.
package pubsub

import "sync"

// Mailbox is the per-connection outbound queue pub/sub pushes land in. It
// mirrors the connection's own send queue type so the connection handler
// can multiplex both without a type assertion.
type Mailbox chan []byte

// Registry tracks, per channel, the set of mailboxes currently registered;
// a channel's subscriber count is the size of that set.
type Registry struct {
	mu          sync.Mutex
	subscribers map[string]map[Mailbox]struct{}
}

func NewRegistry() *Registry {
	return &Registry{subscribers: make(map[string]map[Mailbox]struct{})}
}

// Subscribe registers mailbox under channel and returns the number of
// mailboxes now subscribed to that channel.
func (r *Registry) Subscribe(channel string, mailbox Mailbox) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subscribers[channel]
	if !ok {
		set = make(map[Mailbox]struct{})
		r.subscribers[channel] = set
	}
	set[mailbox] = struct{}{}
	return len(set)
}

// Unsubscribe removes mailbox from channel and returns the remaining count.
func (r *Registry) Unsubscribe(channel string, mailbox Mailbox) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subscribers[channel]
	if !ok {
		return 0
	}
	delete(set, mailbox)
	n := len(set)
	if n == 0 {
		delete(r.subscribers, channel)
	}
	return n
}

// UnsubscribeAll removes mailbox from every channel it was registered on,
// for connection cleanup on disconnect.
func (r *Registry) UnsubscribeAll(mailbox Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for channel, set := range r.subscribers {
		if _, ok := set[mailbox]; ok {
			delete(set, mailbox)
			if len(set) == 0 {
				delete(r.subscribers, channel)
			}
		}
	}
}

// Publish attempts a non-blocking send of payload to every subscriber of
// channel and returns the number of subscribers the message was attempted
// against (Redis PUBLISH's return value is the subscriber count, not the
// delivered count). Delivery is best-effort: a full mailbox is skipped,
// never blocked on. A send to a closed mailbox is recovered and skipped;
// Publish does not remove that mailbox, which stays registered until
// Unsubscribe or UnsubscribeAll drops it.
func (r *Registry) Publish(channel string, payload []byte) int {
	r.mu.Lock()
	set, ok := r.subscribers[channel]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	mailboxes := make([]Mailbox, 0, len(set))
	for m := range set {
		mailboxes = append(mailboxes, m)
	}
	n := len(mailboxes)
	r.mu.Unlock()

	for _, m := range mailboxes {
		deliverNonBlocking(m, payload)
	}
	return n
}

func deliverNonBlocking(m Mailbox, payload []byte) {
	defer func() { recover() }() // mailbox may have been closed concurrently
	select {
	case m <- payload:
	default:
	}
}
