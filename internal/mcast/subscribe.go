package mcast

import (
	"context"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
)

// Datagram is a multicast DNS datagram received by the transport.
type Datagram struct {
	// Payload is the content of the datagram.  It is not reused by the
	// transport but is shared between the handlers, so it must not be
	// modified.
	Payload []byte

	// Remote is the source of the datagram.
	Remote netip.AddrPort

	// Local is the local address of the socket which received the datagram.
	// It is unspecified for the receiving sockets bound to the wildcard
	// address.
	Local netip.Addr
}

// Handler processes incoming datagrams.
type Handler interface {
	// ServeDatagram processes d.  It is called from the delivery goroutine of
	// the socket which received d, so it should not block for long.  d must
	// not be nil.
	//
	// If it shuts the transport down, it must pass ctx or a context derived
	// from it to [Transport.Shutdown], which then doesn't wait for the
	// delivery goroutines.
	ServeDatagram(ctx context.Context, d *Datagram)
}

// HandlerFunc is a function that implements the [Handler] interface.
type HandlerFunc func(ctx context.Context, d *Datagram)

// type check
var _ Handler = HandlerFunc(nil)

// ServeDatagram implements the [Handler] interface for HandlerFunc.
func (f HandlerFunc) ServeDatagram(ctx context.Context, d *Datagram) {
	f(ctx, d)
}

// subscription is a single registered handler.  Pointers to subscriptions are
// used as their identities, so that the same handler may be subscribed more
// than once.
type subscription struct {
	h Handler
}

// subscribers is a copy-on-write registry of handlers.  Publishing uses the
// current snapshot without locking.
type subscribers struct {
	// mu serializes the writers.
	mu *sync.Mutex

	// list is the current immutable snapshot.
	list *atomic.Pointer[[]*subscription]
}

// newSubscribers returns a new empty registry.
func newSubscribers() (s *subscribers) {
	s = &subscribers{
		mu:   &sync.Mutex{},
		list: &atomic.Pointer[[]*subscription]{},
	}

	s.list.Store(&[]*subscription{})

	return s
}

// add registers h and returns the function removing it.  The returned function
// is safe for concurrent and repeated use.
func (s *subscribers) add(h Handler) (remove func()) {
	sub := &subscription{h: h}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.list.Load()
	next := append(slices.Clip(cur), sub)
	s.list.Store(&next)

	return sync.OnceFunc(func() {
		s.remove(sub)
	})
}

// remove removes sub from the registry, if it's there.
func (s *subscribers) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.list.Load()
	i := slices.Index(cur, sub)
	if i < 0 {
		return
	}

	next := slices.Delete(slices.Clone(cur), i, i+1)
	s.list.Store(&next)
}

// clear removes all handlers.
func (s *subscribers) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list.Store(&[]*subscription{})
}

// snapshot returns the current handlers.  The returned slice must not be
// modified.
func (s *subscribers) snapshot() (subs []*subscription) {
	return *s.list.Load()
}
