package mcast

import (
	"net"
	"sync"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
)

// sender is a socket bound to a single local address, which sends multicast
// traffic through the interface of that address.
type sender struct {
	conn  net.PacketConn
	laddr *netiface.LocalAddr
	group *net.UDPAddr
	fam   netutil.AddrFamily
}

// newSender returns a new sender for the socket conn bound to la.
func newSender(conn net.PacketConn, la *netiface.LocalAddr) (s *sender) {
	fam := la.Family()

	return &sender{
		conn:  conn,
		laddr: la,
		group: groupUDPAddr(fam, la.Iface.Interface().Name),
		fam:   fam,
	}
}

// senderIndex is the set of senders keyed by their local addresses.
type senderIndex struct {
	mu      *sync.Mutex
	senders map[netiface.Key]*sender

	// ordered are the senders in the order of addition.
	ordered []*sender
}

// newSenderIndex returns a new empty index.
func newSenderIndex() (idx *senderIndex) {
	return &senderIndex{
		mu:      &sync.Mutex{},
		senders: map[netiface.Key]*sender{},
	}
}

// add adds s to the index unless there already is a sender for the same local
// address.  ok is true if s has been added.
func (idx *senderIndex) add(s *sender) (ok bool) {
	k := s.laddr.Key()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok = idx.senders[k]; ok {
		return false
	}

	idx.senders[k] = s
	idx.ordered = append(idx.ordered, s)

	return true
}

// all returns the senders in the order of addition.  The returned slice must
// not be modified.
func (idx *senderIndex) all() (senders []*sender) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.ordered
}

// len returns the number of senders.
func (idx *senderIndex) len() (n int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return len(idx.ordered)
}

// clear removes all senders from the index.  It doesn't close them.
func (idx *senderIndex) clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	clear(idx.senders)
	idx.ordered = nil
}
