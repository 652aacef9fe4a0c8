// Package discovery implements the UDP-based service-discovery
// rendezvous: a UdpDiscoveryServer multiplexing named services over a
// single socket, and a UdpDiscoveryClient that retransmits a lookup
// at a fixed retry interval until its handler is satisfied.
//
// The shape follows the teacher's discovery/manager.go: a small struct
// holding stop/done channel pairs, logging through logrus, and a
// registration map populated before Start is called. Unlike the
// teacher, which layers on top of github.com/schollz/peerdiscovery (a
// periodic multicast-announce library), this package speaks raw UDP
// request/reply directly — peerdiscovery's own framing and gossip
// policy do not fit the one-reply-per-request contract required here.
package discovery

// MaxIdentifierLength is the largest identifier payload this package
// will originate, and also the size of the receive buffer Server and
// Client read incoming datagrams into — a datagram larger than this
// arrives truncated.
const MaxIdentifierLength = 1024

// Discoverable binds a service name to a function producing its reply
// payload. It is an immutable value type; ReplyFn is invoked exactly
// once per matched request.
type Discoverable struct {
	Identifier string
	ReplyFn    func() []byte
}
