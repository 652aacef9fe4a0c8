// Package rendezvous composes UDP discovery with the TCP connection
// runtime: DiscoveringTcpSocket resolves a service name to a live TCP
// connection, and DiscoverableTcpSocket accepts TCP connections while
// advertising its bound port over UDP discovery. Grounded on the
// teacher's cmd/dtnd/configuration.go parseListen/parsePeer wiring,
// which is exactly this same "discovery message describes a port,
// then a convergence layer dials or listens on it" composition, and
// on cla/tcpcl/listener.go's accept-then-advertise shape.
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/netcore/discovery"
	"github.com/dtn7/netcore/tcpconn"
)

// ErrProtocolInvalid is returned when a discovery reply cannot be
// parsed as an ASCII decimal TCP port, per spec §4.5.
var ErrProtocolInvalid = errors.New("rendezvous: discovery reply is not a valid port")

// DialResult is the outcome of one DiscoveringTcpSocket dial attempt.
type DialResult struct {
	Conn net.Conn
	Err  error
}

// DiscoveringTcpSocket resolves identifier to a TCP endpoint via one
// UdpDiscoveryClient exchange, then dials it. Package-level state is
// intentionally minimal: every Dial/DialAsync call runs its own
// discovery exchange rather than sharing one across calls, matching
// spec §4.5's "performs one UdpDiscoveryClient exchange" per attempt.
type DiscoveringTcpSocket struct {
	identifier    string
	udpPort       int
	retryInterval time.Duration
	dialTimeout   time.Duration
}

// NewDiscoveringTcpSocket constructs a resolver for identifier,
// searching on udpPort. retryInterval governs how often the
// discovery request is rebroadcast while waiting for a reply;
// dialTimeout bounds the subsequent TCP connect.
func NewDiscoveringTcpSocket(identifier string, udpPort int, retryInterval, dialTimeout time.Duration) *DiscoveringTcpSocket {
	if retryInterval <= 0 {
		retryInterval = time.Second
	}
	if dialTimeout <= 0 {
		dialTimeout = tcpconn.DefaultDialTimeout
	}
	return &DiscoveringTcpSocket{
		identifier:    identifier,
		udpPort:       udpPort,
		retryInterval: retryInterval,
		dialTimeout:   dialTimeout,
	}
}

// DialAsync starts one discovery exchange, dials the resolved
// address, and reports the outcome on the returned channel exactly
// once. Cancelling ctx before a reply arrives stops the discovery
// client and delivers ctx.Err() as the result.
func (d *DiscoveringTcpSocket) DialAsync(ctx context.Context) <-chan DialResult {
	resultCh := make(chan DialResult, 1)

	done := make(chan struct{})
	var deliverOnce sync.Once
	deliver := func(r DialResult) {
		deliverOnce.Do(func() {
			resultCh <- r
			close(done)
		})
	}

	var client *discovery.Client
	handler := func(reply []byte, sender *net.UDPAddr) bool {
		port, err := strconv.Atoi(string(reply))
		if err != nil {
			deliver(DialResult{Err: fmt.Errorf("%w: %q", ErrProtocolInvalid, reply)})
			return true
		}

		remote := net.JoinHostPort(sender.IP.String(), strconv.Itoa(port))
		conn, dialErr := net.DialTimeout("tcp", remote, d.dialTimeout)
		deliver(DialResult{Conn: conn, Err: dialErr})
		return true
	}

	var err error
	client, err = discovery.NewClient(d.identifier, d.udpPort, d.retryInterval, handler)
	if err != nil {
		deliver(DialResult{Err: err})
		return resultCh
	}

	client.Start()

	go func() {
		select {
		case <-ctx.Done():
			client.Stop()
			deliver(DialResult{Err: ctx.Err()})
		case <-done:
			client.Stop()
		}
	}()

	return resultCh
}

// Dial is the synchronous variant, blocking on DialAsync's future
// until ctx is done or a result arrives.
func (d *DiscoveringTcpSocket) Dial(ctx context.Context) (net.Conn, error) {
	result := <-d.DialAsync(ctx)
	return result.Conn, result.Err
}

// DiscoverableTcpSocket accepts TCP connections on a bound port while
// advertising that port over UDP discovery, composing tcpconn.Server
// with discovery.Server exactly as the teacher's parseListen wires a
// convergence layer's bound port into a discovery.DiscoveryMessage.
type DiscoverableTcpSocket struct {
	tcpServer *tcpconn.Server
	udpServer *discovery.Server
}

// NewDiscoverableTcpSocket binds a TCP acceptor on tcpAddress (port 0
// picks an OS-assigned port), a UDP discovery server on udpPort, and
// registers identifier so discovery requests resolve to the TCP
// acceptor's actual bound port.
func NewDiscoverableTcpSocket(
	tcpAddress string,
	udpPort int,
	identifier string,
	opts tcpconn.Options,
	cb tcpconn.Callbacks,
	onAccept func(*tcpconn.ServerConnection),
) (*DiscoverableTcpSocket, error) {
	tcpServer, err := tcpconn.NewServer(tcpAddress, opts, cb, onAccept)
	if err != nil {
		return nil, err
	}

	udpServer, err := discovery.NewServer(udpPort)
	if err != nil {
		tcpServer.Close()
		return nil, err
	}

	boundPort := tcpServer.Port()
	udpServer.Add(discovery.Discoverable{
		Identifier: identifier,
		ReplyFn: func() []byte {
			return []byte(strconv.Itoa(boundPort))
		},
	})

	return &DiscoverableTcpSocket{tcpServer: tcpServer, udpServer: udpServer}, nil
}

// Port returns the bound TCP acceptor's port.
func (s *DiscoverableTcpSocket) Port() int {
	return s.tcpServer.Port()
}

// Start begins both the TCP accept loop and the UDP discovery
// server, per spec §4.6's "start() starts discovery" (the accept loop
// is started alongside it, since a socket advertised but not yet
// accepting would silently drop connect attempts).
func (s *DiscoverableTcpSocket) Start() {
	s.tcpServer.Start()
	s.udpServer.Start()
}

// Close shuts down both the discovery server and the TCP acceptor,
// aggregating errors from both instead of discarding all but one.
// Already-accepted ServerConnections are unaffected; callers own
// their lifetime individually, matching tcpconn.Server.Close.
func (s *DiscoverableTcpSocket) Close() error {
	var result *multierror.Error
	if err := s.udpServer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.tcpServer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
