package discovery

import (
	"errors"
	"net"

	log "github.com/sirupsen/logrus"
)

// Server listens on one UDP port and dispatches each request datagram
// to the Discoverable whose identifier matches the payload, replying
// with a single unicast datagram to the sender. Requests for unknown
// identifiers are dropped silently, so multiple servers may share a
// subnet without collision.
//
// Registration (Add) is only supported before Start; the map is read
// thereafter without further synchronization, matching the teacher's
// discovery.Manager map-of-handlers lifecycle.
type Server struct {
	conn     *net.UDPConn
	services map[string]Discoverable

	doneCh chan struct{}
}

// NewServer binds a UDP socket on the given port across all
// interfaces. Bind failure is a configuration error, surfaced
// synchronously here rather than from Start.
func NewServer(port int) (*Server, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}

	return &Server{
		conn:     conn,
		services: make(map[string]Discoverable),
		doneCh:   make(chan struct{}),
	}, nil
}

// Port returns the UDP port this server is bound to, useful when the
// caller requested port 0 for an OS-assigned port.
func (s *Server) Port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Add registers a Discoverable by identifier. A later call with the
// same identifier overwrites the earlier registration.
func (s *Server) Add(d Discoverable) {
	s.services[d.Identifier] = d
}

// Start arms the perpetual receive loop in its own goroutine. It
// returns immediately; call Close to stop the loop.
func (s *Server) Start() {
	go s.recvLoop()
}

func (s *Server) recvLoop() {
	defer close(s.doneCh)

	buf := make([]byte, MaxIdentifierLength)
	for {
		n, sender, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.WithField("component", "discovery.Server").Debug("receive aborted, socket closed")
				return
			}

			log.WithFields(log.Fields{
				"component": "discovery.Server",
				"error":     err,
			}).Warn("receive errored, re-arming")
			continue
		}

		identifier := string(buf[:n])
		d, found := s.services[identifier]
		if !found {
			log.WithFields(log.Fields{
				"component":  "discovery.Server",
				"identifier": identifier,
				"peer":       sender,
			}).Debug("no matching discoverable, dropping request")
			continue
		}

		reply := d.ReplyFn()
		if _, err := s.conn.WriteToUDP(reply, sender); err != nil {
			log.WithFields(log.Fields{
				"component":  "discovery.Server",
				"identifier": identifier,
				"peer":       sender,
				"error":      err,
			}).Warn("sending reply failed")
		}
	}
}

// Close cancels the outstanding receive by closing the socket and
// waits for the receive loop to observe the closure and return.
func (s *Server) Close() error {
	err := s.conn.Close()
	<-s.doneCh
	return err
}
