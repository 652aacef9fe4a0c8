package tcpconn

import (
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// acceptPollInterval bounds how long Accept blocks before the accept
// loop re-checks its stop channel, following the SetDeadline polling
// idiom in cla/mtcp/server.go and cla/tcpcl/listener.go: net.Listener
// has no cancellable Accept, so a short deadline stands in for one.
const acceptPollInterval = 200 * time.Millisecond

// Server accepts inbound TCP connections and hands each one, already
// started, to a user-supplied callback. Grounded on
// cla/tcpcl/listener.go's accept loop.
type Server struct {
	ln   *net.TCPListener
	opts Options
	cb   Callbacks

	onAccept func(*ServerConnection)

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewServer binds a TCP listener on address ("host:port"; an empty
// host or port 0 lets the OS pick).
func NewServer(address string, opts Options, cb Callbacks, onAccept func(*ServerConnection)) (*Server, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		ln:       ln,
		opts:     opts,
		cb:       cb,
		onAccept: onAccept,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Port returns the bound listener's local port, useful when address
// was given with port 0.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Start begins accepting connections in the background.
func (s *Server) Start() {
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.ln.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			log.WithFields(log.Fields{
				"component": "tcpconn.Server",
				"error":     err,
			}).Error("failed to set accept deadline")
			return
		}

		sock, err := s.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.WithFields(log.Fields{
				"component": "tcpconn.Server",
				"error":     err,
			}).Warn("accept error, continuing")
			continue
		}

		sc := newServerConnection(sock, s.opts, s.cb)
		sc.start()

		if s.onAccept != nil {
			s.onAccept(sc)
		}
	}
}

// Close stops accepting new connections and waits for the accept
// loop to exit. It does not close already-accepted ServerConnections;
// callers own their lifetime individually.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.ln.Close()
	})
	<-s.doneCh
	return err
}
