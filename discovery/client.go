package discovery

import (
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handler is invoked once per received reply datagram. Returning true
// tells the Client it is done: no further datagrams are broadcast and
// the receive is not re-armed. Returning false keeps the exchange
// alive so replies from other servers may still arrive.
type Handler func(reply []byte, sender *net.UDPAddr) bool

// Client broadcasts a lookup for Identifier and retransmits it every
// RetryInterval until Handler reports completion or Stop is called.
// Mirrors the teacher's discovery.Manager stopSyn/stopAck shutdown
// idiom, adapted to the request/retry loop spec.md describes.
type Client struct {
	identifier    string
	port          int
	retryInterval time.Duration
	handler       Handler

	conn *net.UDPConn

	doneCh   chan struct{}
	closeMu  sync.Mutex
	closed   bool
	closeErr error
}

// NewClient creates a Client bound to an OS-assigned ephemeral UDP
// port with the broadcast socket option enabled.
func NewClient(identifier string, port int, retryInterval time.Duration, handler Handler) (*Client, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &Client{
		identifier:    identifier,
		port:          port,
		retryInterval: retryInterval,
		handler:       handler,
		conn:          conn,
		doneCh:        make(chan struct{}),
	}, nil
}

// Start begins the exchange: one immediate broadcast, a perpetual
// receive loop, and a retry ticker resending the broadcast on every
// interval. It returns immediately.
func (c *Client) Start() {
	c.broadcast()

	go c.retryLoop()
	go c.recvLoop()
}

func (c *Client) broadcast() {
	target := &net.UDPAddr{IP: net.IPv4bcast, Port: c.port}
	if _, err := c.conn.WriteToUDP([]byte(c.identifier), target); err != nil {
		log.WithFields(log.Fields{
			"component":  "discovery.Client",
			"identifier": c.identifier,
			"error":      err,
		}).Warn("broadcast failed")
	}
}

func (c *Client) retryLoop() {
	ticker := time.NewTicker(c.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.doneCh:
			return
		case <-ticker.C:
			c.broadcast()
		}
	}
}

func (c *Client) recvLoop() {
	buf := make([]byte, MaxIdentifierLength)
	for {
		n, sender, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.WithField("component", "discovery.Client").Debug("receive aborted, socket closed")
				return
			}

			log.WithFields(log.Fields{
				"component": "discovery.Client",
				"error":     err,
			}).Warn("receive errored, re-arming")
			continue
		}

		reply := make([]byte, n)
		copy(reply, buf[:n])

		if c.handler(reply, sender) {
			c.Stop()
			return
		}
	}
}

// Stop cancels the pending receive and the retry timer. It is safe to
// call multiple times and safe to call from the Handler itself.
func (c *Client) Stop() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return c.closeErr
	}
	c.closed = true

	close(c.doneCh)
	c.closeErr = c.conn.Close()
	return c.closeErr
}
