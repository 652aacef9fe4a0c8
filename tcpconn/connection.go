package tcpconn

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/netcore/buffer"
)

// connCallbacks is the internal callback set every connection is
// driven by. ClientConnection and ServerConnection each wrap the
// user-facing Callbacks into one of these, adding their own hooks
// (ClientConnection uses onConnectionLost to trigger reconnection).
type connCallbacks struct {
	onConnectionLost func()
	onKeepAlive      func() (bool, []byte)
}

// connection is the shared runtime backing both ClientConnection and
// ServerConnection: a socket plus two LinearBuffers plus three
// concurrent activities (receive, send, keep-alive), following the
// teacher's cla/tcpcl/client_handler.go handleConnIn/handleConnOut/
// handleMeta split. Where the teacher supervises those activities
// through a fourth "meta" goroutine watching a fan-in channel, this
// keeps the same three activities but coordinates shutdown directly
// through a WaitGroup and a sync.Once-guarded Close, closer to
// cla/soclp/session.go's closeOnce.
type connection struct {
	sock net.Conn

	inbound  *buffer.LinearBuffer
	outbound *buffer.LinearBuffer
	recvMu   sync.Mutex
	sendMu   sync.Mutex

	kick chan struct{}

	keepAliveInterval time.Duration
	cb                connCallbacks

	connected atomic.Bool

	bytesReceived  atomic.Uint64
	bytesSent      atomic.Uint64
	keepAlivesSent atomic.Uint64

	receiveStop chan struct{}
	sendStop    chan struct{}
	kaStop      chan struct{}
	wg          sync.WaitGroup

	closeOnce sync.Once
	lostOnce  sync.Once
}

func newConnection(sock net.Conn, opts Options, cb connCallbacks) *connection {
	opts = opts.withDefaults()

	c := &connection{
		sock:              sock,
		inbound:           buffer.NewLinearBuffer(opts.ReceiveBufferCapacity),
		outbound:          buffer.NewLinearBuffer(opts.SendBufferCapacity),
		kick:              make(chan struct{}, 1),
		keepAliveInterval: opts.KeepAliveInterval,
		cb:                cb,
		receiveStop:       make(chan struct{}),
		sendStop:          make(chan struct{}),
		kaStop:            make(chan struct{}),
	}
	return c
}

// start arms the three activities and marks the connection Connected.
// Must be called at most once per connection instance.
func (c *connection) start() {
	c.connected.Store(true)

	c.wg.Add(3)
	go c.receiveLoop()
	go c.sendLoop()
	go c.keepAliveLoop()
}

// IsConnected reports whether the connection is currently in the
// Connected state.
func (c *connection) IsConnected() bool {
	return c.connected.Load()
}

// Send appends data to the outbound buffer as one contiguous commit
// and wakes the send loop if it is idle. It returns false if the
// outbound buffer lacks the contiguous space to hold data whole,
// mirroring spec §4.7's overrun-is-an-error contract for the caller
// rather than silently truncating.
func (c *connection) Send(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	c.sendMu.Lock()
	ok := c.outbound.Push(data)
	c.sendMu.Unlock()

	if !ok {
		return false
	}

	select {
	case c.kick <- struct{}{}:
	default:
	}
	return true
}

// ReceiveWindow returns the bytes currently available to read from the
// inbound buffer, without consuming them. The returned slice aliases
// the buffer's internal storage and is only valid until the next call
// to Consume or until receiveLoop commits more data; callers that need
// to retain it must copy. Mirrors the original C++'s receive_buffer()
// accessor.
func (c *connection) ReceiveWindow() []byte {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	return c.inbound.ReadWindow()
}

// Consume drops the first n bytes of the inbound buffer, as returned
// by a prior ReceiveWindow call. It reports false, leaving the buffer
// unchanged, if n is negative or exceeds the currently available data.
func (c *connection) Consume(n int) bool {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	return c.inbound.Consume(n)
}

// Stats returns a snapshot of this connection's cumulative counters.
func (c *connection) Stats() Stats {
	return Stats{
		BytesReceived:  c.bytesReceived.Load(),
		BytesSent:      c.bytesSent.Load(),
		KeepAlivesSent: c.keepAlivesSent.Load(),
	}
}

func isAborted(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// receiveLoop continuously fills the inbound buffer's write window
// from the socket. A full buffer with no space to commit into is
// treated as a fatal overrun, per spec §7's edge case for a peer that
// outpaces drainage. Reaching EOF (the peer closed its half of the
// stream) is treated as connection loss, not a silent abort, since
// nothing on our side requested the close.
func (c *connection) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.receiveStop:
			return
		default:
		}

		c.recvMu.Lock()
		window := c.inbound.WriteWindow()
		c.recvMu.Unlock()
		if len(window) == 0 {
			c.fail("receive buffer overrun")
			return
		}

		n, err := c.sock.Read(window)
		if err != nil {
			if isAborted(err) {
				return
			}
			c.fail("receive error: " + err.Error())
			return
		}

		c.recvMu.Lock()
		if c.inbound.AvailableSpace() != len(window) {
			// A concurrent Consume drained the buffer during the read and
			// reset its indices; move the bytes to the new write window.
			copy(c.inbound.WriteWindow(), window[:n])
		}
		c.inbound.Commit(n)
		c.recvMu.Unlock()
		c.bytesReceived.Add(uint64(n))
	}
}

// sendLoop idles on kick until data is pushed, then drains the
// outbound buffer to the socket before going idle again. This
// collapses spec §4.7's "one write, on completion re-arm" cycle into
// a plain drain loop, since Go's blocking net.Conn.Write already
// provides the completion signal the reactor model needed a callback
// for.
func (c *connection) sendLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.sendStop:
			return
		case <-c.kick:
		}

		for {
			c.sendMu.Lock()
			window := c.outbound.ReadWindow()
			c.sendMu.Unlock()

			if len(window) == 0 {
				break
			}

			n, err := c.sock.Write(window)
			if err != nil {
				if isAborted(err) {
					return
				}
				c.fail("send error: " + err.Error())
				return
			}

			c.sendMu.Lock()
			c.outbound.Consume(n)
			c.sendMu.Unlock()
			c.bytesSent.Add(uint64(n))
		}

		select {
		case <-c.sendStop:
			return
		default:
		}
	}
}

// keepAliveLoop fires the keep-alive hook on a fixed tick. A nil
// hook, or a hook declining to send this tick, leaves the timer to
// simply re-arm, per spec §6.
func (c *connection) keepAliveLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.kaStop:
			return
		case <-ticker.C:
			if c.cb.onKeepAlive == nil {
				continue
			}
			shouldSend, data := c.cb.onKeepAlive()
			if shouldSend && len(data) > 0 {
				if c.Send(data) {
					c.keepAlivesSent.Add(1)
				} else {
					log.WithField("component", "tcpconn.connection").Warn("keep-alive dropped, outbound buffer full")
				}
			}
		}
	}
}

// fail is called by an activity that hit an unrecoverable error. It
// tears down the connection asynchronously: calling Close directly
// here would deadlock, since Close waits on this very goroutine's
// wg.Done, which only fires after this function returns.
func (c *connection) fail(reason string) {
	log.WithFields(log.Fields{
		"component": "tcpconn.connection",
		"reason":    reason,
	}).Warn("connection lost")
	go c.Close()
}

// Close cancels all three activities and blocks until they have
// fully unwound, then fires onConnectionLost exactly once. Safe to
// call concurrently and more than once; only the call that closes the
// socket returns the socket's close error.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.receiveStop)
		close(c.sendStop)
		close(c.kaStop)
		err = c.sock.Close()
	})

	c.wg.Wait()

	c.lostOnce.Do(func() {
		c.connected.Store(false)
		if c.cb.onConnectionLost != nil {
			c.cb.onConnectionLost()
		}
	})

	return err
}
