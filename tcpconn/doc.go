// Package tcpconn implements the long-lived TCP connection runtime:
// a base connection driving three concurrent activities (receive,
// send, keep-alive) with callback-driven lifecycle, a client variant
// with auto-reconnect, a server-accepted variant, and the accept loop
// that produces server connections.
//
// The design translates spec.md's single-threaded reactor model into
// Go's native concurrency idiom, following the teacher's
// cla/tcpcl/client_handler.go: one goroutine per activity, each
// paired with its own stop channel, coordinated by a WaitGroup and a
// sync.Once-guarded Close so destruction never blocks longer than one
// pending I/O dispatch (closing the socket aborts blocked reads and
// writes immediately).
package tcpconn

import "time"

// Default configuration values, mirroring spec.md §6.
const (
	DefaultReceiveBufferCapacity = 4096
	DefaultSendBufferCapacity    = 4096
	DefaultKeepAliveInterval     = 5 * time.Second
	DefaultDialTimeout           = 5 * time.Second
	DefaultReconnectInterval     = time.Second
)

// Options configures buffer sizes and keep-alive cadence shared by
// both client and server connections.
type Options struct {
	ReceiveBufferCapacity int
	SendBufferCapacity    int
	KeepAliveInterval     time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReceiveBufferCapacity <= 0 {
		o.ReceiveBufferCapacity = DefaultReceiveBufferCapacity
	}
	if o.SendBufferCapacity <= 0 {
		o.SendBufferCapacity = DefaultSendBufferCapacity
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	return o
}

// Callbacks are the user-visible lifecycle hooks per spec.md §6.
type Callbacks struct {
	// OnConnectionLost fires at most once per connection lifetime, when
	// the connection transitions into Disconnected.
	OnConnectionLost func()

	// OnKeepAlive is invoked on every keep-alive tick. Returning
	// (true, bytes) appends bytes to the outbound buffer and kicks the
	// send loop; returning (false, nil) does nothing this tick.
	OnKeepAlive func() (bool, []byte)
}

// Stats is a point-in-time snapshot of a connection's counters. It
// supplements spec.md's minimal contract with the kind of lightweight
// observability the teacher's ConvergenceStatus channel provides,
// adapted here into cumulative counters rather than a stream of
// discrete events.
type Stats struct {
	BytesReceived     uint64
	BytesSent         uint64
	KeepAlivesSent    uint64
	ReconnectAttempts uint32
}
