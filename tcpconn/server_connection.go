package tcpconn

import "net"

// ServerConnection wraps a socket accepted by Server. It has no
// reconnect logic of its own: once lost, it is done, and the
// accepting Server produces a fresh ServerConnection for the next
// inbound socket, mirroring cla/tcpcl/listener.go's accept-then-hand-
// off shape.
type ServerConnection struct {
	*connection
	remoteAddr net.Addr
}

func newServerConnection(sock net.Conn, opts Options, cb Callbacks) *ServerConnection {
	sc := &ServerConnection{remoteAddr: sock.RemoteAddr()}
	sc.connection = newConnection(sock, opts, connCallbacks{
		onConnectionLost: cb.OnConnectionLost,
		onKeepAlive:      cb.OnKeepAlive,
	})
	return sc
}

// RemoteAddr returns the address of the connected peer.
func (sc *ServerConnection) RemoteAddr() net.Addr {
	return sc.remoteAddr
}
