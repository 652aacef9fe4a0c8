//go:build unix

package discovery

import (
	"net"

	"golang.org/x/sys/unix"
)

// enableBroadcast sets SO_BROADCAST on the socket underlying conn, as
// spec §4.4 requires ("socket option broadcast set"). Go's net package
// does not expose this option directly, so it is reached through the
// raw file descriptor, following the same golang.org/x/sys/unix path
// the teacher's dependency tree already carries for low-level socket
// tuning elsewhere in dtn7-go.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
