//go:build !unix

package discovery

import "net"

// enableBroadcast is a no-op on non-unix platforms; this toolkit
// targets LAN embedded/unix deployments per the spec, and Windows'
// equivalent (setsockopt via winsock) is out of scope here.
func enableBroadcast(conn *net.UDPConn) error {
	return nil
}
