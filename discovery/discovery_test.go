package discovery

import (
	"net"
	"testing"
	"time"
)

const testIdentifier = "database"
const testReply = "127.0.0.1:5432"

func sendUDPRequest(t *testing.T, port int, request string) string {
	t.Helper()

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return ""
	}
	return string(buf[:n])
}

// TestDiscoveryRequest exercises UD1: a request for a registered
// identifier gets exactly one reply.
func TestDiscoveryRequest(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	server.Add(Discoverable{
		Identifier: testIdentifier,
		ReplyFn:    func() []byte { return []byte(testReply) },
	})
	server.Start()

	got := sendUDPRequest(t, server.Port(), testIdentifier)
	if got != testReply {
		t.Fatalf("reply = %q, want %q", got, testReply)
	}
}

// TestDiscoveryUnknownIdentifierIsSilent exercises UD1's zero-reply
// half: unregistered identifiers get no datagram back at all.
func TestDiscoveryUnknownIdentifierIsSilent(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	server.Add(Discoverable{
		Identifier: testIdentifier,
		ReplyFn:    func() []byte { return []byte(testReply) },
	})
	server.Start()

	got := sendUDPRequest(t, server.Port(), "missing")
	if got != "" {
		t.Fatalf("expected no reply for unknown identifier, got %q", got)
	}
}

// TestDiscoveryEmptyIdentifierIsNormalLookup covers the edge case in
// spec §4.3: an empty identifier is a normal, valid map key.
func TestDiscoveryEmptyIdentifierIsNormalLookup(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	server.Add(Discoverable{
		Identifier: "",
		ReplyFn:    func() []byte { return []byte("empty-key-reply") },
	})
	server.Start()

	got := sendUDPRequest(t, server.Port(), "")
	if got != "empty-key-reply" {
		t.Fatalf("reply = %q, want %q", got, "empty-key-reply")
	}
}

// TestReRegistrationOverwrites checks that a later Add with the same
// identifier replaces the earlier handler.
func TestReRegistrationOverwrites(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	server.Add(Discoverable{Identifier: testIdentifier, ReplyFn: func() []byte { return []byte("first") }})
	server.Add(Discoverable{Identifier: testIdentifier, ReplyFn: func() []byte { return []byte("second") }})
	server.Start()

	got := sendUDPRequest(t, server.Port(), testIdentifier)
	if got != "second" {
		t.Fatalf("reply = %q, want %q (later registration should win)", got, "second")
	}
}

// TestClientDiscoveryHappyPath is scenario 1 from spec §8: the client
// finds the server's reply via broadcast retry.
func TestClientDiscoveryHappyPath(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	server.Add(Discoverable{
		Identifier: testIdentifier,
		ReplyFn:    func() []byte { return []byte(testReply) },
	})
	server.Start()

	result := make(chan string, 1)
	client, err := NewClient(testIdentifier, server.Port(), 200*time.Millisecond, func(reply []byte, _ *net.UDPAddr) bool {
		result <- string(reply)
		return true
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.Start()
	defer client.Stop()

	select {
	case got := <-result:
		if got != testReply {
			t.Fatalf("handler received %q, want %q", got, testReply)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler was never invoked")
	}
}

// TestClientMissingServiceNeverInvokesHandler is scenario 2: searching
// for a service nobody advertises must never satisfy the handler.
func TestClientMissingServiceNeverInvokesHandler(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	server.Add(Discoverable{Identifier: testIdentifier, ReplyFn: func() []byte { return []byte(testReply) }})
	server.Start()

	invoked := make(chan struct{}, 1)
	client, err := NewClient("missing", server.Port(), 200*time.Millisecond, func(_ []byte, _ *net.UDPAddr) bool {
		invoked <- struct{}{}
		return true
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.Start()

	select {
	case <-invoked:
		t.Fatal("handler should never be invoked for an unregistered identifier")
	case <-time.After(time.Second):
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

// TestClientStopIsIdempotent exercises the Client's shutdown contract:
// stopping twice must not panic or block.
func TestClientStopIsIdempotent(t *testing.T) {
	client, err := NewClient(testIdentifier, 54321, 200*time.Millisecond, func(_ []byte, _ *net.UDPAddr) bool { return true })
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.Start()

	if err := client.Stop(); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got: %v", err)
	}
}
