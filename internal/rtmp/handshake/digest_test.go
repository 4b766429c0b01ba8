package handshake

import (
	"net"
	"testing"
	"time"
)

func TestDigestRoundTrip(t *testing.T) {
	var c1 [PacketSize]byte
	if _, err := randRead(c1[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	imprintDigest(c1[:], ClientPartialKey)
	if !didDigestMatch(c1[:], ClientPartialKey) {
		t.Fatalf("digest did not validate against its own key")
	}
	if didDigestMatch(c1[:], ServerPartialKey) {
		t.Fatalf("digest unexpectedly validated against the wrong key")
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	var c1 [PacketSize]byte
	if _, err := randRead(c1[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	imprintDigest(c1[:], ClientPartialKey)
	digest := extractDigest(c1[:])

	var c2 [PacketSize]byte
	if _, err := randRead(c2[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	imprintSignature(c2[:], digest, ClientKey)
	if !didSignatureMatch(c2[:], digest, ClientKey) {
		t.Fatalf("signature did not validate")
	}
	if didSignatureMatch(c2[:], digest, ServerKey) {
		t.Fatalf("signature unexpectedly validated against the wrong key")
	}
}

func TestSignedHandshake_Valid(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- ServerHandshake(serverConn) }()

	if err := ClientHandshakeSigned(clientConn); err != nil {
		t.Fatalf("client signed handshake failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("server failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for server completion")
	}
}

func randRead(b []byte) (int, error) {
	for i := range b {
		b[i] = byte(i * 7 % 251)
	}
	return len(b), nil
}
