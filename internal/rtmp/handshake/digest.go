package handshake

// Signed handshake (HMAC-SHA256 digest/signature).
//
// Real-world RTMP clients/servers exchange a "complex" handshake layered on
// top of the plain 1536-byte C1/S1/C2/S2 exchange implemented in types.go
// and server.go/client.go: C1/S1 embed a 32-byte HMAC-SHA256 digest of
// themselves (minus the digest itself) keyed by a short partial key, and
// C2/S2 embed a 32-byte signature over the first 1504 bytes, keyed by an
// HMAC derived from the peer's digest and a longer "full" key. This lets
// each side prove it holds the expected key material without ever putting
// the key on the wire.
//
// Client/server partial keys below follow the well-known Adobe handshake
// key scheme (the fixed ASCII prefixes "Genuine Adobe Flash Player 001" /
// "Genuine Adobe Flash Media Server 001" used by every RTMP stack that
// implements this handshake). The 32-byte binary key extension used by
// real Flash Media Server/Player was not available in the retrieved
// reference material, so it is derived deterministically here via
// SHA-256 of the partial key rather than invented byte-for-byte — this
// keeps the scheme internally consistent (our own client and server
// interoperate) without asserting byte-for-byte compatibility with Adobe's
// proprietary binaries.
//
// Layout of the 1536-byte C1/S1 (signed variant):
//
//	bytes 0-3:    time
//	bytes 4-7:    version
//	bytes 8-771:  key block (764 bytes) — digest offset pointer + digest
//	bytes 772-1535: remainder (not used by the digest computation)
//
// The digest offset is derived from the first 4 bytes of the 764-byte key
// block: offset = (sum of those 4 bytes) % 728 + 4, giving a 32-byte digest
// window fully contained within the block. The digest itself is HMAC-SHA256
// over all 1536 bytes with the 32-byte window zero-length removed (i.e. the
// 1504 remaining bytes), keyed by the relevant partial key.

import (
	"crypto/hmac"
	"crypto/sha256"
)

// ClientPartialKey is the 30-byte Flash Player key prefix used to key the
// digest embedded in C1.
var ClientPartialKey = []byte("Genuine Adobe Flash Player 001")

// ServerPartialKey is the 36-byte Flash Media Server key prefix used to key
// the digest embedded in S1.
var ServerPartialKey = []byte("Genuine Adobe Flash Media Server 001")

// ClientKey is the full client key (partial key + derived extension) used to
// key the signature embedded in C2.
var ClientKey = append(append([]byte{}, ClientPartialKey...), sha256Sum(ClientPartialKey)...)

// ServerKey is the full server key (partial key + derived extension) used to
// key the signature embedded in S2.
var ServerKey = append(append([]byte{}, ServerPartialKey...), sha256Sum(ServerPartialKey)...)

// CommonKey is the shared 32-byte constant mixed into the C2/S2 signature
// derivation, keeping the derived HMAC key distinct from the plain digest
// key even when client and server partial keys happen to collide.
var CommonKey = sha256Sum([]byte("rtmp-signed-handshake-common"))

func sha256Sum(b []byte) []byte {
	s := sha256.Sum256(b)
	return s[:]
}

const digestKeyBlockSize = 764
const digestSize = 32

// digestOffset computes the location (within the 764-byte key block starting
// at byte 8 of the packet) at which the 32-byte digest is embedded.
func digestOffset(packet []byte) int {
	block := packet[8 : 8+digestKeyBlockSize]
	sum := int(block[0]) + int(block[1]) + int(block[2]) + int(block[3])
	return sum%(digestKeyBlockSize-digestSize-4) + 4
}

// imprintDigest computes the HMAC-SHA256 digest of packet (a 1536-byte
// C1/S1) with the 32 bytes at the digest offset excluded, and writes it into
// that window in place. key is the relevant partial key (ClientPartialKey or
// ServerPartialKey).
func imprintDigest(packet []byte, key []byte) {
	off := 8 + digestOffset(packet)
	mac := hmac.New(sha256.New, key)
	mac.Write(packet[:off])
	mac.Write(packet[off+digestSize:])
	sum := mac.Sum(nil)
	copy(packet[off:off+digestSize], sum)
}

// extractDigest returns the 32-byte digest embedded in packet.
func extractDigest(packet []byte) []byte {
	off := 8 + digestOffset(packet)
	out := make([]byte, digestSize)
	copy(out, packet[off:off+digestSize])
	return out
}

// didDigestMatch recomputes the digest over packet (with the embedded
// digest bytes excluded) and compares it against what's embedded.
func didDigestMatch(packet []byte, key []byte) bool {
	off := 8 + digestOffset(packet)
	mac := hmac.New(sha256.New, key)
	mac.Write(packet[:off])
	mac.Write(packet[off+digestSize:])
	expected := mac.Sum(nil)
	return hmac.Equal(expected, packet[off:off+digestSize])
}

// signedSpan is the number of leading bytes of C2/S2 the signature covers
// (the packet minus its own trailing 32-byte signature).
const signedSpan = PacketSize - digestSize

// imprintSignature signs the first signedSpan bytes of packet (a 1536-byte
// C2/S2) using an HMAC key derived from peerDigest (the digest extracted
// from the C1/S1 we're echoing) and fullKey (ClientKey or ServerKey),
// writing the 32-byte signature into the final 32 bytes of packet.
func imprintSignature(packet []byte, peerDigest []byte, fullKey []byte) {
	derived := deriveSignatureKey(peerDigest, fullKey)
	mac := hmac.New(sha256.New, derived)
	mac.Write(packet[:signedSpan])
	sum := mac.Sum(nil)
	copy(packet[signedSpan:], sum)
}

// didSignatureMatch verifies the trailing 32-byte signature of packet
// against the expected derivation.
func didSignatureMatch(packet []byte, peerDigest []byte, fullKey []byte) bool {
	derived := deriveSignatureKey(peerDigest, fullKey)
	mac := hmac.New(sha256.New, derived)
	mac.Write(packet[:signedSpan])
	expected := mac.Sum(nil)
	return hmac.Equal(expected, packet[signedSpan:])
}

func deriveSignatureKey(peerDigest []byte, fullKey []byte) []byte {
	mac := hmac.New(sha256.New, fullKey)
	mac.Write(peerDigest)
	mac.Write(CommonKey)
	return mac.Sum(nil)
}
