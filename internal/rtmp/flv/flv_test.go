package flv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	protoerr "github.com/alxayo/go-rtmp/internal/errors"
)

func buildTag(tagType TagType, ts uint32, payload []byte) []byte {
	var hdr [tagHeaderLen]byte
	hdr[0] = byte(tagType)
	dataSize := uint32(len(payload))
	hdr[1] = byte(dataSize >> 16)
	hdr[2] = byte(dataSize >> 8)
	hdr[3] = byte(dataSize)
	hdr[4] = byte(ts >> 16)
	hdr[5] = byte(ts >> 8)
	hdr[6] = byte(ts)
	hdr[7] = byte(ts >> 24)
	var buf bytes.Buffer
	buf.Write(hdr[:])
	buf.Write(payload)
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], uint32(tagHeaderLen)+dataSize)
	buf.Write(sz[:])
	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeFileHeader(0x05))
	buf.Write(buildTag(TagAudio, 0, []byte{0xAF, 0x00}))
	buf.Write(buildTag(TagVideo, 40, []byte{0x17, 0x00}))

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if !r.HasAudio() || !r.HasVideo() {
		t.Fatalf("expected both audio and video flags set")
	}
	tag1, err := r.Next()
	if err != nil {
		t.Fatalf("next 1: %v", err)
	}
	if tag1.Type != TagAudio || tag1.Duration != 0 {
		t.Fatalf("unexpected tag1: %+v", tag1)
	}
	tag2, err := r.Next()
	if err != nil {
		t.Fatalf("next 2: %v", err)
	}
	if tag2.Type != TagVideo || tag2.Duration != 40 {
		t.Fatalf("unexpected tag2: %+v", tag2)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReaderRejectsBadSignature(t *testing.T) {
	buf := bytes.NewBufferString("NOTFLVxxxxxxxx")
	_, err := NewReader(buf)
	var nfe *protoerr.NotFlvContainerError
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFlvContainerError, got %T: %v", err, err)
	}
}

func TestReaderRejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeFileHeader(0x00))
	buf.Write(buildTag(TagType(0x42), 0, []byte{0x01}))
	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	_, err = r.Next()
	var ute *protoerr.UnknownTagError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnknownTagError, got %T: %v", err, err)
	}
}

func TestHeaderFlagsFromMetadata(t *testing.T) {
	cases := []struct {
		meta map[string]interface{}
		want byte
	}{
		{nil, 0x00},
		{map[string]interface{}{"audiocodecid": float64(10)}, 0x04},
		{map[string]interface{}{"videocodecid": float64(7)}, 0x01},
		{map[string]interface{}{"audiocodecid": float64(10), "videocodecid": float64(7)}, 0x05},
	}
	for _, c := range cases {
		if got := HeaderFlags(c.meta); got != c.want {
			t.Errorf("HeaderFlags(%v) = 0x%02x, want 0x%02x", c.meta, got, c.want)
		}
	}
}
