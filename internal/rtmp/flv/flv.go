// Package flv implements the FLV container at its interface only: a reader
// that produces an iterator of tagged records (audio, video, script-data),
// each tagged with its millisecond duration, and a small set of header flag
// helpers the writer side (media.Recorder) uses to set has_audio/has_video.
//
// Grounded on the teacher's media.Recorder (the writer half of this same
// container) inverted into a reader, with tag-type classification mirrored
// from media.codec_detector's audio/video tag-id checks.
package flv

import (
	"encoding/binary"
	"io"

	protoerr "github.com/alxayo/go-rtmp/internal/errors"
)

// TagType identifies an FLV tag's payload kind.
type TagType byte

const (
	TagAudio      TagType = 8
	TagVideo      TagType = 9
	TagScriptData TagType = 18
)

// Tag is one fully-read FLV tag: its type, millisecond timestamp (the 24-bit
// field plus the 8-bit timestamp extension reassembled), and raw payload.
type Tag struct {
	Type     TagType
	Duration uint32 // milliseconds, equivalent to the RTMP chunk timestamp
	Payload  []byte
	StreamID uint32
}

const fileHeaderLen = 9
const tagHeaderLen = 11
const prevTagSizeLen = 4

// Reader reads a sequence of Tag records from an FLV-formatted stream,
// starting with the 9-byte file header and the leading PreviousTagSize0.
type Reader struct {
	r         io.Reader
	hasAudio  bool
	hasVideo  bool
	readCount int
}

// NewReader validates the 9-byte FLV file header (signature "FLV", version,
// audio/video flag byte, 4-byte header length) and the following 4-byte
// PreviousTagSize0, returning a Reader positioned at the first tag.
// A missing/incorrect "FLV" signature surfaces as NotFlvContainerError.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [fileHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, protoerr.NewNotFlvContainerError(hdr[:0])
	}
	if hdr[0] != 'F' || hdr[1] != 'L' || hdr[2] != 'V' {
		return nil, protoerr.NewNotFlvContainerError(hdr[:3])
	}
	flags := hdr[4]
	var prevSize [prevTagSizeLen]byte
	if _, err := io.ReadFull(r, prevSize[:]); err != nil {
		return nil, protoerr.NewChunkError("flv.read_header.prev_tag_size", err)
	}
	return &Reader{
		r:        r,
		hasAudio: flags&0x04 != 0,
		hasVideo: flags&0x01 != 0,
	}, nil
}

// HasAudio reports the file header's audio-present flag.
func (r *Reader) HasAudio() bool { return r.hasAudio }

// HasVideo reports the file header's video-present flag.
func (r *Reader) HasVideo() bool { return r.hasVideo }

// Next reads the next tag, or io.EOF once the stream is exhausted cleanly
// (at a tag boundary). An unrecognized tag-type byte surfaces as
// UnknownTagError.
func (r *Reader) Next() (*Tag, error) {
	var hdr [tagHeaderLen]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, protoerr.NewChunkError("flv.next.tag_header", err)
	}
	tagType := TagType(hdr[0])
	switch tagType {
	case TagAudio, TagVideo, TagScriptData:
	default:
		return nil, protoerr.NewUnknownTagError(hdr[0])
	}
	dataSize := uint32(hdr[1])<<16 | uint32(hdr[2])<<8 | uint32(hdr[3])
	ts := uint32(hdr[4])<<16 | uint32(hdr[5])<<8 | uint32(hdr[6])
	ts |= uint32(hdr[7]) << 24
	streamID := uint32(hdr[8])<<16 | uint32(hdr[9])<<8 | uint32(hdr[10])

	payload := make([]byte, dataSize)
	if dataSize > 0 {
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return nil, protoerr.NewChunkError("flv.next.payload", err)
		}
	}
	var prevSize [prevTagSizeLen]byte
	if _, err := io.ReadFull(r.r, prevSize[:]); err != nil {
		return nil, protoerr.NewChunkError("flv.next.prev_tag_size", err)
	}
	r.readCount++
	return &Tag{Type: tagType, Duration: ts, Payload: payload, StreamID: streamID}, nil
}

// HeaderFlags derives the FLV file-header audio/video flag byte from cached
// @setDataFrame/onMetaData metadata, per the container's documented
// interface: has_audio/has_video are derived from whether the metadata
// advertises audiocodecid/videocodecid.
func HeaderFlags(metadata map[string]interface{}) byte {
	var flags byte
	if metadata != nil {
		if _, ok := metadata["audiocodecid"]; ok {
			flags |= 0x04
		}
		if _, ok := metadata["videocodecid"]; ok {
			flags |= 0x01
		}
	}
	return flags
}

// EncodeFileHeader builds the 9-byte FLV file header plus the leading
// PreviousTagSize0, given the audio/video flag byte (see HeaderFlags).
func EncodeFileHeader(flags byte) []byte {
	out := make([]byte, fileHeaderLen+prevTagSizeLen)
	out[0], out[1], out[2] = 'F', 'L', 'V'
	out[3] = 0x01
	out[4] = flags
	binary.BigEndian.PutUint32(out[5:9], fileHeaderLen)
	return out
}
