package amf

// ECMA Array (marker 0x08), AKA "mixed array" — used almost exclusively for
// onMetaData payloads (@setDataFrame) where encoders advertise a key/value
// bag with an (often inaccurate) associative-array length hint up front.
// Wire format:
//
//	0x08 | 4-byte big-endian approximate count | object-style key/value pairs | 0x00 0x00 0x09
//
// The count is explicitly advisory per the FFmpeg/FLV ecosystem convention
// this protocol inherited it from — decoders must still read until the
// standard object end marker rather than trusting it, which is what we do
// here (mirroring DecodeObject).

import (
	"encoding/binary"
	"fmt"
	"io"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

const markerEcmaArray = 0x08

// EcmaArray is an ordered key/value sequence matching the wire semantics of
// an AMF0 ECMA Array. We keep it ordered (rather than a map) for the same
// reason as OrderedObject: onMetaData fields are conventionally emitted in a
// fixed order by encoders and some players parse them positionally.
type EcmaArray []Pair

// Get returns the value for key and whether it was present.
func (a EcmaArray) Get(key string) (interface{}, bool) {
	for _, p := range a {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// EncodeEcmaArray writes an AMF0 ECMA Array. The count field is set to
// len(a); readers must not rely on it being accurate per the notes above.
func EncodeEcmaArray(w io.Writer, a EcmaArray) error {
	var hdr [1 + 4]byte
	hdr[0] = markerEcmaArray
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(a)))
	if _, err := w.Write(hdr[:]); err != nil {
		return amferrors.NewAMFError("encode.ecma_array.header.write", err)
	}
	var khdr [2]byte
	for _, p := range a {
		kb := []byte(p.Key)
		if len(kb) > 0xFFFF {
			return amferrors.NewAMFError("encode.ecma_array.key.length", fmt.Errorf("key '%s' length %d exceeds 65535", p.Key, len(kb)))
		}
		binary.BigEndian.PutUint16(khdr[:], uint16(len(kb)))
		if _, err := w.Write(khdr[:]); err != nil {
			return amferrors.NewAMFError("encode.ecma_array.key.length.write", err)
		}
		if len(kb) > 0 {
			if _, err := w.Write(kb); err != nil {
				return amferrors.NewAMFError("encode.ecma_array.key.write", err)
			}
		}
		if err := encodeAny(w, p.Value); err != nil {
			return amferrors.NewAMFError("encode.ecma_array.value", fmt.Errorf("key '%s': %w", p.Key, err))
		}
	}
	if _, err := w.Write([]byte{0x00, 0x00, markerObjectEnd}); err != nil {
		return amferrors.NewAMFError("encode.ecma_array.end.write", err)
	}
	return nil
}

// DecodeEcmaArray decodes an AMF0 ECMA Array. Expects the marker byte
// (0x08) at the current reader position.
func DecodeEcmaArray(r io.Reader) (EcmaArray, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ecma_array.marker.read", err)
	}
	if marker[0] != markerEcmaArray {
		return nil, amferrors.NewInconsistentMarkerError("decode.ecma_array", markerEcmaArray, marker[0])
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ecma_array.count.read", err)
	}
	// Count is advisory; we read key/value pairs until the object end marker.
	var out EcmaArray
	for {
		var klenBuf [2]byte
		if _, err := io.ReadFull(r, klenBuf[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.ecma_array.key.length.read", err)
		}
		klen := binary.BigEndian.Uint16(klenBuf[:])
		if klen == 0 {
			var end [1]byte
			if _, err := io.ReadFull(r, end[:]); err != nil {
				return nil, amferrors.NewAMFError("decode.ecma_array.end.read", err)
			}
			if end[0] != markerObjectEnd {
				return nil, amferrors.NewInconsistentMarkerError("decode.ecma_array.end", markerObjectEnd, end[0])
			}
			break
		}
		keyBytes := make([]byte, klen)
		if _, err := io.ReadFull(r, keyBytes); err != nil {
			return nil, amferrors.NewAMFError("decode.ecma_array.key.read", err)
		}
		key := string(keyBytes)

		var valMarker [1]byte
		if _, err := io.ReadFull(r, valMarker[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.ecma_array.value.marker.read", err)
		}
		val, err := decodeValueWithMarker(valMarker[0], r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.ecma_array.value", fmt.Errorf("key '%s': %w", key, err))
		}
		out = append(out, Pair{Key: key, Value: val})
	}
	return out, nil
}
