package amf

// Ordered Object support.
//
// EncodeObject/DecodeObject (object.go) operate on map[string]interface{},
// which cannot preserve the key order a command object was built with —
// Go map iteration order is randomized. Most of our internal usage doesn't
// care (metadata blobs, test fixtures), but a handful of outbound messages
// (connect's command object, onStatus's info object) are conventionally
// emitted in a fixed field order by real encoders/players and some picky
// clients parse positionally rather than by key. OrderedObject gives those
// call sites a representation that round-trips its field order exactly.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

// Pair is a single key/value entry of an OrderedObject.
type Pair struct {
	Key   string
	Value interface{}
}

// OrderedObject is an AMF0 Object (marker 0x03) that preserves insertion
// order on both encode and decode.
type OrderedObject []Pair

// NewOrderedObject builds an OrderedObject from the given pairs, preserving
// the argument order.
func NewOrderedObject(pairs ...Pair) OrderedObject { return OrderedObject(pairs) }

// Get returns the value for key and whether it was present. Only the first
// match is returned if a key appears more than once.
func (o OrderedObject) Get(key string) (interface{}, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// EncodeOrderedObject writes an AMF0 Object, emitting keys in o's order.
func EncodeOrderedObject(w io.Writer, o OrderedObject) error {
	if _, err := w.Write([]byte{markerObject}); err != nil {
		return amferrors.NewAMFError("encode.ordered_object.marker.write", err)
	}
	var hdr [2]byte
	for _, p := range o {
		kb := []byte(p.Key)
		if len(kb) > 0xFFFF {
			return amferrors.NewAMFError("encode.ordered_object.key.length", fmt.Errorf("key '%s' length %d exceeds 65535", p.Key, len(kb)))
		}
		binary.BigEndian.PutUint16(hdr[:], uint16(len(kb)))
		if _, err := w.Write(hdr[:]); err != nil {
			return amferrors.NewAMFError("encode.ordered_object.key.length.write", err)
		}
		if len(kb) > 0 {
			if _, err := w.Write(kb); err != nil {
				return amferrors.NewAMFError("encode.ordered_object.key.write", err)
			}
		}
		if err := encodeAny(w, p.Value); err != nil {
			return amferrors.NewAMFError("encode.ordered_object.value", fmt.Errorf("key '%s': %w", p.Key, err))
		}
	}
	if _, err := w.Write([]byte{0x00, 0x00, markerObjectEnd}); err != nil {
		return amferrors.NewAMFError("encode.ordered_object.end.write", err)
	}
	return nil
}

// DecodeOrderedObject decodes an AMF0 Object into an OrderedObject,
// preserving wire order. Expects the marker byte (0x03) at the current
// reader position.
func DecodeOrderedObject(r io.Reader) (OrderedObject, error) {
	var mMarker [1]byte
	if _, err := io.ReadFull(r, mMarker[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ordered_object.marker.read", err)
	}
	if mMarker[0] != markerObject {
		return nil, amferrors.NewInconsistentMarkerError("decode.ordered_object", markerObject, mMarker[0])
	}
	var out OrderedObject
	for {
		var klenBuf [2]byte
		if _, err := io.ReadFull(r, klenBuf[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.ordered_object.key.length.read", err)
		}
		klen := binary.BigEndian.Uint16(klenBuf[:])
		if klen == 0 {
			var end [1]byte
			if _, err := io.ReadFull(r, end[:]); err != nil {
				return nil, amferrors.NewAMFError("decode.ordered_object.end.read", err)
			}
			if end[0] != markerObjectEnd {
				return nil, amferrors.NewInconsistentMarkerError("decode.ordered_object.end", markerObjectEnd, end[0])
			}
			break
		}
		keyBytes := make([]byte, klen)
		if _, err := io.ReadFull(r, keyBytes); err != nil {
			return nil, amferrors.NewAMFError("decode.ordered_object.key.read", err)
		}
		key := string(keyBytes)

		var valMarker [1]byte
		if _, err := io.ReadFull(r, valMarker[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.ordered_object.value.marker.read", err)
		}
		val, err := decodeValueWithMarker(valMarker[0], r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.ordered_object.value", fmt.Errorf("key '%s': %w", key, err))
		}
		out = append(out, Pair{Key: key, Value: val})
	}
	return out, nil
}

// roundTripOrderedObject is an internal helper used by tests.
func roundTripOrderedObject(o OrderedObject) (OrderedObject, error) {
	var buf bytes.Buffer
	if err := EncodeOrderedObject(&buf, o); err != nil {
		return nil, err
	}
	return DecodeOrderedObject(&buf)
}
