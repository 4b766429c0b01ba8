package rpc

// @setDataFrame is delivered as a data message (RTMP message type 18, AMF0
// Data) rather than a command message (type 20), so it never reaches the
// command Dispatcher. Publishers use it to attach stream metadata (width,
// height, framerate, codec ids) ahead of the first audio/video frame; we
// decode it so the server can inspect/cache onMetaData without needing the
// full object graph every subscriber re-parses independently.

import (
	"fmt"

	"github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
)

// DataMessageAMF0TypeID is the RTMP message type ID for AMF0 data messages.
const DataMessageAMF0TypeID = 18

// MetadataCommand holds the parsed payload of an @setDataFrame/onMetaData message.
type MetadataCommand struct {
	FrameName string // "onMetaData" in practice
	Metadata  map[string]interface{}
}

// ParseSetDataFrame parses a "@setDataFrame" wrapped data message:
// ["@setDataFrame", "onMetaData", {...}]. Some encoders omit the
// "@setDataFrame" wrapper and send ["onMetaData", {...}] directly; both forms
// are accepted.
func ParseSetDataFrame(msg *chunk.Message) (*MetadataCommand, error) {
	if msg == nil {
		return nil, errors.NewProtocolError("setdataframe.parse", fmt.Errorf("nil message"))
	}
	if msg.TypeID != DataMessageAMF0TypeID {
		return nil, errors.NewProtocolError("setdataframe.parse", fmt.Errorf("unexpected message type %d", msg.TypeID))
	}
	vals, err := amf.DecodeAll(msg.Payload)
	if err != nil {
		return nil, errors.NewProtocolError("setdataframe.parse.decode", err)
	}
	if len(vals) == 0 {
		return nil, errors.NewProtocolError("setdataframe.parse", fmt.Errorf("empty AMF payload"))
	}

	idx := 0
	first, _ := vals[0].(string)
	if first == "@setDataFrame" {
		idx = 1
	}
	if idx >= len(vals) {
		return nil, errors.NewProtocolError("setdataframe.parse", fmt.Errorf("missing frame name"))
	}
	frameName, ok := vals[idx].(string)
	if !ok {
		return nil, errors.NewProtocolError("setdataframe.parse", fmt.Errorf("frame name must be a string"))
	}
	idx++
	var meta map[string]interface{}
	if idx < len(vals) {
		if m, ok := vals[idx].(map[string]interface{}); ok {
			meta = m
		}
	}
	return &MetadataCommand{FrameName: frameName, Metadata: meta}, nil
}
