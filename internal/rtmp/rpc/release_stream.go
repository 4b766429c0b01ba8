package rpc

// releaseStream / FCPublish / FCUnpublish
//
// These three NetConnection-level commands precede createStream/publish in
// the handshake most publishers (notably Flash-derived encoders, and by
// convention OBS/ffmpeg-compatible servers) perform before publishing:
//
//	releaseStream(trxId, null, streamName)
//	FCPublish(trxId, null, streamName)
//	... createStream / publish ...
//	FCUnpublish(trxId, null, streamName) on stop
//
// They carry no reply requirement beyond an optional "_result"/"onFCPublish"
// acknowledgement; servers that don't recognize them are expected to ignore
// them silently, which is what made them easy to omit from a first pass. We
// parse them so FCPublish's streamName can be cross-checked against the
// publish command that follows.

import (
	"fmt"

	"github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
)

// StreamNameCommand is the shared shape of releaseStream, FCPublish and
// FCUnpublish: [name, transactionID, null, streamName].
type StreamNameCommand struct {
	Name          string
	TransactionID float64
	StreamName    string
}

func parseStreamNameCommand(expectedName string, msg *chunk.Message) (*StreamNameCommand, error) {
	if msg == nil {
		return nil, errors.NewProtocolError(expectedName+".parse", fmt.Errorf("nil message"))
	}
	if msg.TypeID != commandMessageAMF0TypeID {
		return nil, errors.NewProtocolError(expectedName+".parse", fmt.Errorf("unexpected message type %d", msg.TypeID))
	}
	vals, err := amf.DecodeAll(msg.Payload)
	if err != nil {
		return nil, errors.NewProtocolError(expectedName+".parse.decode", err)
	}
	if len(vals) < 4 {
		return nil, errors.NewProtocolError(expectedName+".parse", fmt.Errorf("expected >=4 AMF values, got %d", len(vals)))
	}
	name, ok := vals[0].(string)
	if !ok {
		return nil, errors.NewProtocolError(expectedName+".parse", fmt.Errorf("first value must be string %q", expectedName))
	}
	if name != expectedName {
		return nil, errors.NewInconsistentCommandError(expectedName, name)
	}
	trx, ok := vals[1].(float64)
	if !ok {
		return nil, errors.NewProtocolError(expectedName+".parse", fmt.Errorf("second value must be number transaction ID"))
	}
	streamName, ok := vals[3].(string)
	if !ok || streamName == "" {
		return nil, errors.NewProtocolError(expectedName+".parse", fmt.Errorf("fourth value must be non-empty streamName"))
	}
	return &StreamNameCommand{Name: name, TransactionID: trx, StreamName: streamName}, nil
}

// ParseReleaseStreamCommand parses a releaseStream command.
func ParseReleaseStreamCommand(msg *chunk.Message) (*StreamNameCommand, error) {
	return parseStreamNameCommand("releaseStream", msg)
}

// ParseFCPublishCommand parses an FCPublish command.
func ParseFCPublishCommand(msg *chunk.Message) (*StreamNameCommand, error) {
	return parseStreamNameCommand("FCPublish", msg)
}

// ParseFCUnpublishCommand parses an FCUnpublish command.
func ParseFCUnpublishCommand(msg *chunk.Message) (*StreamNameCommand, error) {
	return parseStreamNameCommand("FCUnpublish", msg)
}

// BuildOnFCPublish builds the onFCPublish notification some encoders wait for
// before proceeding to createStream. Sent with transaction ID 0 (notify).
func BuildOnFCPublish(streamName string) (*chunk.Message, error) {
	info := map[string]interface{}{
		"level":       "status",
		"code":        "NetStream.Publish.Start",
		"description": fmt.Sprintf("FCPublish to stream %s.", streamName),
	}
	payload, err := amf.EncodeAll("onFCPublish", float64(0), nil, info)
	if err != nil {
		return nil, errors.NewProtocolError("onfcpublish.encode", err)
	}
	return &chunk.Message{
		CSID:            3,
		TypeID:          commandMessageAMF0TypeID,
		MessageStreamID: 0,
		Payload:         payload,
		MessageLength:   uint32(len(payload)),
	}, nil
}
