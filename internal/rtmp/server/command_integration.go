package server

// Command Integration (Incremental Wiring)
// ---------------------------------------
// This file bridges the lower-level connection (handshake + control +
// chunking read/write loops) with the existing RPC command parsing and
// handlers so that real RTMP clients (OBS / ffmpeg) can complete the
// connect → createStream → publish sequence.
//
// Scope (minimal, pragmatic):
//   * Per-connection state: application name (from connect), stream id
//     allocator for createStream responses.
//   * Dispatch handling for: connect, createStream, publish, play.
//   * Unknown commands are ignored by the dispatcher.
//   * Errors are logged; fatal protocol errors currently just logged (a
//     future enhancement can close the connection or send _error responses).
//
// This unlocks basic interoperability with standard broadcasters which
// expect the canonical responses:
//   - _result for connect (NetConnection.Connect.Success)
//   - _result for createStream returning stream id (1)
//   - onStatus NetStream.Publish.Start after publish
//
// After publish, audio/video messages from the publisher are broadcast to the
// stream's subscribers (and recorded when recording is enabled); @setDataFrame
// metadata is cached on the stream.

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	iconn "github.com/alxayo/go-rtmp/internal/rtmp/conn"
	"github.com/alxayo/go-rtmp/internal/rtmp/control"
	"github.com/alxayo/go-rtmp/internal/rtmp/media"
	"github.com/alxayo/go-rtmp/internal/rtmp/rpc"
)

// commandState holds dispatcher-local helpers that have exactly one owner
// (this connection's dispatcher) and are not part of the protocol session
// state recorded in conn.Session — that now tracks role/stream
// key/FCPublish name/play path/publishing type, shared with anything else
// that inspects the connection (e.g. the client harness's own session use).
type commandState struct {
	allocator     *rpc.StreamIDAllocator
	mediaLogger   *MediaLogger
	codecDetector *media.CodecDetector
}

// attachCommandHandling installs a dispatcher-backed message handler on the
// provided connection. Safe to call immediately after Accept returns.
func attachCommandHandling(c *iconn.Connection, reg *Registry, cfg *Config, log *slog.Logger) {
	if c == nil || reg == nil || cfg == nil {
		return
	}
	st := &commandState{
		allocator:     rpc.NewStreamIDAllocator(),
		mediaLogger:   NewMediaLogger(c.ID(), log, 30*time.Second),
		codecDetector: &media.CodecDetector{},
	}
	sess := c.Session()

	d := rpc.NewDispatcher(func() string { return sess.App() })

	d.OnConnect = func(cc *rpc.ConnectCommand, msg *chunk.Message) error {
		log.Debug("OnConnect handler invoked", "app", cc.App, "tcUrl", cc.TcURL, "txn_id", cc.TransactionID)
		// Persist app for subsequent publish/play parsing.
		sess.SetConnectInfo(cc.App, cc.TcURL, cc.FlashVer, uint8(cc.ObjectEncoding))
		sess.SetCommandObject(cc.RawCommandObject)
		log.Debug("building connect response", "txn_id", cc.TransactionID)
		resp, err := rpc.BuildConnectResponse(cc.TransactionID, "Connection succeeded.")
		if err != nil {
			log.Error("connect response build failed", "error", err)
			return nil // swallow errors to keep connection alive for now
		}
		// Debug: log first 64 bytes of response payload
		previewLen := 64
		if len(resp.Payload) < previewLen {
			previewLen = len(resp.Payload)
		}
		log.Debug("connect response payload preview", "bytes", resp.Payload[:previewLen])
		log.Debug("sending connect response", "txn_id", cc.TransactionID, "payload_len", len(resp.Payload))
		if err := c.SendMessage(resp); err != nil {
			log.Error("connect response send failed", "error", err)
		} else {
			log.Info("connect response sent successfully", "app", cc.App)
		}
		return nil // swallow errors to keep connection alive for now
	}

	d.OnCreateStream = func(cs *rpc.CreateStreamCommand, msg *chunk.Message) error {
		log.Debug("OnCreateStream handler invoked", "txn_id", cs.TransactionID)
		resp, streamID, err := rpc.BuildCreateStreamResponse(cs.TransactionID, st.allocator)
		if err != nil {
			log.Error("createStream response build failed", "error", err)
			return nil
		}
		log.Debug("createStream response built", "stream_id", streamID, "payload_len", len(resp.Payload))
		if err := c.SendMessage(resp); err != nil {
			log.Error("createStream response send failed", "error", err)
		} else {
			log.Info("createStream response sent successfully", "stream_id", streamID, "txn_id", cs.TransactionID)
		}

		// Send UserControl StreamBegin to signal stream is ready
		streamBegin := control.EncodeUserControlStreamBegin(streamID)
		if err := c.SendMessage(streamBegin); err != nil {
			log.Error("StreamBegin send failed", "error", err, "stream_id", streamID)
		} else {
			log.Info("StreamBegin sent", "stream_id", streamID)
		}
		return nil
	}

	d.OnPublish = func(pc *rpc.PublishCommand, msg *chunk.Message) error {
		if err := sess.TryClaimRole("publish"); err != nil {
			log.Error("ambiguous client role", "error", err, "stream_key", pc.StreamKey)
			return nil
		}
		if err := sess.CheckFCPublishMatch(pc.PublishingName); err != nil {
			log.Warn("FCPublish/publish name mismatch", "error", err)
		}

		// Delegate to existing publish handler (sends onStatus internally).
		if _, err := HandlePublish(reg, c, sess.App(), msg); err != nil {
			log.Error("publish handle", "error", err)
			return nil
		}

		// Track stream key/publishing type for this connection
		sess.SetStreamKey(sess.App(), pc.PublishingName)
		sess.SetPublishingType(pc.PublishingType)

		// Initialize recorder if recording is enabled
		if cfg.RecordAll {
			stream := reg.GetStream(pc.StreamKey)
			if stream != nil {
				if err := initRecorder(stream, cfg.RecordDir, log); err != nil {
					log.Error("failed to create recorder", "error", err, "stream_key", pc.StreamKey)
				} else {
					log.Info("recording started", "stream_key", pc.StreamKey, "record_dir", cfg.RecordDir)
				}
			}
		}

		return nil
	}

	d.OnPlay = func(pl *rpc.PlayCommand, msg *chunk.Message) error {
		if err := sess.TryClaimRole("play"); err != nil {
			log.Error("ambiguous client role", "error", err, "stream_key", pl.StreamKey)
			return nil
		}

		// Delegate to existing play handler (sends onStatus internally).
		if _, err := HandlePlay(reg, c, sess.App(), msg); err != nil {
			log.Error("play handle", "error", err)
			return nil
		}

		// Track stream key/play path for this connection
		sess.SetStreamKey(sess.App(), pl.StreamName)
		sess.SetPlayPath(pl.StreamName)

		return nil
	}

	// releaseStream/FCPublish precede createStream for many publishers (OBS,
	// ffmpeg-derived encoders). We have no prior-registration bookkeeping to
	// clear yet (that happens once publish actually runs), so these are
	// logged and acknowledged; FCPublish gets the onFCPublish notify some
	// encoders wait on before continuing.
	d.OnReleaseStream = func(rs *rpc.StreamNameCommand, msg *chunk.Message) error {
		log.Debug("releaseStream", "stream_name", rs.StreamName)
		return nil
	}
	d.OnFCPublish = func(fc *rpc.StreamNameCommand, msg *chunk.Message) error {
		log.Debug("FCPublish", "stream_name", fc.StreamName)
		sess.RecordFCPublishName(fc.StreamName)
		if notify, err := rpc.BuildOnFCPublish(fc.StreamName); err == nil {
			_ = c.SendMessage(notify)
		}
		return nil
	}
	d.OnFCUnpublish = func(fc *rpc.StreamNameCommand, msg *chunk.Message) error {
		log.Debug("FCUnpublish", "stream_name", fc.StreamName)
		return nil
	}
	d.OnDeleteStream = func(vals []interface{}, msg *chunk.Message) error {
		if sess.StreamKey() != "" {
			cleanupRecorder(reg, sess.StreamKey(), log)
			PublisherDisconnected(reg, sess.StreamKey(), c)
			reg.DeleteStream(sess.StreamKey())
			sess.ClearStreamKey()
		}
		// ["deleteStream", transactionID, null, streamID]
		if len(vals) >= 4 {
			if id, ok := vals[3].(float64); ok {
				st.allocator.Release(uint32(id))
			}
		}
		return nil
	}

	c.SetMessageHandler(func(m *chunk.Message) {
		if m == nil {
			return
		}

		log.Debug("message handler invoked", "type_id", m.TypeID, "msid", m.MessageStreamID, "len", len(m.Payload))

		if m.TypeID == rpc.DataMessageAMF0TypeID {
			if meta, err := rpc.ParseSetDataFrame(m); err == nil && sess.StreamKey() != "" {
				if stream := reg.GetStream(sess.StreamKey()); stream != nil && meta.Metadata != nil {
					stream.mu.Lock()
					stream.Metadata = meta.Metadata
					stream.mu.Unlock()
					log.Debug("cached stream metadata", "stream_key", sess.StreamKey(), "frame", meta.FrameName)
				}
			}
			// Still forward to subscribers so they receive onMetaData too.
			if sess.StreamKey() != "" {
				if stream := reg.GetStream(sess.StreamKey()); stream != nil {
					stream.BroadcastMessage(st.codecDetector, m, log)
				}
			}
			return
		}

		// Process media packets (audio/video) through MediaLogger
		if m.TypeID == 8 || m.TypeID == 9 {
			st.mediaLogger.ProcessMessage(m)

			// Write to recorder if recording is active AND broadcast to subscribers
			if sess.StreamKey() != "" {
				stream := reg.GetStream(sess.StreamKey())
				if stream != nil {
					if stream.Recorder != nil {
						stream.Recorder.WriteMessage(m)
					}
					// Broadcast to all subscribers (relay functionality)
					stream.BroadcastMessage(st.codecDetector, m, log)
				}
			}

			return // Media packets don't need command dispatch
		}

		if m.TypeID != rpc.CommandMessageAMF0TypeIDForTest() {
			log.Debug("skipping non-command message", "type_id", m.TypeID)
			return
		}
		log.Debug("dispatching command message", "type_id", m.TypeID)
		if err := d.Dispatch(m); err != nil {
			log.Error("dispatch error", "error", err)
		}
	})
}

// initRecorder creates and initializes a recorder for the given stream.
// It generates a timestamped filename based on the stream key and stores
// the recorder in the stream's Recorder field.
func initRecorder(stream *Stream, recordDir string, log *slog.Logger) error {
	if stream == nil {
		return fmt.Errorf("nil stream")
	}

	// Ensure record directory exists
	if err := os.MkdirAll(recordDir, 0755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	// Generate filename: streamkey_timestamp.flv
	// Replace slashes in stream key with underscores for filesystem safety
	safeKey := strings.ReplaceAll(stream.Key, "/", "_")
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.flv", safeKey, timestamp)
	filepath := filepath.Join(recordDir, filename)

	// Create recorder. Metadata is whatever @setDataFrame has cached on the
	// stream so far; if publish arrived before metadata the header falls
	// back to has_audio=has_video=false, matching an encoder that hasn't
	// announced codecs yet.
	stream.mu.Lock()
	metadata := stream.Metadata
	stream.mu.Unlock()
	recorder, err := media.NewRecorder(filepath, metadata, log)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}

	// Store recorder in stream
	stream.mu.Lock()
	stream.Recorder = recorder
	stream.mu.Unlock()

	log.Info("recorder initialized", "stream_key", stream.Key, "file", filepath)
	return nil
}

// cleanupRecorder closes and removes the recorder for the given stream key.
func cleanupRecorder(reg *Registry, streamKey string, log *slog.Logger) {
	if reg == nil || streamKey == "" {
		return
	}

	stream := reg.GetStream(streamKey)
	if stream == nil {
		return
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.Recorder != nil {
		if err := stream.Recorder.Close(); err != nil {
			log.Error("recorder close error", "error", err, "stream_key", streamKey)
		} else {
			log.Info("recorder closed", "stream_key", streamKey)
		}
		stream.Recorder = nil
	}
}
