package conn

import rtmperrors "github.com/alxayo/go-rtmp/internal/errors"

// SessionState represents the lifecycle state of an RTMP session.
// The progression follows the spec/data-model:
//   Uninitialized → Connected → StreamCreated → Publishing/Playing
// For this task we model Publishing and Playing distinctly but the
// transition mechanics (publish vs play command) will be handled by
// higher RPC/command layers – here we just provide helpers.
type SessionState uint8

const (
	SessionStateUninitialized SessionState = iota
	SessionStateConnected
	SessionStateStreamCreated
	SessionStatePublishing
	SessionStatePlaying
)

// Session holds per-connection RTMP session metadata established after the
// handshake and the connect/createStream/publish/play command sequence. See
// data-model.md. It is the single owner of the fields the command dispatcher
// used to track in a package-local struct: role, stream key, FCPublish name,
// publishing type, and play path now all live here instead, so a connection
// has exactly one place recording "who is this client and what are they
// doing" rather than two overlapping ones.
//
// Concurrency: mutated only by the command handling goroutine; no locks
// required. transactionID uses a simple increment method – if future
// parallel command processing is added we can switch to atomic.
type Session struct {
	app            string
	tcUrl          string
	flashVer       string
	objectEncoding uint8
	commandObject  map[string]interface{} // raw "connect" command object, for fields beyond the ones above

	transactionID uint32 // starts at 1 (per data model)
	streamID      uint32 // allocated by createStream (starts at 0 until set)
	streamKey     string // app/streamName once publish/play received

	role           string // "" | "publish" | "play" — first command wins, conflicting role is ambiguous
	playPath       string // streamName argument of the most recent "play" command
	publishingType string // "live" | "record" | "append", from the most recent "publish" command
	fcPublishName  string // streamName advertised by the most recent FCPublish, if any

	signed bool // true if the handshake negotiated the HMAC-SHA256 digest variant

	state SessionState
}

// NewSession creates a new Session in Uninitialized state.
func NewSession() *Session {
	return &Session{transactionID: 1, state: SessionStateUninitialized}
}

// SetConnectInfo sets fields derived from the "connect" command and
// moves the session into Connected state.
func (s *Session) SetConnectInfo(app, tcUrl, flashVer string, objectEncoding uint8) {
	s.app = app
	s.tcUrl = tcUrl
	s.flashVer = flashVer
	s.objectEncoding = objectEncoding
	if s.state == SessionStateUninitialized {
		s.state = SessionStateConnected
	}
}

// SetCommandObject stores the raw decoded "connect" command object, for
// fields (e.g. capabilities, audioCodecs, videoCodecs) not promoted to a
// dedicated Session field.
func (s *Session) SetCommandObject(obj map[string]interface{}) { s.commandObject = obj }

// CommandObject returns the raw "connect" command object, or nil if connect
// has not happened yet.
func (s *Session) CommandObject() map[string]interface{} { return s.commandObject }

// NextTransactionID increments and returns the next transaction id.
// Starts from 1 so the first call returns 2. This mirrors common RTMP
// client behavior (FFmpeg/OBS) where the connect command uses an id
// of 1 and responses increment from there.
func (s *Session) NextTransactionID() uint32 {
	s.transactionID++
	return s.transactionID
}

// AllocateStreamID allocates (or increments) the message stream ID.
// Typical RTMP sessions only allocate a single stream (id 1). We keep
// the counter logic simple to allow future multi-stream support.
// Returns the allocated stream id.
func (s *Session) AllocateStreamID() uint32 {
	if s.streamID == 0 {
		s.streamID = 1
	} else {
		s.streamID++
	}
	if s.state == SessionStateConnected {
		s.state = SessionStateStreamCreated
	}
	return s.streamID
}

// SetStreamKey composes and stores the fully-qualified stream key
// using the application name and provided streamName. Returns the
// constructed key. The higher-level publish/play handlers will set
// the appropriate final state (Publishing or Playing); we only set
// Publishing as a neutral placeholder if not already set.
func (s *Session) SetStreamKey(app, streamName string) string {
	// Prefer explicit app param (may match s.app); do not override if empty.
	if app != "" {
		s.app = app
	}
	s.streamKey = s.app + "/" + streamName
	// If stream was created but role not yet specified, mark as Publishing placeholder.
	if s.state == SessionStateStreamCreated {
		s.state = SessionStatePublishing
	}
	return s.streamKey
}

// ClearStreamKey resets the stream key after a deleteStream command, without
// touching app/role/playPath — a client can deleteStream and createStream a
// new one on the same connection.
func (s *Session) ClearStreamKey() { s.streamKey = "" }

// TryClaimRole records the session's first publish-or-play command and
// returns an *errors.UndistinguishableClientError if a later command asks for
// the opposite role on the same connection. The caller decides whether that
// error is fatal; RTMP has no wire-level way to recover a single connection
// into two roles, so the session exposes it as a named condition rather than
// silently overwriting the existing role.
func (s *Session) TryClaimRole(role string) error {
	if s.role != "" && s.role != role {
		return rtmperrors.NewUndistinguishableClientError(s.role + " after " + role)
	}
	s.role = role
	if role == "play" {
		s.state = SessionStatePlaying
	} else if role == "publish" {
		s.state = SessionStatePublishing
	}
	return nil
}

// Role returns the session's claimed role ("" | "publish" | "play").
func (s *Session) Role() string { return s.role }

// SetPlayPath records the streamName argument of the most recent "play"
// command.
func (s *Session) SetPlayPath(path string) { s.playPath = path }

// PlayPath returns the most recently played streamName, or "" before the
// first "play" command.
func (s *Session) PlayPath() string { return s.playPath }

// SetPublishingType records the publishing type ("live" | "record" |
// "append") argument of the most recent "publish" command.
func (s *Session) SetPublishingType(t string) { s.publishingType = t }

// PublishingType returns the most recent publish command's publishing type.
func (s *Session) PublishingType() string { return s.publishingType }

// RecordFCPublishName stores the streamName advertised by an FCPublish
// command, which real encoders (OBS, FMLE-derived tools) send ahead of the
// actual "publish" command.
func (s *Session) RecordFCPublishName(name string) { s.fcPublishName = name }

// CheckFCPublishMatch compares a "publish" command's publishingName against
// the name most recently advertised via FCPublish, returning
// *errors.InconsistentPlaypathError if they disagree. Returns nil if no
// FCPublish preceded this publish (nothing to compare against).
func (s *Session) CheckFCPublishMatch(publishingName string) error {
	if s.fcPublishName == "" || s.fcPublishName == publishingName {
		return nil
	}
	return rtmperrors.NewInconsistentPlaypathError(s.fcPublishName, publishingName)
}

// SetSigned records whether the handshake negotiated the signed
// (HMAC-SHA256 digest) variant.
func (s *Session) SetSigned(signed bool) { s.signed = signed }

// Signed reports whether the handshake negotiated the signed variant.
func (s *Session) Signed() bool { return s.signed }

// Accessor methods (read-only) ------------------------------------------------

func (s *Session) App() string           { return s.app }
func (s *Session) TcUrl() string         { return s.tcUrl }
func (s *Session) FlashVer() string      { return s.flashVer }
func (s *Session) ObjectEncoding() uint8 { return s.objectEncoding }
func (s *Session) TransactionID() uint32 { return s.transactionID }
func (s *Session) StreamID() uint32      { return s.streamID }
func (s *Session) StreamKey() string     { return s.streamKey }
func (s *Session) State() SessionState   { return s.state }
