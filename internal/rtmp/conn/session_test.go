package conn

import "testing"

func TestSessionTransactionIDIncrement(t *testing.T) {
	s := NewSession()
	if got := s.TransactionID(); got != 1 {
		t.Fatalf("initial transactionID = %d, want 1", got)
	}
	next := s.NextTransactionID()
	if next != 2 {
		t.Fatalf("after first NextTransactionID got %d, want 2", next)
	}
	next = s.NextTransactionID()
	if next != 3 {
		t.Fatalf("after second NextTransactionID got %d, want 3", next)
	}
}

func TestSessionAllocateStreamID(t *testing.T) {
	s := NewSession()
	s.SetConnectInfo("live", "rtmp://example/live", "FMLE/3.0", 0)
	if s.State() != SessionStateConnected {
		t.Fatalf("expected state Connected, got %v", s.State())
	}
	id1 := s.AllocateStreamID()
	if id1 != 1 {
		t.Fatalf("first stream id = %d, want 1", id1)
	}
	if s.State() != SessionStateStreamCreated {
		t.Fatalf("expected state StreamCreated after allocation, got %v", s.State())
	}
	id2 := s.AllocateStreamID()
	if id2 != 2 {
		t.Fatalf("second stream id = %d, want 2", id2)
	}
}

func TestSessionSetStreamKey(t *testing.T) {
	s := NewSession()
	s.SetConnectInfo("live", "rtmp://example/live", "FMLE/3.0", 0)
	s.AllocateStreamID()
	key := s.SetStreamKey("live", "testStream")
	want := "live/testStream"
	if key != want || s.StreamKey() != want {
		t.Fatalf("stream key = %q, want %q", key, want)
	}
	if s.State() != SessionStatePublishing { // placeholder state set in SetStreamKey
		t.Fatalf("expected state Publishing placeholder, got %v", s.State())
	}
}

func TestSessionTryClaimRoleConflict(t *testing.T) {
	s := NewSession()
	if err := s.TryClaimRole("publish"); err != nil {
		t.Fatalf("first claim should succeed: %v", err)
	}
	if err := s.TryClaimRole("publish"); err != nil {
		t.Fatalf("repeating the same role should succeed: %v", err)
	}
	if err := s.TryClaimRole("play"); err == nil {
		t.Fatalf("expected error claiming play after publish")
	}
	if s.Role() != "publish" {
		t.Fatalf("role should still be publish after rejected claim, got %q", s.Role())
	}
}

func TestSessionCheckFCPublishMatch(t *testing.T) {
	s := NewSession()
	if err := s.CheckFCPublishMatch("camera"); err != nil {
		t.Fatalf("no FCPublish recorded yet, expected nil, got %v", err)
	}
	s.RecordFCPublishName("camera")
	if err := s.CheckFCPublishMatch("camera"); err != nil {
		t.Fatalf("matching names should not error: %v", err)
	}
	if err := s.CheckFCPublishMatch("other"); err == nil {
		t.Fatalf("expected error for mismatched FCPublish/publish names")
	}
}

func TestSessionSignedFlag(t *testing.T) {
	s := NewSession()
	if s.Signed() {
		t.Fatalf("new session should default to unsigned")
	}
	s.SetSigned(true)
	if !s.Signed() {
		t.Fatalf("expected Signed() true after SetSigned(true)")
	}
}

func TestSessionCommandObjectAndPlayPath(t *testing.T) {
	s := NewSession()
	obj := map[string]interface{}{"app": "live", "type": "nonprivate"}
	s.SetCommandObject(obj)
	if got := s.CommandObject(); got["type"] != "nonprivate" {
		t.Fatalf("CommandObject() = %v, want round-tripped map", got)
	}
	s.SetPlayPath("camera1")
	if s.PlayPath() != "camera1" {
		t.Fatalf("PlayPath() = %q, want camera1", s.PlayPath())
	}
	s.SetPublishingType("live")
	if s.PublishingType() != "live" {
		t.Fatalf("PublishingType() = %q, want live", s.PublishingType())
	}
}
