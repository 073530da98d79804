package router_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

func newTestRouter(t *testing.T, opts ...router.Option) *router.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return router.NewRouter(logger, opts...)
}

// TestOpenSessionFullHandshake covers scenario S1: open, ack, close.
func TestOpenSessionFullHandshake(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})

	handle1, err := r.RegisterHub(1, "h1", h1)
	if err != nil {
		t.Fatalf("RegisterHub(h1): %v", err)
	}
	handle2, err := r.RegisterHub(2, "h2", h2)
	if err != nil {
		t.Fatalf("RegisterHub(h2): %v", err)
	}

	sid, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if len(h2.openRequests) != 1 || h2.openRequests[0].Id != sid {
		t.Fatalf("peer did not receive exactly one OnSessionOpenRequest for %d: %+v", sid, h2.openRequests)
	}

	if err := handle2.OnSessionOpenComplete(sid); err != nil {
		t.Fatalf("OnSessionOpenComplete: %v", err)
	}
	if len(h1.opened) != 1 || len(h2.opened) != 1 {
		t.Fatalf("expected exactly one OnSessionOpened per hub, got h1=%d h2=%d", len(h1.opened), len(h2.opened))
	}

	if err := handle1.CloseSession(sid, router.ReasonCloseEndpointSessionRequested); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if len(h1.closed) != 1 || len(h2.closed) != 1 {
		t.Fatalf("expected exactly one OnSessionClosed per hub, got h1=%d h2=%d", len(h1.closed), len(h2.closed))
	}
	if h1.closed[0].reason != router.ReasonCloseEndpointSessionRequested {
		t.Errorf("close reason = %v, want CloseEndpointSessionRequested", h1.closed[0].reason)
	}
}

// TestSendMessageRoundTrip covers scenario S2.
func TestSendMessageRoundTrip(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})

	handle1, _ := r.RegisterHub(1, "h1", h1)
	handle2, _ := r.RegisterHub(2, "h2", h2)

	sid, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := handle2.OnSessionOpenComplete(sid); err != nil {
		t.Fatalf("OnSessionOpenComplete: %v", err)
	}

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	ok, err := handle1.SendMessage(0x10, sid, payload, 1, 0)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !ok {
		t.Fatal("SendMessage returned false, want true")
	}

	if len(h2.received) != 1 {
		t.Fatalf("expected exactly one OnMessageReceived on h2, got %d", len(h2.received))
	}
	got := h2.received[0]
	if got.session.Initiator != (router.Endpoint{HubId: 1, EndpointId: 0x10}) {
		t.Errorf("sender = %v, want (1, 0x10)", got.session.Initiator)
	}
	if got.session.Peer != (router.Endpoint{HubId: 2, EndpointId: 0x20}) {
		t.Errorf("recipient = %v, want (2, 0x20)", got.session.Peer)
	}
	if string(got.payload) != string(payload) {
		t.Errorf("payload = %x, want %x", got.payload, payload)
	}
}

// TestPeerRejectsSession covers scenario S3: the peer closes from inside
// its OnSessionOpenRequest handler, exercising router reentrancy.
func TestPeerRejectsSession(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})

	handle1, _ := r.RegisterHub(1, "h1", h1)
	handle2, _ := r.RegisterHub(2, "h2", h2)

	h2.OnSessionOpenRequestFunc = func(session router.Session) {
		if err := handle2.CloseSession(session.Id, router.ReasonOpenEndpointSessionRequestRejected); err != nil {
			t.Errorf("reentrant CloseSession: %v", err)
		}
	}

	sid, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if len(h1.closed) != 1 {
		t.Fatalf("expected exactly one OnSessionClosed on h1, got %d", len(h1.closed))
	}
	if h1.closed[0].reason != router.ReasonOpenEndpointSessionRequestRejected {
		t.Errorf("close reason = %v, want OpenEndpointSessionRequestRejected", h1.closed[0].reason)
	}
	if h1.closed[0].session.Id != sid {
		t.Errorf("closed session id = %d, want %d", h1.closed[0].session.Id, sid)
	}
	if len(h1.opened) != 0 {
		t.Error("OnSessionOpened fired despite rejection")
	}
}

// TestRegisterHubCapacity covers scenario S4.
func TestRegisterHubCapacity(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, router.WithMaxHubs(2))
	h1, h2, h3 := newFakeHub(), newFakeHub(), newFakeHub()

	if _, err := r.RegisterHub(1, "h1", h1); err != nil {
		t.Fatalf("RegisterHub(h1): %v", err)
	}
	if _, err := r.RegisterHub(2, "h2", h2); err != nil {
		t.Fatalf("RegisterHub(h2): %v", err)
	}
	if _, err := r.RegisterHub(3, "h3", h3); !errors.Is(err, router.ErrHubTableFull) {
		t.Fatalf("RegisterHub(h3) = %v, want ErrHubTableFull", err)
	}

	var seen []router.HubId
	r.ForEachMessageHub(func(info router.HubInfo) bool {
		seen = append(seen, info.Id)
		return true
	})
	if len(seen) != 2 {
		t.Errorf("hub table has %d entries after rejected registration, want 2", len(seen))
	}
}

// TestOpenSessionCallerSessionIdOutOfRange covers scenario S5.
func TestOpenSessionCallerSessionIdOutOfRange(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})
	handle1, _ := r.RegisterHub(1, "h1", h1)
	_, _ = r.RegisterHub(2, "h2", h2)

	outOfRange := router.DefaultReservedSessionId / 2
	sid, err := handle1.OpenSession(0x10, 2, 0x20, nil, &outOfRange)
	if !errors.Is(err, router.ErrSessionIdOutOfRange) {
		t.Fatalf("OpenSession = (%v, %v), want ErrSessionIdOutOfRange", sid, err)
	}
	if sid != router.InvalidSessionId {
		t.Errorf("sid = %d, want InvalidSessionId", sid)
	}
	if len(h2.openRequests) != 0 {
		t.Error("OnSessionOpenRequest fired despite out-of-range session id")
	}
}

// TestOpenSessionEquivalentReturnsSameId covers invariant 6.
func TestOpenSessionEquivalentReturnsSameId(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})
	handle1, _ := r.RegisterHub(1, "h1", h1)
	_, _ = r.RegisterHub(2, "h2", h2)

	sid1, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("first OpenSession: %v", err)
	}
	sid2, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("second OpenSession: %v", err)
	}
	if sid1 != sid2 {
		t.Errorf("sid1=%d sid2=%d, want equal ids for equivalent sessions", sid1, sid2)
	}
	if len(h2.openRequests) != 1 {
		t.Errorf("expected exactly one OnSessionOpenRequest, got %d", len(h2.openRequests))
	}
}

// TestSendMessageOnPendingSessionFails covers invariant 7.
func TestSendMessageOnPendingSessionFails(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})
	handle1, _ := r.RegisterHub(1, "h1", h1)
	_, _ = r.RegisterHub(2, "h2", h2)

	sid, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	ok, err := handle1.SendMessage(0x10, sid, []byte("hi"), 0, 0)
	if ok || !errors.Is(err, router.ErrSessionNotActive) {
		t.Fatalf("SendMessage on pending session = (%v, %v), want (false, ErrSessionNotActive)", ok, err)
	}
	if len(h2.received) != 0 {
		t.Error("OnMessageReceived fired for a send on a pending session")
	}
}

// TestSendMessageFalseClosesSession verifies that a false return from
// OnMessageReceived auto-closes the session with ReasonUnspecified.
func TestSendMessageFalseClosesSession(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})
	handle1, _ := r.RegisterHub(1, "h1", h1)
	handle2, _ := r.RegisterHub(2, "h2", h2)

	h2.OnMessageReceivedFunc = func([]byte, uint32, uint32, router.Session, bool) bool { return false }

	sid, _ := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err := handle2.OnSessionOpenComplete(sid); err != nil {
		t.Fatalf("OnSessionOpenComplete: %v", err)
	}

	ok, err := handle1.SendMessage(0x10, sid, []byte("x"), 0, 0)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if ok {
		t.Fatal("SendMessage returned true, want false")
	}

	if _, exists := r.GetSession(1, sid); exists {
		t.Error("session still present after receiver returned false")
	}
	if len(h1.closed) != 1 || h1.closed[0].reason != router.ReasonUnspecified {
		t.Fatalf("h1.closed = %+v, want one ReasonUnspecified close", h1.closed)
	}
}

// TestUnregisterHubClosesSessionsFirst covers invariant 5.
func TestUnregisterHubClosesSessionsFirst(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2, h3 := newFakeHub(), newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})

	handle1, _ := r.RegisterHub(1, "h1", h1)
	_, _ = r.RegisterHub(2, "h2", h2)
	_, _ = r.RegisterHub(3, "h3", h3)

	sid, err := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	handle1.Unregister()

	if _, exists := r.GetSession(2, sid); exists {
		t.Error("session still present after owning hub unregistered")
	}
	if len(h2.closed) != 1 || h2.closed[0].reason != router.ReasonHubReset {
		t.Fatalf("h2.closed = %+v, want one ReasonHubReset close", h2.closed)
	}
	if len(h3.hubsUnregistered) != 1 || h3.hubsUnregistered[0] != 1 {
		t.Fatalf("h3.hubsUnregistered = %v, want [1]", h3.hubsUnregistered)
	}
	if len(h2.hubsUnregistered) != 1 {
		t.Errorf("h2.hubsUnregistered = %v, want exactly one entry", h2.hubsUnregistered)
	}
}

// TestOnSessionOpenCompleteIdempotent resolves the open question: a second
// ack on an already-active session must not emit a second OnSessionOpened.
func TestOnSessionOpenCompleteIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})
	handle1, _ := r.RegisterHub(1, "h1", h1)
	handle2, _ := r.RegisterHub(2, "h2", h2)

	sid, _ := handle1.OpenSession(0x10, 2, 0x20, nil, nil)
	if err := handle2.OnSessionOpenComplete(sid); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if err := handle2.OnSessionOpenComplete(sid); err != nil {
		t.Fatalf("second ack: %v", err)
	}

	if len(h1.opened) != 1 || len(h2.opened) != 1 {
		t.Fatalf("expected exactly one OnSessionOpened per hub after repeated ack, got h1=%d h2=%d", len(h1.opened), len(h2.opened))
	}
}

// TestSelfLoopSessionSingleNotification covers the "self-loop sessions"
// design note: callbacks fire once, not twice, when both endpoints share a
// hub.
func TestSelfLoopSessionSingleNotification(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	h1 := newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h1.addEndpoint(router.EndpointInfo{Id: 0x11})
	handle1, _ := r.RegisterHub(1, "h1", h1)

	sid, err := handle1.OpenSession(0x10, 1, 0x11, nil, nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := handle1.OnSessionOpenComplete(sid); err != nil {
		t.Fatalf("OnSessionOpenComplete: %v", err)
	}
	if len(h1.opened) != 1 {
		t.Fatalf("self-loop OnSessionOpened fired %d times, want 1", len(h1.opened))
	}

	if err := handle1.CloseSession(sid, router.ReasonCloseEndpointSessionRequested); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if len(h1.closed) != 1 {
		t.Fatalf("self-loop OnSessionClosed fired %d times, want 1", len(h1.closed))
	}
}

// TestSessionIdAllocationRange covers invariant 2: router-assigned ids are
// below the reserved boundary.
func TestSessionIdAllocationRange(t *testing.T) {
	t.Parallel()

	const reserved = router.SessionId(4)
	r := newTestRouter(t, router.WithReservedSessionId(reserved))
	h1, h2 := newFakeHub(), newFakeHub()
	h1.addEndpoint(router.EndpointInfo{Id: 0x10})
	h2.addEndpoint(router.EndpointInfo{Id: 0x20})
	handle1, _ := r.RegisterHub(1, "h1", h1)
	_, _ = r.RegisterHub(2, "h2", h2)

	for i := 0; i < int(reserved); i++ {
		endpoint := router.EndpointId(0x20 + i)
		h2.addEndpoint(router.EndpointInfo{Id: endpoint})
		sid, err := handle1.OpenSession(0x10, 2, endpoint, nil, nil)
		if err != nil {
			t.Fatalf("OpenSession #%d: %v", i, err)
		}
		if sid >= reserved {
			t.Fatalf("allocated session id %d, want < reserved (%d)", sid, reserved)
		}
	}

	extraEndpoint := router.EndpointId(0x30)
	h2.addEndpoint(router.EndpointInfo{Id: extraEndpoint})
	if _, err := handle1.OpenSession(0x10, 2, extraEndpoint, nil, nil); !errors.Is(err, router.ErrSessionIdExhausted) {
		t.Fatalf("OpenSession after exhausting range = %v, want ErrSessionIdExhausted", err)
	}
}
