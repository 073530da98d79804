package localhub

import "github.com/dantte-lp/gomsgrouter/internal/router"

// EventKind discriminates the variants of AppEvent.
type EventKind int

const (
	// EventMessage carries a delivered message payload.
	EventMessage EventKind = iota
	// EventSessionOpenRequest notifies the app that a peer wants to open
	// a session terminating on one of its endpoints.
	EventSessionOpenRequest
	// EventSessionOpened notifies the app that a session it is party to
	// became active.
	EventSessionOpened
	// EventSessionClosed notifies the app that a session it was party to
	// ended.
	EventSessionClosed
	// EventEndpointReady notifies the app that an endpoint (or service)
	// it subscribed to via ConfigureReadyEvents is now present.
	EventEndpointReady
)

// AppEvent is a single notification delivered to an application's event
// channel. Exactly one of the payload fields is meaningful, selected by
// Kind.
type AppEvent struct {
	Kind EventKind

	// Session is populated for EventSessionOpenRequest, EventSessionOpened,
	// EventSessionClosed, and identifies the session the message in
	// Message (if any) was carried on.
	Session router.Session

	// Reason is populated for EventSessionClosed.
	Reason router.Reason

	// Message is populated for EventMessage.
	Message *MessageEvent

	// ReadyHub and ReadyEndpoint are populated for EventEndpointReady.
	ReadyHub      router.HubId
	ReadyEndpoint router.EndpointId
}

// MessageEvent carries a delivered message and the deferred-free hook that
// must run once the application is done reading Payload.
type MessageEvent struct {
	Payload         []byte
	MessageType     uint32
	Permissions     uint32
	SentByInitiator bool

	free func()
}

// Release runs the message's deferred-free callback, if any. Safe to call
// more than once; only the first call has effect. Applications that accept
// ownership of Payload beyond the handler's lifetime must call Release
// when finished with it.
func (m *MessageEvent) Release() {
	if m == nil || m.free == nil {
		return
	}
	fn := m.free
	m.free = nil
	fn()
}
