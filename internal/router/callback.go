package router

// HubCallback is implemented by every participant that registers a hub
// with the router. The router invokes these methods to deliver messages,
// negotiate sessions, answer endpoint/service queries, and broadcast
// topology changes.
//
// The router never invokes a HubCallback method while holding its own
// mutex, so implementations are free to call back into the router
// (opening, closing, or sending on a session) from within any of these
// methods. This is a deliberate reentrancy guarantee, not an accident of
// implementation: the Remote Hub Manager relies on it to reject a session
// synchronously from inside OnSessionOpenRequest.
//
// Implementations are consumer-owned and long-lived; the router holds a
// reference for as long as the hub stays registered and drops it on
// unregister. Because HubCallback is an ordinary Go interface, the
// language runtime — not the router — keeps the implementation (and
// anything it closes over) alive for as long as any goroutine, including
// one mid-callback, still holds a reference to it.
type HubCallback interface {
	// OnMessageReceived delivers a message sent on session to this hub.
	// sentByInitiator is true when the sender was the session's
	// initiator. Returning false tells the router the session is no
	// longer viable; the router responds by closing it with
	// ReasonUnspecified.
	OnMessageReceived(payload []byte, messageType, permissions uint32, session Session, sentByInitiator bool) bool

	// OnSessionOpenRequest notifies this hub that a peer wishes to open
	// session. The hub accepts by calling HubHandle.OnSessionOpenComplete
	// and rejects by calling HubHandle.CloseSession.
	OnSessionOpenRequest(session Session)

	// OnSessionOpened notifies this hub that session has transitioned to
	// active.
	OnSessionOpened(session Session)

	// OnSessionClosed notifies this hub that session has ended.
	OnSessionClosed(session Session, reason Reason)

	// ForEachEndpoint invokes fn for every endpoint registered on this
	// hub, stopping early if fn returns false.
	ForEachEndpoint(fn func(EndpointInfo) bool)

	// GetEndpointInfo returns information about one of this hub's
	// endpoints.
	GetEndpointInfo(id EndpointId) (EndpointInfo, bool)

	// GetEndpointForService returns the id of the endpoint on this hub
	// that exposes the named service, if any.
	GetEndpointForService(descriptor string) (EndpointId, bool)

	// DoesEndpointHaveService reports whether the named endpoint exposes
	// the named service.
	DoesEndpointHaveService(id EndpointId, descriptor string) bool

	// ForEachService invokes fn for every (endpoint, service) pair this
	// hub exposes, stopping early if fn returns false.
	ForEachService(fn func(EndpointInfo, ServiceInfo) bool)

	// OnHubRegistered notifies this hub that another hub registered.
	OnHubRegistered(info HubInfo)

	// OnHubUnregistered notifies this hub that another hub unregistered.
	OnHubUnregistered(id HubId)

	// OnEndpointRegistered notifies this hub that an endpoint on another
	// hub registered.
	OnEndpointRegistered(hub HubId, endpoint EndpointId)

	// OnEndpointUnregistered notifies this hub that an endpoint on
	// another hub unregistered.
	OnEndpointUnregistered(hub HubId, endpoint EndpointId)
}
