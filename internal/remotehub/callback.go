package remotehub

import "github.com/dantte-lp/gomsgrouter/internal/router"

// HostCallback is implemented by whatever bridges a Manager to the actual
// remote host process; this module contains no such bridge, and its tests
// supply a recording fake. Every method is a one-way notification destined for the host;
// none of them return a value the router waits on, since the host lives
// across a transport boundary and cannot satisfy a HubCallback's
// synchronous contract directly — that's the reason RemoteHub exists, to
// absorb the router's synchronous callback contract on the host's behalf.
type HostCallback interface {
	// OnMessageReceived forwards a delivered message on hub to the host.
	OnMessageReceived(hub router.HubId, session router.Session, payload []byte, messageType, permissions uint32, sentByInitiator bool)

	// OnSessionOpenRequest forwards a pending session-open request
	// terminating on hub to the host. The host accepts by calling
	// Manager.AckSession and rejects by calling Manager.CloseSession.
	OnSessionOpenRequest(hub router.HubId, session router.Session)

	// OnSessionOpened notifies the host that session became active.
	OnSessionOpened(hub router.HubId, session router.Session)

	// OnSessionClosed notifies the host that session ended.
	OnSessionClosed(hub router.HubId, session router.Session, reason router.Reason)

	// OnSessionOpenRejected notifies the host that its own OpenSession
	// call, naming requestedSessionId, was rejected before ever reaching
	// the router's session table — currently only fired when the router
	// resolved the request to a pre-existing equivalent session under a
	// different id than the host supplied.
	OnSessionOpenRejected(hub router.HubId, requestedSessionId router.SessionId, reason router.Reason)

	// OnHubRegistered notifies the host that another hub registered,
	// from the perspective of hub.
	OnHubRegistered(hub router.HubId, info router.HubInfo)

	// OnHubUnregistered notifies the host that another hub unregistered,
	// from the perspective of hub.
	OnHubUnregistered(hub router.HubId, id router.HubId)

	// OnEndpointRegistered notifies the host that endpoint registered on
	// onHub, from the perspective of hub.
	OnEndpointRegistered(hub router.HubId, onHub router.HubId, endpoint router.EndpointId)

	// OnEndpointUnregistered notifies the host that endpoint unregistered
	// from onHub, from the perspective of hub.
	OnEndpointUnregistered(hub router.HubId, onHub router.HubId, endpoint router.EndpointId)

	// OnReset notifies the host that the manager has cleared its hub
	// table and is about to replay a fresh set of registrations.
	OnReset()
}
