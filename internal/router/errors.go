package router

import "errors"

// Sentinel errors returned by Router and HubHandle operations. Callers
// should compare against these with errors.Is rather than matching error
// strings.
var (
	// ErrHubTableFull is returned by RegisterHub when the hub table has
	// reached its configured capacity.
	ErrHubTableFull = errors.New("router: hub table full")

	// ErrHubNameCollision is returned by RegisterHub when another
	// registered hub already uses the requested name.
	ErrHubNameCollision = errors.New("router: hub name already registered")

	// ErrHubIdCollision is returned by RegisterHub when another
	// registered hub already uses the requested id.
	ErrHubIdCollision = errors.New("router: hub id already registered")

	// ErrHubNotFound is returned when an operation references a hub id
	// that is not currently registered.
	ErrHubNotFound = errors.New("router: hub not found")

	// ErrSessionTableFull is returned by OpenSession when the session
	// table has reached its configured capacity.
	ErrSessionTableFull = errors.New("router: session table full")

	// ErrSessionNotFound is returned when an operation references a
	// session id that does not exist.
	ErrSessionNotFound = errors.New("router: session not found")

	// ErrSessionIdOutOfRange is returned by OpenSession when a
	// caller-supplied session id falls outside the reserved range.
	ErrSessionIdOutOfRange = errors.New("router: caller-supplied session id outside reserved range")

	// ErrSessionIdExhausted is returned by OpenSession when no
	// router-assigned session id could be allocated after the capped
	// number of retries.
	ErrSessionIdExhausted = errors.New("router: session id space exhausted")

	// ErrEndpointNotFound is returned when an operation references an
	// endpoint that the owning hub does not report.
	ErrEndpointNotFound = errors.New("router: endpoint not found")

	// ErrServiceNotFound is returned when a session open names a service
	// the peer endpoint does not expose.
	ErrServiceNotFound = errors.New("router: service not found on peer endpoint")

	// ErrSessionNotActive is returned by SendMessage when the named
	// session has not yet been acknowledged.
	ErrSessionNotActive = errors.New("router: session not active")

	// ErrAmbiguousSender is returned by SendMessage when the sender
	// endpoint is ANY and both session endpoints live on the calling
	// hub.
	ErrAmbiguousSender = errors.New("router: ambiguous sender endpoint")

	// ErrSenderNotSessionMember is returned by SendMessage when the
	// supplied (or inferred) sender is not one of the session's two
	// endpoints.
	ErrSenderNotSessionMember = errors.New("router: sender is not a member of the session")

	// ErrHandleNotRegistered is returned by HubHandle operations on a
	// zero-value or already-unregistered handle.
	ErrHandleNotRegistered = errors.New("router: hub handle is not registered")

	// ErrInvalidServiceDescriptor is returned when a legacy service
	// descriptor fails to parse.
	ErrInvalidServiceDescriptor = errors.New("router: invalid legacy service descriptor")

	// ErrSessionIdInUse is returned by OpenSession when a caller-supplied
	// session id is already occupied by a non-equivalent session.
	ErrSessionIdInUse = errors.New("router: caller-supplied session id already in use")
)
