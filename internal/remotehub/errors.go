package remotehub

import "errors"

var (
	// ErrHostHubTableFull is returned by RegisterHub when the configured
	// MaxHostHubs bound has been reached.
	ErrHostHubTableFull = errors.New("remotehub: host hub table full")

	// ErrHubAlreadyRegistered is returned by RegisterHub when the given
	// hub id is already known to this manager.
	ErrHubAlreadyRegistered = errors.New("remotehub: hub already registered")

	// ErrHubNotFound is returned when an operation names a hub id this
	// manager does not track.
	ErrHubNotFound = errors.New("remotehub: hub not found")

	// ErrHostEndpointTableFull is returned by RegisterEndpoint when the
	// configured MaxHostEndpoints bound has been reached for that hub.
	ErrHostEndpointTableFull = errors.New("remotehub: host endpoint table full")

	// ErrEndpointAlreadyRegistered is returned by RegisterEndpoint when
	// the endpoint id is already registered on that hub.
	ErrEndpointAlreadyRegistered = errors.New("remotehub: endpoint already registered")

	// ErrEndpointNotFound is returned when an operation names an
	// endpoint id the target hub does not have.
	ErrEndpointNotFound = errors.New("remotehub: endpoint not found")

	// ErrSessionIdMismatch is returned by OpenSession when the router
	// resolved the request to an existing equivalent session whose id
	// differs from the one the host supplied. The host's request is
	// synthesized as rejected via HostCallback.OnSessionOpenRejected
	// rather than silently handed back a different session id than it
	// asked for.
	ErrSessionIdMismatch = errors.New("remotehub: granted session id differs from requested id")
)
