package localhub

import "errors"

var (
	// ErrEndpointAlreadyRegistered is returned by RegisterEndpoint when the
	// given endpoint id is already registered on this hub.
	ErrEndpointAlreadyRegistered = errors.New("localhub: endpoint already registered")

	// ErrEndpointNotRegistered is returned when an operation names an
	// endpoint this manager does not know about.
	ErrEndpointNotRegistered = errors.New("localhub: endpoint not registered")

	// ErrNoServicesGiven is returned by PublishServices when called with
	// an empty service list.
	ErrNoServicesGiven = errors.New("localhub: no services given")

	// ErrLegacyDescriptorNotAllowed is returned by PublishServices when a
	// service descriptor collides with the legacy nanoapp-service format,
	// which is reserved for the router's own descriptor codec.
	ErrLegacyDescriptorNotAllowed = errors.New("localhub: legacy-format service descriptor not allowed")

	// ErrDuplicateServiceDescriptor is returned by PublishServices when a
	// descriptor is already published by this or another endpoint.
	ErrDuplicateServiceDescriptor = errors.New("localhub: duplicate service descriptor")

	// ErrNoDefaultHub is returned by OpenDefaultSessionAsync when no
	// registered hub can satisfy the request.
	ErrNoDefaultHub = errors.New("localhub: no default hub found for request")

	// ErrFreeRecordsFull names the condition of a full deferred-free
	// queue. Manager does not return it: when the queue is full, the
	// event loop runs the oldest record's free callback to make room for
	// the new one.
	ErrFreeRecordsFull = errors.New("localhub: message free record queue full")

	// ErrNotOnEventLoop documents (but does not enforce) that a method is
	// contractually restricted to the event-loop goroutine.
	ErrNotOnEventLoop = errors.New("localhub: must be called from the event loop goroutine")
)
