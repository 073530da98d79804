package remotehub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithMaxHostHubs bounds the number of hubs this manager will register on
// behalf of its host. Zero (the default) means unbounded.
func WithMaxHostHubs(n int) Option {
	return func(m *Manager) { m.maxHostHubs = n }
}

// WithMaxHostEndpoints bounds the number of endpoints any single host hub
// may register. Zero (the default) means unbounded.
func WithMaxHostEndpoints(n int) Option {
	return func(m *Manager) { m.maxHostEndpoints = n }
}

// Manager is the Remote Hub Manager: it mirrors every hub and endpoint a
// single remote host process has told it about, registering each hub
// with the router and translating router callbacks into HostCallback
// notifications.
//
// managerMutex guards the hub table itself (lookups and map edits).
// embeddedOpMutex serializes whole inbound operations — RegisterHub,
// RegisterEndpoint, OpenSession, Reset, and the other host-driven methods
// below except OnHostTransportReady — against each other, so a host's
// Reset never interleaves with an individual registration or session
// request arriving mid-sequence. It stays held for the whole operation,
// including any HostCallback invocation that operation makes: Reset's
// OnReset, OpenSession's OnSessionOpenRejected, and router callbacks the
// operation triggers synchronously on this manager's hubs. Router
// callbacks arriving from other goroutines do not take it. managerMutex is
// never held across a HostCallback invocation. The two are acquired
// outer-to-inner, embeddedOpMutex then managerMutex, never the reverse.
type Manager struct {
	r      *router.Router
	host   HostCallback
	logger *slog.Logger

	maxHostHubs      int
	maxHostEndpoints int

	embeddedOpMutex sync.Mutex

	managerMutex sync.Mutex
	hubs         map[router.HubId]*RemoteHub
}

// NewManager constructs a Manager bound to router r, forwarding
// notifications to host.
func NewManager(r *router.Router, host HostCallback, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		r:      r,
		host:   host,
		logger: logger.With(slog.String("component", "remotehub")),
		hubs:   make(map[router.HubId]*RemoteHub),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// notifyHost is a thin naming seam for every HostCallback invocation this
// package makes. It takes no lock of its own; it is never called under
// managerMutex, but it runs under embeddedOpMutex whenever the
// notification comes from inside an inbound operation (see Manager).
func (m *Manager) notifyHost(fn func()) { fn() }

// OnHostTransportReady is called once the transport connection to the
// host is established, before any registration traffic is expected. It
// currently exists as an explicit lifecycle hook for callers (and for
// symmetry with the host-initiated Reset) rather than performing work of
// its own: there is no outstanding state to flush on a fresh connection.
func (m *Manager) OnHostTransportReady() {
	m.logger.Info("host transport ready")
}

func (m *Manager) getHub(id router.HubId) (*RemoteHub, error) {
	m.managerMutex.Lock()
	defer m.managerMutex.Unlock()
	rh, ok := m.hubs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrHubNotFound, id)
	}
	return rh, nil
}

// registerHub is the unlocked core of RegisterHub; Reset calls it directly
// while already holding embeddedOpMutex.
func (m *Manager) registerHub(id router.HubId, name string) (*RemoteHub, error) {
	m.managerMutex.Lock()
	if m.maxHostHubs > 0 && len(m.hubs) >= m.maxHostHubs {
		m.managerMutex.Unlock()
		return nil, ErrHostHubTableFull
	}
	if _, exists := m.hubs[id]; exists {
		m.managerMutex.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrHubAlreadyRegistered, id)
	}

	rh := &RemoteHub{
		manager:   m,
		info:      router.HubInfo{Id: id, Name: name},
		endpoints: make(map[router.EndpointId]*remoteEndpoint),
	}
	m.hubs[id] = rh
	m.managerMutex.Unlock()

	handle, err := m.r.RegisterHub(id, name, rh)
	if err != nil {
		m.managerMutex.Lock()
		delete(m.hubs, id)
		m.managerMutex.Unlock()
		return nil, err
	}
	rh.handle = handle

	m.logger.Info("host hub registered", slog.Uint64("hub_id", uint64(id)), slog.String("name", name))
	return rh, nil
}

// RegisterHub registers a new host-side hub with the router.
func (m *Manager) RegisterHub(id router.HubId, name string) (*RemoteHub, error) {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	return m.registerHub(id, name)
}

// unregisterHub is the unlocked core of UnregisterHub.
func (m *Manager) unregisterHub(id router.HubId) error {
	m.managerMutex.Lock()
	rh, exists := m.hubs[id]
	if !exists {
		m.managerMutex.Unlock()
		return fmt.Errorf("%w: %d", ErrHubNotFound, id)
	}
	delete(m.hubs, id)
	m.managerMutex.Unlock()

	rh.handle.Unregister()
	m.logger.Info("host hub unregistered", slog.Uint64("hub_id", uint64(id)))
	return nil
}

// UnregisterHub removes hub id from the router and this manager's table.
func (m *Manager) UnregisterHub(id router.HubId) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	return m.unregisterHub(id)
}

// registerEndpoint is the unlocked core of RegisterEndpoint.
func (m *Manager) registerEndpoint(hub router.HubId, info router.EndpointInfo) error {
	rh, err := m.getHub(hub)
	if err != nil {
		return err
	}
	if err := rh.registerEndpoint(info, m.maxHostEndpoints); err != nil {
		return err
	}
	return rh.handle.RegisterEndpoint(info.Id)
}

// RegisterEndpoint registers info on hub, then fans the registration out
// to every other hub via the router.
func (m *Manager) RegisterEndpoint(hub router.HubId, info router.EndpointInfo) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	return m.registerEndpoint(hub, info)
}

// UnregisterEndpoint removes endpoint from hub and fans the removal out.
func (m *Manager) UnregisterEndpoint(hub router.HubId, endpoint router.EndpointId) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()

	rh, err := m.getHub(hub)
	if err != nil {
		return err
	}
	if err := rh.unregisterEndpoint(endpoint); err != nil {
		return err
	}
	return rh.handle.UnregisterEndpoint(endpoint)
}

// publishServices is the unlocked core of PublishServices.
func (m *Manager) publishServices(hub router.HubId, endpoint router.EndpointId, services []router.ServiceInfo) error {
	rh, err := m.getHub(hub)
	if err != nil {
		return err
	}
	return rh.publishServices(endpoint, services)
}

// PublishServices records services as exposed by endpoint on hub. Unlike
// the Local Hub Manager, the Remote Hub Manager trusts the host's
// descriptor choices without legacy-format or duplicate checks: those
// belong to the in-process publication path, and the host's own platform
// has already validated what it sends across the transport.
func (m *Manager) PublishServices(hub router.HubId, endpoint router.EndpointId, services []router.ServiceInfo) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	return m.publishServices(hub, endpoint, services)
}

// OpenSession forwards an open request from the host to the router. When
// the host supplied a caller-assigned sessionId and the router resolves
// the request to a pre-existing equivalent session under a different id,
// the host's request is synthesized as rejected rather than silently
// handed back a session id it never asked for.
func (m *Manager) OpenSession(hub router.HubId, fromEndpoint router.EndpointId, toHub router.HubId, toEndpoint router.EndpointId, service *string, sessionId *router.SessionId) (router.SessionId, error) {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()

	rh, err := m.getHub(hub)
	if err != nil {
		return router.InvalidSessionId, err
	}

	granted, err := rh.handle.OpenSession(fromEndpoint, toHub, toEndpoint, service, sessionId)
	if err != nil {
		return router.InvalidSessionId, err
	}

	if sessionId != nil && granted != *sessionId {
		m.notifyHost(func() {
			m.host.OnSessionOpenRejected(hub, *sessionId, router.ReasonOpenEndpointSessionRequestRejected)
		})
		return router.InvalidSessionId, fmt.Errorf("%w: requested %d, router returned %d", ErrSessionIdMismatch, *sessionId, granted)
	}
	return granted, nil
}

// AckSession accepts a pending session-open request on behalf of hub.
func (m *Manager) AckSession(hub router.HubId, sessionId router.SessionId) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	rh, err := m.getHub(hub)
	if err != nil {
		return err
	}
	return rh.handle.OnSessionOpenComplete(sessionId)
}

// CloseSession closes sessionId on behalf of hub.
func (m *Manager) CloseSession(hub router.HubId, sessionId router.SessionId, reason router.Reason) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	rh, err := m.getHub(hub)
	if err != nil {
		return err
	}
	return rh.handle.CloseSession(sessionId, reason)
}

// SendMessage sends payload on sessionId from fromEndpoint on hub.
func (m *Manager) SendMessage(hub router.HubId, fromEndpoint router.EndpointId, sessionId router.SessionId, payload []byte, messageType, permissions uint32) (bool, error) {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()
	rh, err := m.getHub(hub)
	if err != nil {
		return false, err
	}
	return rh.handle.SendMessage(fromEndpoint, sessionId, payload, messageType, permissions)
}

// HubSpec describes one hub (and its endpoints/services) to replay during
// Reset.
type HubSpec struct {
	Id        router.HubId
	Name      string
	Endpoints []EndpointSpec
}

// EndpointSpec describes one endpoint (and the services it exposes) to
// replay during Reset.
type EndpointSpec struct {
	Info     router.EndpointInfo
	Services []router.ServiceInfo
}

// Reset clears every hub this manager currently tracks and replays specs
// as a fresh registration sequence. It is the host-restart recovery path:
// the host reconnects, re-describes its entire hub/endpoint/service
// topology, and this manager tears down the stale router-side mirror
// before rebuilding it, rather than trying to diff old state against new.
//
// A hub id freed by the teardown half of Reset is immediately available
// for reuse by the replay half, in the same call: the table has no
// quiescence period between a hub's removal and a same-id hub's
// re-registration. Reset holds embeddedOpMutex for its entire duration,
// so no other inbound operation — a registration, a session request — can
// observe the table mid-teardown or mid-replay.
func (m *Manager) Reset(specs []HubSpec) error {
	m.embeddedOpMutex.Lock()
	defer m.embeddedOpMutex.Unlock()

	m.managerMutex.Lock()
	existing := make([]*RemoteHub, 0, len(m.hubs))
	for _, rh := range m.hubs {
		existing = append(existing, rh)
	}
	m.hubs = make(map[router.HubId]*RemoteHub)
	m.managerMutex.Unlock()

	for _, rh := range existing {
		rh.handle.Unregister()
	}

	m.notifyHost(m.host.OnReset)

	var errs []error
	for _, spec := range specs {
		if _, err := m.registerHub(spec.Id, spec.Name); err != nil {
			errs = append(errs, fmt.Errorf("reset: register hub %d: %w", spec.Id, err))
			continue
		}
		for _, ep := range spec.Endpoints {
			if err := m.registerEndpoint(spec.Id, ep.Info); err != nil {
				errs = append(errs, fmt.Errorf("reset: register endpoint %d on hub %d: %w", ep.Info.Id, spec.Id, err))
				continue
			}
			if len(ep.Services) > 0 {
				if err := m.publishServices(spec.Id, ep.Info.Id, ep.Services); err != nil {
					errs = append(errs, fmt.Errorf("reset: publish services for endpoint %d on hub %d: %w", ep.Info.Id, spec.Id, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}
